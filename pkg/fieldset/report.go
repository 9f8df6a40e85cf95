package fieldset

import (
	"bufio"
	"fmt"
	"io"
)

// WriteReport writes a plain-text summary of d.
func WriteReport(w io.Writer, file1, file2 string, d Diff) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Field set comparison")
	fmt.Fprintln(bw, "====================")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "File 1: %s\n", file1)
	fmt.Fprintf(bw, "File 2: %s\n", file2)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "Summary")
	fmt.Fprintln(bw, "-------")
	fmt.Fprintf(bw, "Fields in file 1: %d\n", len(d.Fields1))
	fmt.Fprintf(bw, "Fields in file 2: %d\n", len(d.Fields2))
	fmt.Fprintf(bw, "Common fields: %d\n", d.Common())
	fmt.Fprintf(bw, "Only in file 1: %d\n", len(d.OnlyIn1))
	fmt.Fprintf(bw, "Only in file 2: %d\n", len(d.OnlyIn2))

	section(bw, "Only in file 1", d.OnlyIn1)
	section(bw, "Only in file 2", d.OnlyIn2)
	section(bw, "All fields of file 1", d.Fields1)
	section(bw, "All fields of file 2", d.Fields2)

	return bw.Flush()
}

func section(w io.Writer, title string, fields []string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	for range title {
		fmt.Fprint(w, "-")
	}
	fmt.Fprintln(w)
	if len(fields) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for _, f := range fields {
		fmt.Fprintf(w, "- %s\n", f)
	}
}
