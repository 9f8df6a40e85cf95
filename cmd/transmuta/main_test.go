package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/pipeline"
	"github.com/ajitpratap0/transmuta/pkg/testutil"
)

type CLITestSuite struct {
	testutil.IntegrationTestSuite
}

func TestCLI(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(CLITestSuite))
}

// run executes the CLI with args and returns what it printed.
func (s *CLITestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(s.Context())
	return out.String(), err
}

func (s *CLITestSuite) TestCSVToJSONL() {
	dir := s.Dir()
	input := testutil.WriteRowsCSV(s.T(), dir, "in.csv", 3)
	output := filepath.Join(dir, "out.jsonl")

	out, err := s.run("csv", "-i", input, "-o", output)
	s.Require().NoError(err)
	s.Contains(out, "wrote 3 rows to "+output)

	data, err := os.ReadFile(output)
	s.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	s.Require().Len(lines, 3)

	var row map[string]any
	s.Require().NoError(gojson.Unmarshal([]byte(lines[1]), &row))
	s.Equal("name_1", row["name"])
}

func (s *CLITestSuite) TestCSVToParquetParts() {
	dir := s.Dir()
	input := testutil.WriteRowsCSV(s.T(), dir, "in.csv", 25)
	output := filepath.Join(dir, "out.parquet")
	manifest := filepath.Join(dir, "manifest.json")
	metricsFile := filepath.Join(dir, "metrics.prom")

	out, err := s.run("csv", "-i", input, "-o", output, "-b", "10", "-t", "2",
		"--manifest", manifest, "--metrics-file", metricsFile)
	s.Require().NoError(err)
	s.Contains(out, "3 parts")

	s.Equal([]string{"in.csv", "manifest.json", "metrics.prom",
		"out_part0001.parquet", "out_part0002.parquet", "out_part0003.parquet"},
		testutil.Files(s.T(), dir))

	head, err := os.ReadFile(filepath.Join(dir, "out_part0001.parquet"))
	s.Require().NoError(err)
	s.Equal("PAR1", string(head[:4]))

	m, err := pipeline.ReadManifest(manifest)
	s.Require().NoError(err)
	s.Equal(int64(25), m.Rows)
	s.Len(m.Parts, 3)

	prom, err := os.ReadFile(metricsFile)
	s.Require().NoError(err)
	s.Contains(string(prom), `transmuta_rows_written_total{command="csv"} 25`)
}

func (s *CLITestSuite) TestCSVTabDelimitedGzip() {
	dir := s.Dir()
	input := testutil.WriteFile(s.T(), "tabs.tsv", "a\tb\n1\t2\n")
	output := filepath.Join(dir, "out.csv")

	_, err := s.run("csv", "-i", input, "-d", `\t`, "-o", output, "--compression", "gzip")
	s.Require().NoError(err)
	s.Equal([]string{"out.csv.gz"}, testutil.Files(s.T(), dir))
}

func (s *CLITestSuite) TestDelimiterCarriesToOutput() {
	dir := s.Dir()
	input := testutil.WriteFile(s.T(), "tabs.tsv", "a\tb\n1\t2\n")

	tsv := filepath.Join(dir, "out.csv")
	_, err := s.run("csv", "-i", input, "-d", `\t`, "-o", tsv)
	s.Require().NoError(err)
	data, err := os.ReadFile(tsv)
	s.Require().NoError(err)
	s.Equal("a\tb\n1\t2\n", string(data))

	semi := filepath.Join(dir, "semi.csv")
	_, err = s.run("csv", "-i", input, "-d", `\t`, "--output-delimiter", ";", "-o", semi)
	s.Require().NoError(err)
	data, err = os.ReadFile(semi)
	s.Require().NoError(err)
	s.Equal("a;b\n1;2\n", string(data))

	book := excelize.NewFile()
	s.Require().NoError(book.SetSheetRow("Sheet1", "A1", &[]any{"x", "y"}))
	s.Require().NoError(book.SetSheetRow("Sheet1", "A2", &[]any{"3", "4"}))
	workbook := filepath.Join(dir, "book.xlsx")
	s.Require().NoError(book.SaveAs(workbook))
	s.Require().NoError(book.Close())

	piped := filepath.Join(dir, "piped.csv")
	_, err = s.run("excel", "-i", workbook, "-d", "|", "-o", piped)
	s.Require().NoError(err)
	data, err = os.ReadFile(piped)
	s.Require().NoError(err)
	s.Equal("x|y\n3|4\n", string(data))
}

func (s *CLITestSuite) TestDatagenReproducible() {
	dir := s.Dir()
	schemaFile := filepath.Join(dir, "schema.csv")
	s.Require().NoError(os.WriteFile(schemaFile, []byte("id,int64\nname,string\nscore,double\n"), 0o600))

	gen := func(name string) []byte {
		output := filepath.Join(dir, name)
		_, err := s.run("datagen", "-s", schemaFile, "-r", "25", "-b", "10", "--seed", "42", "-o", output)
		s.Require().NoError(err)
		data, err := os.ReadFile(filepath.Join(dir, strings.TrimSuffix(name, ".json")+"_part0003.json"))
		s.Require().NoError(err)
		return data
	}

	first := gen("a.json")
	second := gen("b.json")
	s.Equal(first, second)

	var rows []map[string]any
	s.Require().NoError(gojson.Unmarshal(first, &rows))
	s.Len(rows, 5)
	s.Contains(rows[0], "score")
}

func (s *CLITestSuite) TestDiff() {
	dir := s.Dir()
	file1 := testutil.WriteFile(s.T(), "left.csv", "id,name,email\n")
	file2 := testutil.WriteFile(s.T(), "right.csv", "id,phone\n")
	output := filepath.Join(dir, "fields.txt")

	out, err := s.run("diff", "--file1", file1, "--file2", file2, "-o", output, "-m", "complement")
	s.Require().NoError(err)
	s.Contains(out, "1 common")

	data, err := os.ReadFile(output)
	s.Require().NoError(err)
	s.Equal("email,name,phone", string(data))
}

func (s *CLITestSuite) TestVersion() {
	out, err := s.run("version")
	s.Require().NoError(err)
	s.Contains(out, "transmuta version "+version)
}

func (s *CLITestSuite) TestConfigFile() {
	dir := s.Dir()
	cfgFile := filepath.Join(dir, "transmuta.yaml")
	s.Require().NoError(os.WriteFile(cfgFile, []byte("output:\n  batch_size: 7\n"), 0o600))

	out, err := s.run("--config", cfgFile, "config")
	s.Require().NoError(err)
	s.Contains(out, "batch_size: 7")
}

func (s *CLITestSuite) TestErrors() {
	dir := s.Dir()
	input := testutil.WriteRowsCSV(s.T(), dir, "in.csv", 1)

	_, err := s.run("csv", "-i", input, "-o", filepath.Join(dir, "out.xml"))
	s.True(errors.IsType(err, errors.ErrorTypeConfig), "%v", err)

	_, err = s.run("csv", "-i", input, "-o", filepath.Join(dir, "out.parquet"), "--compression", "gzip")
	s.True(errors.IsType(err, errors.ErrorTypeConfig), "%v", err)

	_, err = s.run("csv", "-i", filepath.Join(dir, "missing.csv"), "-o", filepath.Join(dir, "out.csv"))
	s.True(errors.IsType(err, errors.ErrorTypeIO), "%v", err)

	_, err = s.run("excel", "-i", input, "-o", filepath.Join(dir, "out.csv"))
	s.True(errors.IsType(err, errors.ErrorTypeMalformedInput), "%v", err)

	_, err = s.run("csv", "-i", input, "-o", filepath.Join(dir, "out.csv"), "-b", "0")
	s.True(errors.IsType(err, errors.ErrorTypeConfig), "%v", err)
}
