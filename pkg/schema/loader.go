package schema

import (
	"encoding/csv"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/transmuta/pkg/datatype"
	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// Format is the encoding of a column-definition file.
type Format string

const (
	// FormatCSV is a delimited file of (name, type, ...) rows without header.
	FormatCSV Format = "csv"
	// FormatJSON is an array of {"name", "data_type"} objects.
	FormatJSON Format = "json"
	// FormatYAML is a sequence of {name, data_type} mappings.
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the definition format from the file extension.
// Unknown extensions are treated as delimited text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatCSV
	}
}

// ParseFormat resolves a definition format name. The empty string is
// returned as is so LoadFile infers the format from the extension.
func ParseFormat(name string) (Format, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "":
		return "", nil
	case "csv", "tsv", "txt":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported schema format %q", name)
	}
}

// LoadFile opens path and decodes it with LoadCSV, LoadJSON or LoadYAML.
// An empty format is inferred from the extension.
func LoadFile(path string, format Format, delim rune) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to open schema file").
			WithDetail("file", path)
	}
	defer f.Close()

	if format == "" {
		format = FormatFromPath(path)
	}

	switch format {
	case FormatCSV:
		return LoadCSV(f, delim)
	case FormatJSON:
		return LoadJSON(f)
	case FormatYAML:
		return LoadYAML(f)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown schema format %q", format)
	}
}

// LoadCSV reads delimited (name, type, ...) rows. Fields beyond the second are
// ignored. The first bad row aborts the load.
func LoadCSV(r io.Reader, delim rune) (*Schema, error) {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var cols []Column
	for row := 1; ; row++ {
		record, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read schema").
				WithDetail("row", row)
		}
		if len(record) < 2 {
			return nil, errors.MalformedSchemaRow(row)
		}

		name := strings.TrimSpace(record[0])
		if name == "" {
			return nil, errors.MalformedSchemaRow(row)
		}
		dt, err := datatype.Parse(strings.ToLower(strings.TrimSpace(record[1])))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "invalid column type").
				WithDetail("row", row)
		}
		cols = append(cols, Column{Name: name, Type: dt})
	}

	return New(cols)
}

// LoadJSON decodes an array of column objects.
func LoadJSON(r io.Reader) (*Schema, error) {
	var cols []Column
	if err := gojson.NewDecoder(r).Decode(&cols); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.EmptySchema()
		}
		return nil, decodeError(err, "failed to decode JSON schema")
	}
	return New(cols)
}

// LoadYAML decodes a sequence of column mappings.
func LoadYAML(r io.Reader) (*Schema, error) {
	var cols []Column
	if err := yaml.NewDecoder(r).Decode(&cols); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.EmptySchema()
		}
		return nil, decodeError(err, "failed to decode YAML schema")
	}
	return New(cols)
}

// decodeError keeps an UnsupportedType cause visible as its own category.
func decodeError(err error, msg string) error {
	if errors.IsType(err, errors.ErrorTypeUnsupportedType) {
		return errors.Wrap(err, errors.ErrorTypeUnsupportedType, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeMalformedInput, msg)
}
