// Package schema holds the ordered column definitions that describe a
// conversion run, and the loaders that build them from external definition
// files.
package schema

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/transmuta/pkg/datatype"
	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// Column is a single named, typed column definition.
type Column struct {
	Name string        `json:"name" yaml:"name"`
	Type datatype.Type `json:"data_type" yaml:"data_type"`
}

// Schema is an ordered, non-empty and immutable list of columns. Duplicate
// names are kept positionally.
type Schema struct {
	columns []Column
}

// New builds a Schema from cols. The slice is copied.
func New(cols []Column) (*Schema, error) {
	if len(cols) == 0 {
		return nil, errors.EmptySchema()
	}
	for i, c := range cols {
		if c.Name == "" {
			return nil, errors.Newf(errors.ErrorTypeMalformedInput, "column %d has an empty name", i+1).
				WithDetail("row", i+1)
		}
	}
	return &Schema{columns: append([]Column(nil), cols...)}, nil
}

// AllText builds the schema of an ingested row source: one String column per
// header name.
func AllText(names []string) (*Schema, error) {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: datatype.Of(datatype.String)}
	}
	return New(cols)
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.columns) }

// Column returns the i-th column.
func (s *Schema) Column(i int) Column { return s.columns[i] }

// Columns returns a copy of the column list.
func (s *Schema) Columns() []Column { return append([]Column(nil), s.columns...) }

// Names returns the column names in order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Arrow returns the physical arrow schema for s.
func (s *Schema) Arrow() (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s.columns))
	for i, c := range s.columns {
		f, err := c.Type.Field(c.Name)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeUnsupportedType, "column "+c.Name)
		}
		fields[i] = f
	}
	return arrow.NewSchema(fields, nil), nil
}
