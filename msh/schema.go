package msh

import (
	"bytes"
	"embed"
	"io/fs"
	"strings"
	"sync"

	"github.com/jacoelho/xsd"
	xsderrors "github.com/jacoelho/xsd/errors"

	"github.com/gogpu/material/fault"
)

//go:embed fragment.xsd
var schemaFS embed.FS

// SchemaFile is the name of the embedded fragment schema.
const SchemaFile = "fragment.xsd"

var (
	defaultSchemaOnce sync.Once
	defaultSchema     *Schema
	defaultSchemaErr  error
)

// Schema validates definition files before they are decoded.
// A Schema is safe for concurrent use.
type Schema struct {
	xs *xsd.Schema
}

// DefaultSchema returns the embedded fragment schema, compiled once.
func DefaultSchema() (*Schema, error) {
	defaultSchemaOnce.Do(func() {
		defaultSchema, defaultSchemaErr = LoadSchema(schemaFS, SchemaFile)
	})
	return defaultSchema, defaultSchemaErr
}

// LoadSchema compiles the schema at location in fsys.
func LoadSchema(fsys fs.FS, location string) (*Schema, error) {
	xs, err := xsd.Load(fsys, location)
	if err != nil {
		return nil, &fault.AuthoringError{Source: location, Reason: "cannot load schema", Err: err}
	}
	return &Schema{xs: xs}, nil
}

// LoadSchemaFile compiles the schema at path on the local file system.
func LoadSchemaFile(path string) (*Schema, error) {
	xs, err := xsd.LoadFile(path)
	if err != nil {
		return nil, &fault.AuthoringError{Source: path, Reason: "cannot load schema", Err: err}
	}
	return &Schema{xs: xs}, nil
}

// Validate checks data against the schema. source names the document in
// the returned error.
func (s *Schema) Validate(source string, data []byte) error {
	err := s.xs.Validate(bytes.NewReader(data))
	if err == nil {
		return nil
	}
	if violations, ok := xsderrors.AsValidations(err); ok && len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.Error()
		}
		return fault.Authoringf(source, "schema violation: %s", strings.Join(msgs, "; "))
	}
	return &fault.AuthoringError{Source: source, Reason: "schema violation", Err: err}
}
