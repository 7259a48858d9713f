// Package jsonschema validates JSON documents against a compiled JSON Schema.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationErrors represents a collection of validation errors
type ValidationErrors []error

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled schema, safe for concurrent use.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles schemaStr. name identifies the schema in error messages.
func Compile(name, schemaStr string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{name: name, schema: schema}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(name, schemaStr string) *Schema {
	s, err := Compile(name, schemaStr)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the name the schema was compiled under.
func (s *Schema) Name() string {
	return s.name
}

// Validate parses data and checks it against the schema. A document that
// does not parse yields an error wrapping ErrInvalidJSON; a document that
// breaks the schema yields ValidationErrors.
func (s *Schema) Validate(data []byte) error {
	doc, err := decode(data)
	if err != nil {
		return err
	}
	return s.ValidateValue(doc)
}

// ValidateValue checks an already decoded document.
func (s *Schema) ValidateValue(doc interface{}) error {
	err := s.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		return extractValidationErrors(verr)
	}
	return ValidationErrors{err}
}

// ErrInvalidJSON is wrapped by errors for documents that are not JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// decode uses json.Number so integer keywords see the exact value.
func decode(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrInvalidJSON)
	}
	return doc, nil
}

// extractValidationErrors flattens the error tree to its leaves.
func extractValidationErrors(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return ValidationErrors{fmt.Errorf("%s: %s", loc, err.Message)}
	}

	var errs ValidationErrors
	for _, cause := range err.Causes {
		errs = append(errs, extractValidationErrors(cause)...)
	}
	return errs
}
