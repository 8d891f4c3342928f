package grammar

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON Schema every grammar description must satisfy.
//
//go:embed grammar.schema.json
var Schema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	errSchemaLoad  error
)

// SchemaError lists every violation found while validating a grammar.
type SchemaError struct {
	Violations []Violation
}

// Violation is one failed schema constraint.
type Violation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Violations))

	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Description)
	}

	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(parts, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, errSchemaLoad = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(Schema))
	})

	return compiledSchema, errSchemaLoad
}

// ValidateSchema checks raw grammar JSON against Schema. Violations are
// returned as a *SchemaError that matches ErrSchemaViolation.
func ValidateSchema(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("compile grammar schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedGrammar, err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]Violation, 0, len(result.Errors()))

	for _, verr := range result.Errors() {
		violations = append(violations, Violation{Field: verr.Field(), Description: verr.Description()})
	}

	return &SchemaError{Violations: violations}
}
