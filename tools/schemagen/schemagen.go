// Package main generates JSON schemas for the machine-readable outputs of
// querycheck: check reports and grammar rule listings.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/querycheck/pkg/checker"
	"github.com/Sumatoshi-tech/querycheck/pkg/grammar"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

// Schema represents a JSON Schema.
type Schema struct {
	Schema      string             `json:"$schema,omitempty"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Type        string             `json:"type,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`
}

// output is one document kind the CLI and MCP server emit as a JSON array.
type output struct {
	name        string
	title       string
	description string
	element     any
}

var outputs = []output{
	{
		name:        "check-report",
		title:       "querycheck check report",
		description: "Output of `querycheck check --format json`: one record per query file",
		element:     checker.Record{},
	},
	{
		name:        "grammar-rules",
		title:       "querycheck grammar rules",
		description: "Output of `querycheck grammar rules --format json`: one summary per top-level rule",
		element:     grammar.RuleSummary{},
	},
}

func main() {
	outputDir := flag.String("o", "docs/schemas", "Output directory for schemas")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	for _, out := range outputs {
		if err := writeSchema(*outputDir, out.name, generateSchema(out)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing schema for %s: %v\n", out.name, err)
			os.Exit(1)
		}

		fmt.Fprintf(os.Stdout, "Generated schema for %s\n", out.name)
	}
}

// generateSchema describes a JSON array of out.element values.
func generateSchema(out output) *Schema {
	defs := make(map[string]*Schema)

	return &Schema{
		Schema:      draft07,
		Title:       out.title,
		Description: out.description,
		Type:        "array",
		Items:       typeToSchema(reflect.TypeOf(out.element), defs),
		Definitions: defs,
	}
}

func structToProperties(t reflect.Type, defs map[string]*Schema) (map[string]*Schema, []string) {
	props := make(map[string]*Schema)

	var required []string

	for field := range fieldsOf(t) {
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}

		if name == "" {
			name = field.Name
		}

		props[name] = typeToSchema(field.Type, defs)

		if !slices.Contains(strings.Split(opts, ","), "omitempty") {
			required = append(required, name)
		}
	}

	slices.Sort(required)

	return props, required
}

func fieldsOf(t reflect.Type) func(func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for idx := range t.NumField() {
			field := t.Field(idx)
			if !field.IsExported() {
				continue
			}

			if !yield(field) {
				return
			}
		}
	}
}

func typeToSchema(t reflect.Type, defs map[string]*Schema) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == reflect.TypeFor[time.Duration]() {
			return &Schema{Type: "integer", Description: "Duration in nanoseconds"}
		}

		return &Schema{Type: "integer"}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}

	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}

	case reflect.Bool:
		return &Schema{Type: "boolean"}

	case reflect.Slice:
		return &Schema{Type: "array", Items: typeToSchema(t.Elem(), defs)}

	case reflect.Map:
		return &Schema{Type: "object"}

	case reflect.Struct:
		if t.Name() == "" {
			props, required := structToProperties(t, defs)

			return &Schema{Type: "object", Properties: props, Required: required}
		}

		defName := path.Base(t.PkgPath()) + "." + t.Name()
		if _, exists := defs[defName]; !exists {
			// Registered before recursing so self-references terminate.
			def := &Schema{Type: "object"}
			defs[defName] = def
			def.Properties, def.Required = structToProperties(t, defs)
		}

		return &Schema{Ref: "#/definitions/" + defName}

	case reflect.Ptr:
		return typeToSchema(t.Elem(), defs)

	default:
		return &Schema{}
	}
}

func writeSchema(dir, name string, schema *Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, name+".json"), data, 0o600)
}
