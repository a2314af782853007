// Package schema validates tool parameters, either against a JSON Schema
// document or against a Go struct's validate tags, and produces the JSON
// Schema a tool advertises in its ToolDescriptor.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator validates data against a schema.
type Validator interface {
	// Validate validates data against the schema.
	// Returns an error if validation fails.
	Validate(data interface{}) error

	// JSONSchema returns the JSON Schema representation of this validator.
	// This is what gets advertised in a tool's descriptor.
	JSONSchema() map[string]interface{}
}

// Schema represents a validation schema. Can be implemented as JSON Schema
// or Go struct-based schema.
type Schema interface {
	Validator() Validator
}

// JSONSchemaValidator validates using a JSON Schema document, compiled once
// at construction time via santhosh-tekuri/jsonschema.
type JSONSchemaValidator struct {
	raw      map[string]interface{}
	compiled *jsonschema.Schema
}

// NewJSONSchema compiles schemaDoc and returns a validator for it. A
// malformed schema produces a validator whose Validate always fails with an
// "invalid schema" error rather than a constructor error — schemas are
// normally built once at tool-registration time, and failing the call site
// lets registration report which tool's schema is broken.
func NewJSONSchema(schemaDoc map[string]interface{}) *JSONSchemaValidator {
	v := &JSONSchemaValidator{raw: schemaDoc}

	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return v
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-params.json", bytes.NewReader(raw)); err != nil {
		return v
	}
	compiled, err := compiler.Compile("tool-params.json")
	if err != nil {
		return v
	}
	v.compiled = compiled
	return v
}

// Validate validates data against the compiled JSON Schema.
func (v *JSONSchemaValidator) Validate(data interface{}) error {
	if v.compiled == nil {
		return fmt.Errorf("schema: invalid or uncompiled JSON Schema")
	}

	// jsonschema validates decoded JSON values (map[string]any, []any,
	// string, float64, bool, nil), so round-trip arbitrary input through
	// encoding/json to normalize it the way the wire actually sends it.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("schema: marshal input: %w", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("schema: unmarshal input: %w", err)
	}

	if err := v.compiled.Validate(decoded); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// JSONSchema returns the original schema document.
func (v *JSONSchemaValidator) JSONSchema() map[string]interface{} {
	return v.raw
}

// structValidate is a single shared validator instance, as recommended by
// go-playground/validator — it caches struct field metadata internally.
var structValidate = validator.New(validator.WithRequiredStructEnabled())

// StructValidator validates using Go struct `validate:"..."` tags.
type StructValidator struct {
	targetType reflect.Type
}

// NewStructSchema creates a new struct-based schema validator for targetType,
// which should be a struct type (not a pointer).
func NewStructSchema(targetType reflect.Type) *StructValidator {
	return &StructValidator{targetType: targetType}
}

// Validate decodes data into a fresh value of the target struct type (via a
// JSON round-trip, so map[string]interface{} input works directly) and runs
// struct tag validation over it.
func (v *StructValidator) Validate(data interface{}) error {
	target := reflect.New(v.targetType)

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("schema: marshal input: %w", err)
	}
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return fmt.Errorf("schema: unmarshal input: %w", err)
	}

	if err := structValidate.Struct(target.Interface()); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// JSONSchema derives a JSON Schema object from the struct's fields and their
// validate tags, mapping the subset of validator.v10 tags that have a direct
// JSON Schema equivalent (required, min, max, oneof); anything it can't
// translate is left as an untyped property.
func (v *StructValidator) JSONSchema() map[string]interface{} {
	properties := map[string]interface{}{}
	var required []string

	t := v.targetType
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(field)
		if name == "-" {
			continue
		}

		prop := map[string]interface{}{"type": jsonTypeOf(field.Type)}
		tag := field.Tag.Get("validate")
		for _, rule := range strings.Split(tag, ",") {
			switch {
			case rule == "required":
				required = append(required, name)
			case strings.HasPrefix(rule, "oneof="):
				values := strings.Fields(strings.TrimPrefix(rule, "oneof="))
				enum := make([]interface{}, len(values))
				for i, val := range values {
					enum[i] = val
				}
				prop["enum"] = enum
			case strings.HasPrefix(rule, "min="):
				prop["minimum"] = rule[len("min="):]
			case strings.HasPrefix(rule, "max="):
				prop["maximum"] = rule[len("max="):]
			}
		}
		properties[name] = prop
	}

	out := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name := strings.Split(tag, ",")[0]
	if name == "" {
		return field.Name
	}
	return name
}

func jsonTypeOf(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonTypeOf(t.Elem())
	default:
		return "string"
	}
}

// SimpleJSONSchema is a Schema backed by a JSON Schema document.
type SimpleJSONSchema struct {
	validator *JSONSchemaValidator
}

// NewSimpleJSONSchema wraps schemaDoc as a Schema.
func NewSimpleJSONSchema(schemaDoc map[string]interface{}) *SimpleJSONSchema {
	return &SimpleJSONSchema{validator: NewJSONSchema(schemaDoc)}
}

// Validator returns the underlying validator.
func (s *SimpleJSONSchema) Validator() Validator {
	return s.validator
}

// SimpleStructSchema is a Schema backed by a Go struct type.
type SimpleStructSchema struct {
	validator *StructValidator
}

// NewSimpleStructSchema wraps targetType as a Schema.
func NewSimpleStructSchema(targetType reflect.Type) *SimpleStructSchema {
	return &SimpleStructSchema{validator: NewStructSchema(targetType)}
}

// Validator returns the underlying validator.
func (s *SimpleStructSchema) Validator() Validator {
	return s.validator
}
