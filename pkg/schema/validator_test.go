package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchemaValidator_ValidAndInvalid(t *testing.T) {
	t.Parallel()

	doc := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
			"age":  map[string]interface{}{"type": "integer", "minimum": 0},
		},
		"required": []interface{}{"name"},
	}
	v := NewJSONSchema(doc)
	require.NotNil(t, v)

	assert.NoError(t, v.Validate(map[string]interface{}{"name": "Ada", "age": 30}))
	assert.Error(t, v.Validate(map[string]interface{}{"age": 30}))
	assert.Error(t, v.Validate(map[string]interface{}{"name": "Ada", "age": -1}))
}

func TestJSONSchemaValidator_JSONSchema(t *testing.T) {
	t.Parallel()

	doc := map[string]interface{}{"type": "object"}
	v := NewJSONSchema(doc)
	assert.Equal(t, "object", v.JSONSchema()["type"])
}

func TestJSONSchemaValidator_MalformedSchemaFailsValidation(t *testing.T) {
	t.Parallel()

	v := NewJSONSchema(map[string]interface{}{"type": "not-a-real-type!!!"})
	assert.Error(t, v.Validate(map[string]interface{}{}))
}

type testPerson struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"min=0"`
}

func TestStructValidator_ValidAndInvalid(t *testing.T) {
	t.Parallel()

	v := NewStructSchema(reflect.TypeOf(testPerson{}))

	assert.NoError(t, v.Validate(map[string]interface{}{"name": "Ada", "age": 30}))
	assert.Error(t, v.Validate(map[string]interface{}{"age": 30}))
}

func TestStructValidator_JSONSchema(t *testing.T) {
	t.Parallel()

	v := NewStructSchema(reflect.TypeOf(testPerson{}))
	result := v.JSONSchema()

	assert.Equal(t, "object", result["type"])
	props, ok := result["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "age")
	assert.ElementsMatch(t, []string{"name"}, result["required"])
}

func TestSimpleJSONSchema_Validator(t *testing.T) {
	t.Parallel()

	var s Schema = NewSimpleJSONSchema(map[string]interface{}{"type": "object"})
	v := s.Validator()
	require.NotNil(t, v)
	assert.Equal(t, "object", v.JSONSchema()["type"])
}

func TestSimpleStructSchema_Validator(t *testing.T) {
	t.Parallel()

	var s Schema = NewSimpleStructSchema(reflect.TypeOf(testPerson{}))
	v := s.Validator()
	require.NotNil(t, v)
	assert.Equal(t, "object", v.JSONSchema()["type"])
}

func TestStructValidator_NestedStruct(t *testing.T) {
	t.Parallel()

	type Address struct {
		City string `json:"city" validate:"required"`
	}
	type Person struct {
		Name    string  `json:"name" validate:"required"`
		Address Address `json:"address"`
	}

	v := NewStructSchema(reflect.TypeOf(Person{}))
	assert.NoError(t, v.Validate(map[string]interface{}{
		"name":    "Ada",
		"address": map[string]interface{}{"city": "London"},
	}))
}
