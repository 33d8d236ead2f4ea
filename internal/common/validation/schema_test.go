package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "properties": {
    "postcode": {"type": "string", "minLength": 1, "maxLength": 16},
    "overrideCache": {"type": "boolean"}
  },
  "required": ["postcode"]
}`

func TestSchema_ValidateJSON(t *testing.T) {
	s, err := Compile("input", testSchema)
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantField string
		wantCode  string
	}{
		{name: "valid", doc: `{"postcode":"SW1A 1AA"}`, wantValid: true},
		{name: "valid with override", doc: `{"postcode":"SW1A 1AA","overrideCache":true,"other":1}`, wantValid: true},
		{name: "missing postcode", doc: `{}`, wantCode: "REQUIRED"},
		{name: "wrong type", doc: `{"postcode":12}`, wantField: "postcode", wantCode: "INVALID_TYPE"},
		{name: "override not bool", doc: `{"postcode":"x","overrideCache":"yes"}`, wantField: "overrideCache", wantCode: "INVALID_TYPE"},
		{name: "too long", doc: `{"postcode":"AAAAAAAAAAAAAAAAAAAAA"}`, wantField: "postcode", wantCode: "STRING_LTE"},
		{name: "malformed", doc: `{"postcode":`, wantField: "(root)", wantCode: "MALFORMED_DOCUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.ValidateJSON(tt.doc)

			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.wantValid {
				assert.Empty(t, result.Errors)
				return
			}
			require.NotEmpty(t, result.Errors)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, result.Errors[0].Field)
			}
			assert.Equal(t, tt.wantCode, result.Errors[0].Code)
			assert.NotEmpty(t, result.Summary())
		})
	}
}

func TestSchema_Validate(t *testing.T) {
	s := MustCompile("input", testSchema)

	assert.True(t, s.Validate(map[string]interface{}{"postcode": "EC1A 1BB"}).Valid)
	assert.False(t, s.Validate(map[string]interface{}{"overrideCache": true}).Valid)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)

	assert.Panics(t, func() { MustCompile("broken", `not json`) })
}
