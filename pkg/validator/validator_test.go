package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compareInput struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=2,dive,docid"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=similarity difference coverage"`
	ChunkType   string   `json:"chunk_type" validate:"chunktype"`
}

func TestValidator_ValidateWithLang(t *testing.T) {
	v := New()

	assert.Nil(t, v.ValidateWithLang(&compareInput{DocumentIDs: []string{"msa-2024", "contracts/nda:v2"}}, LangEN))

	errs := v.ValidateWithLang(&compareInput{DocumentIDs: []string{"msa"}}, LangEN)
	require.NotNil(t, errs)
	assert.Equal(t, "document_ids", errs.Errors[0].Field)
	assert.Equal(t, "min", errs.Errors[0].Tag)

	errs = v.ValidateWithLang(&compareInput{DocumentIDs: []string{"msa", "bad id!"}}, LangEN)
	require.NotNil(t, errs)
	assert.Equal(t, "docid", errs.Errors[0].Tag)
	assert.Contains(t, errs.First(), "must be a valid document id")

	errs = v.ValidateWithLang(&compareInput{DocumentIDs: []string{"a", "b"}, ChunkType: "9x"}, LangZH)
	require.NotNil(t, errs)
	assert.Contains(t, errs.First(), "分块类型")
}

func TestValidator_UnknownLangFallsBackToEnglish(t *testing.T) {
	errs := New().ValidateWithLang(&compareInput{DocumentIDs: []string{"a", "b"}, Mode: "merge"}, "fr")
	require.NotNil(t, errs)
	assert.Equal(t, "mode", errs.Errors[0].Field)
	assert.Equal(t, "oneof", errs.Errors[0].Tag)
	assert.Contains(t, errs.First(), "mode must be one of")
}

func TestValidator_GlobalIsShared(t *testing.T) {
	assert.Same(t, Global(), Global())
}

func TestValidationErrors_Helpers(t *testing.T) {
	var empty *ValidationErrors
	assert.Empty(t, empty.Error())
	assert.Empty(t, empty.First())
	assert.Nil(t, empty.ToMap())

	errs := &ValidationErrors{Errors: []FieldError{
		{Field: "query", Tag: "required", Message: "query is required"},
		{Field: "query", Tag: "max", Message: "query is too long"},
	}}

	assert.Equal(t, "validation failed: query is required; query is too long", errs.Error())
	assert.Equal(t, "query is required", errs.First())
	assert.Equal(t, 2, errs.ToMap()["count"])
}
