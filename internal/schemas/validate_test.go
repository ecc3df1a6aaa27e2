package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRecordsSchema_IsValidJSON(t *testing.T) {
	var v any
	require.NoError(t, json.Unmarshal([]byte(TagRecordsSchema()), &v))
}

func TestValidateTagRecords_Valid(t *testing.T) {
	doc := `[
		{"address": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "name": "Binance 14", "entity": "Binance", "source": "arkham"},
		{"address": "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359", "name": "Router"}
	]`
	assert.NoError(t, ValidateTagRecords([]byte(doc)))
}

func TestValidateTagRecords_MissingName(t *testing.T) {
	doc := `[{"address": "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359"}]`

	err := ValidateTagRecords([]byte(doc))
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Greater(t, len(validationErr.Errors), 0)
	assert.Contains(t, err.Error(), "name")
}

func TestValidateTagRecords_BadAddress(t *testing.T) {
	doc := `[{"address": "0x1234", "name": "short"}]`

	err := ValidateTagRecords([]byte(doc))
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "0.address", validationErr.Errors[0].Field)
}

func TestValidateTagRecords_NotAnArray(t *testing.T) {
	err := ValidateTagRecords([]byte(`{"address": "x"}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "(root)", validationErr.Errors[0].Field)
}

func TestValidateTagRecords_Malformed(t *testing.T) {
	err := ValidateTagRecords([]byte(`[{`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateJSONString(t *testing.T) {
	schema := `{"type": "object", "required": ["id"]}`
	assert.NoError(t, ValidateJSONString(schema, `{"id": 1}`))
	assert.Error(t, ValidateJSONString(schema, `{}`))
}
