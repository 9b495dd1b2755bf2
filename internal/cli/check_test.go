package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMissingSchemaFlag(t *testing.T) {
	values := writeFile(t, t.TempDir(), "draft.yaml", "title: Hello\n")

	_, err := execute(NewCheckCommand(&RootOptions{Format: "text"}), values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "schema")
}

func TestCheckValidValues(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "article.cue", articleSchema)
	values := writeFile(t, dir, "draft.yaml", "title: Hello\nbody: world\n")

	out, err := execute(NewCheckCommand(&RootOptions{Format: "text"}), "--schema", schema, values)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
}

func TestCheckInvalidValues(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "article.cue", articleSchema)
	values := writeFile(t, dir, "draft.yaml", "body: world\n")

	out, err := execute(NewCheckCommand(&RootOptions{Format: "text"}), "--schema", schema, values)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "1 invalid field(s)")
	assert.Contains(t, out, "title: required")
}

func TestCheckInvalidValuesJSON(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "article.cue", articleSchema)
	values := writeFile(t, dir, "draft.json", `{"body": "world"}`)

	out, err := execute(NewCheckCommand(&RootOptions{Format: "json"}), "--schema", schema, values)
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, "required", resp.Data.Errors["title"])
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalid, resp.Error.Code)
}

func TestCheckBrokenSchema(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "broken.cue", "#Form: {\n")
	values := writeFile(t, dir, "draft.yaml", "title: Hello\n")

	_, err := execute(NewCheckCommand(&RootOptions{Format: "text"}), "--schema", schema, values)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load schema")
}

func TestCheckDecimalValues(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "product.cue", "#Form: {\n\tprice: number & >0\n\tqty: int\n}\n")

	valid := writeFile(t, dir, "valid.yaml", "price: 9.99\nqty: 2\n")
	out, err := execute(NewCheckCommand(&RootOptions{Format: "text"}), "--schema", schema, valid)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")

	invalid := writeFile(t, dir, "invalid.yaml", "price: 9.99\nqty: 2.5\n")
	out, err = execute(NewCheckCommand(&RootOptions{Format: "text"}), "--schema", schema, invalid)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "qty:")
}

func TestCheckDottedKeyErrorPath(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "release.cue", "#Form: {\n\t\"v1.2\": string & !=\"\"\n}\n")
	values := writeFile(t, dir, "draft.yaml", "\"v1.2\": \"\"\n")

	out, err := execute(NewCheckCommand(&RootOptions{Format: "text"}), "--schema", schema, values)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `v1\.2:`)
}

func TestLoadValuesEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.yaml", "")

	values, err := loadValues(path)
	require.NoError(t, err)
	assert.Empty(t, values)
	assert.NotNil(t, values)
}

func TestLoadValuesNested(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nested.yaml", "image:\n  src: a.png\n  width: 640\ntags: [x, y]\n")

	values, err := loadValues(path)
	require.NoError(t, err)
	assert.Equal(t, `{"image":{"src":"a.png","width":640},"tags":["x","y"]}`, canonical(t, values))
}
