package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vmform/internal/ir"
)

const editDuringSaveScenario = `name: edit_during_save
description: "A title edited while the save is in flight survives the server response"
initial:
  title: A
  body: x
steps:
  - save: {}
  - edit: { path: title, value: B }
  - respond:
      values: { title: A, body: x, id: "42" }
  - expect:
      values: { title: B, body: x, id: "42" }
      outcome: reconciled
assertions:
  - type: trace_order
    kinds: [save_started, reconciled]
`

const brokenExpectScenario = `name: broken_expect
description: "Expects a value the server never returns"
initial:
  title: A
steps:
  - save: {}
  - respond:
      values: { title: A }
  - expect:
      values: { title: Z }
`

const articleSchema = `#Form: {
	title:   string & !=""
	body?:   string
	...
}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func canonical(t *testing.T, values ir.IRObject) string {
	t.Helper()
	data, err := ir.MarshalCanonical(values)
	require.NoError(t, err)
	return string(data)
}
