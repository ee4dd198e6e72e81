package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petsYAML = `
openapi: 3.0.3
info: {title: Pets, version: "1.0"}
paths:
  /pets:
    get:
      operationId: listPets
      tags: [pets]
      responses:
        "200": {description: ok}
  /pets/{id}:
    delete:
      tags: [pets]
      parameters:
        - {name: id, in: path, required: true, schema: {type: string}}
      responses:
        "204": {description: gone}
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeSpec(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petsYAML), 0o600))
	return path
}

func TestToolsCommand(t *testing.T) {
	t.Setenv("BASE_URL", "https://api.example.com")
	t.Setenv("HEADERS", "")

	out, err := runCLI(t, "tools", "--api="+writeSpec(t), "--schemas")
	require.NoError(t, err)

	assert.Contains(t, out, "Total tools: 2")
	assert.Contains(t, out, "  pets: 2")
	assert.Contains(t, out, "listPets  get /pets")
	assert.Contains(t, out, "deletePetsById  delete /pets/{id}")
	assert.Contains(t, out, `"pathParameters"`)
}

func TestToolsCommand_Errors(t *testing.T) {
	t.Setenv("BASE_URL", "https://api.example.com")

	_, err := runCLI(t, "tools")
	assert.ErrorContains(t, err, "--api is required")

	_, err = runCLI(t, "tools", "--api", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("BASE_URL", "")
	_, err = runCLI(t, "tools", "--api", writeSpec(t))
	assert.ErrorContains(t, err, "BASE_URL")
}

func TestDBSourceRequiresDatabaseURL(t *testing.T) {
	t.Setenv("BASE_URL", "https://api.example.com")
	t.Setenv("DATABASE_URL", "")

	_, err := runCLI(t, "tools", "--api", "db:pets")
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = runCLI(t, "specs", "list")
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestSpecsImport_RequiresFile(t *testing.T) {
	_, err := runCLI(t, "specs", "import")
	assert.Error(t, err)

	_, err = runCLI(t, "specs", "import", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read")
}
