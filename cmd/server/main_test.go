package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"model-graphql/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionString(t *testing.T) {
	assert.Equal(t, "model-graphql dev (none)", versionString())
}

func TestCheckSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - modelName: Post
    fields:
      - {fieldName: id, typeIdentifier: ID, isRequired: true}
      - {fieldName: title, typeIdentifier: String}
`), 0o600))

	cfg := &config.Config{Schema: config.SchemaConfig{Path: path, OutputMode: "relay"}}
	summary, err := checkSchema(context.Background(), cfg)
	require.NoError(t, err)
	assert.Contains(t, summary, "1 models")
	assert.Contains(t, summary, "relay mode")

	cfg.Schema.OutputMode = "bogus"
	_, err = checkSchema(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Schema = config.SchemaConfig{Path: filepath.Join(t.TempDir(), "missing.yaml"), OutputMode: "simple"}
	_, err = checkSchema(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema check failed")
}
