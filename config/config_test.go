package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultSizeLimit, cfg.Pipeline.SizeLimit)
	assert.Equal(t, "per_page", cfg.Pipeline.OCRPolicy)
	assert.Equal(t, "eng", cfg.Pipeline.Language)
	assert.Equal(t, 1, cfg.Pipeline.ArtifactConcurrency)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, "local", cfg.Storage.Type)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docflow.yaml")
	yml := `
pipeline:
  sizeLimit: 2048
  ocrPolicy: whole_document
  aggressiveCleanup: true
storage:
  type: minio
  minio:
    bucket: uploads
generator:
  provider: ollama
  model: llama3
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("DOCFLOW_SIZE_LIMIT", "4096")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(4096), cfg.Pipeline.SizeLimit, "env overrides file")
	assert.Equal(t, "whole_document", cfg.Pipeline.OCRPolicy)
	assert.True(t, cfg.Pipeline.AggressiveCleanup)
	assert.Equal(t, "minio", cfg.Storage.Type)
	assert.Equal(t, "uploads", cfg.Storage.Minio.BucketName)
	assert.Equal(t, "localhost:9000", cfg.Storage.Minio.Endpoint)
	assert.Equal(t, "ollama", cfg.Generator.Provider)
	assert.Equal(t, "llama3", cfg.Generator.Model)
	// untouched sections keep defaults
	assert.Equal(t, "eng", cfg.Pipeline.Language)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("DOCFLOW_OCR_POLICY", "sometimes")
	t.Setenv("DOCFLOW_STORAGE_TYPE", "floppy")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocrPolicy")
	assert.Contains(t, err.Error(), "storage.type")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSetList(t *testing.T) {
	t.Setenv("DOCFLOW_ALLOWED_ORIGINS", " http://a.test, ,http://b.test ")
	var got []string
	setList(&got, "DOCFLOW_ALLOWED_ORIGINS")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, got)
}
