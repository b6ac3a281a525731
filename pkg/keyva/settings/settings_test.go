package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPassesValidation(t *testing.T) {
	if err := validate.Struct(Default()); err != nil {
		t.Fatalf("Default() failed validation: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyva.yaml")
	const doc = `
options:
  block_size: 8192
  cache_size: 1024
  write_buffer_size: 2097152
  flush_interval_ms: 500
  key_file_name: custom.keys
  value_file_name: custom.values
logging:
  log_level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, uint32(8192), s.Options.BlockSize)
	assert.Equal(t, 1024, s.Options.CacheSize)
	assert.Equal(t, "custom.keys", s.Options.KeyFileName)
	assert.Equal(t, "custom.values", s.Options.ValueFileName)
	assert.Equal(t, "debug", s.Logging.LogLevel)
}

func TestLoadRejectsInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyva.yaml")
	const doc = `
options:
  block_size: 10
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for block_size below minimum")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
