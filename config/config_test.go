package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 8, c.Limits.MaxLights)
	assert.Equal(t, 4<<20, c.Limits.StagingSizeBytes)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	t.Setenv(EnvBackend, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "viewport.yaml")
	yaml := []byte(`
width: 320
height: 200
backend: vulkan
post:
  tonemap:
    enabled: true
    exposure: 2
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 320, c.Width)
	assert.Equal(t, "vulkan", c.Backend)
	assert.True(t, c.Post.Tonemap.Enabled)
	assert.Equal(t, float32(2), c.Post.Tonemap.Exposure)
	// untouched keys keep their defaults
	assert.Equal(t, "reinhard", c.Post.Tonemap.Operator)
	assert.Equal(t, float32(0.1), c.Camera.Near)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(EnvBackend, "opengl")
	t.Setenv(EnvLogLevel, "debug")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "opengl", c.Backend)
	assert.Equal(t, slog.LevelDebug, c.Level())
}

func TestLoadRejectsInvalidSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
