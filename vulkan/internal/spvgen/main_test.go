package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viewport-engine/vulkan"
)

func TestGenerateWritesModulesAndManifest(t *testing.T) {
	dir := t.TempDir()
	fake := func(source, stage string) ([]byte, error) { return []byte(stage + "!!"), nil }

	require.NoError(t, generate(dir, vulkan.ShaderStages, fake))
	for _, st := range vulkan.ShaderStages {
		data, err := os.ReadFile(filepath.Join(dir, st.FileName()))
		require.NoError(t, err)
		assert.Equal(t, st.Stage+"!!", string(data))
	}
	manifest, err := os.ReadFile(filepath.Join(dir, vulkan.ManifestName))
	require.NoError(t, err)
	m := vulkan.ParseManifest(manifest)
	assert.Len(t, m, len(vulkan.ShaderStages))
	assert.Equal(t, vulkan.ShaderStages[0].Digest(), m["mesh.vert.spv"])
}

func TestGenerateFailureLeavesNoManifest(t *testing.T) {
	dir := t.TempDir()
	broken := func(string, string) ([]byte, error) { return nil, errors.New("no compiler") }

	err := generate(dir, vulkan.ShaderStages, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mesh.vert")
	_, statErr := os.Stat(filepath.Join(dir, vulkan.ManifestName))
	assert.True(t, os.IsNotExist(statErr))
}
