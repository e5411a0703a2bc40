package vulkan

import (
	"encoding/binary"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeModule(tag uint32) []byte {
	spv := make([]byte, 20)
	binary.LittleEndian.PutUint32(spv, spirvMagic)
	binary.LittleEndian.PutUint32(spv[16:], tag)
	return spv
}

func TestLoadSPIRV(t *testing.T) {
	st := ShaderStages[0]
	good := fakeModule(1)
	compiled := fakeModule(2)

	tests := []struct {
		name         string
		files        fstest.MapFS
		wantEmbedded bool
		want         []byte
	}{
		{
			name: "current manifest",
			files: fstest.MapFS{
				"spirv/" + ManifestName:  {Data: FormatManifest(ShaderStages)},
				"spirv/" + st.FileName(): {Data: good},
			},
			wantEmbedded: true,
			want:         good,
		},
		{
			name: "stale digest",
			files: fstest.MapFS{
				"spirv/" + ManifestName:  {Data: []byte(st.FileName() + " 00ff\n")},
				"spirv/" + st.FileName(): {Data: good},
			},
			want: compiled,
		},
		{
			name:  "not generated",
			files: fstest.MapFS{"spirv/README.md": {Data: []byte("x")}},
			want:  compiled,
		},
		{
			name: "truncated module",
			files: fstest.MapFS{
				"spirv/" + ManifestName:  {Data: FormatManifest(ShaderStages)},
				"spirv/" + st.FileName(): {Data: good[:6]},
			},
			want: compiled,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			compile := func(source, stage string) ([]byte, error) {
				calls++
				assert.Equal(t, st.GLSL, source)
				assert.Equal(t, "vert", stage)
				return compiled, nil
			}
			spv, embedded, err := loadSPIRV(tt.files, st, compile)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmbedded, embedded)
			assert.Equal(t, tt.want, spv)
			if tt.wantEmbedded {
				assert.Zero(t, calls, "embedded modules need no compiler")
			}
		})
	}
}

func TestLoadSPIRVWithoutCompiler(t *testing.T) {
	noCompiler := func(string, string) ([]byte, error) { return nil, errors.New("glslc not found") }
	_, _, err := loadSPIRV(fstest.MapFS{}, ShaderStages[1], noCompiler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mesh.frag")
	assert.Contains(t, err.Error(), "go generate")
}

// A checked-in module must have been built from the current source.
func TestEmbeddedSPIRVIsCurrent(t *testing.T) {
	manifest, err := spirvFS.ReadFile("spirv/" + ManifestName)
	if err != nil {
		t.Skip("SPIR-V not generated yet")
	}
	m := ParseManifest(manifest)
	for _, st := range ShaderStages {
		assert.Equal(t, st.Digest(), m[st.FileName()], "%s is stale, run go generate ./vulkan", st.Name)
		_, ok := embeddedSPIRV(spirvFS, st)
		assert.True(t, ok, st.Name)
	}
}

func TestParseManifestSkipsMalformedLines(t *testing.T) {
	m := ParseManifest([]byte("a.spv 01\n\nbroken\nb.spv 02 extra\nc.spv 03\n"))
	assert.Equal(t, map[string]string{"a.spv": "01", "c.spv": "03"}, m)
}
