package scene

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcesAreGofmt(t *testing.T) {
	files, err := filepath.Glob("*.go")
	require.NoError(t, err)
	for _, name := range files {
		src, err := os.ReadFile(name)
		require.NoError(t, err)
		got, err := format.Source(src)
		require.NoError(t, err, name)
		assert.True(t, bytes.Equal(src, got), "%s is not gofmt-formatted", name)
	}
}
