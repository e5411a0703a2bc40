package vulkan

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io/fs"
	"strings"
)

//go:generate go run ./internal/spvgen --dir spirv

// spirvFS holds the modules go generate compiled from ShaderStages, plus
// a manifest of the source digests they were built from.
//
//go:embed spirv
var spirvFS embed.FS

// ManifestName is the manifest file inside the spirv directory. Each line
// is "<name>.spv <sha256 of the GLSL source>".
const ManifestName = "manifest.txt"

// ShaderStage is one GLSL entry point of the mesh pipeline.
type ShaderStage struct {
	Name  string // file stem, e.g. mesh.vert
	Stage string // glslc stage: vert or frag
	GLSL  string
}

// ShaderStages lists the vertex stage first, then the fragment stage.
var ShaderStages = []ShaderStage{
	{Name: "mesh.vert", Stage: "vert", GLSL: vertexSrc},
	{Name: "mesh.frag", Stage: "frag", GLSL: fragmentSrc},
}

// Digest is the hex SHA-256 of the stage's GLSL source.
func (s ShaderStage) Digest() string {
	sum := sha256.Sum256([]byte(s.GLSL))
	return hex.EncodeToString(sum[:])
}

// FileName is the stage's SPIR-V file inside the spirv directory.
func (s ShaderStage) FileName() string { return s.Name + ".spv" }

// ParseManifest reads a manifest into file name -> digest.
func ParseManifest(data []byte) map[string]string {
	m := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 2 {
			m[fields[0]] = fields[1]
		}
	}
	return m
}

// FormatManifest writes one line per stage, in ShaderStages order.
func FormatManifest(stages []ShaderStage) []byte {
	var b bytes.Buffer
	for _, st := range stages {
		fmt.Fprintf(&b, "%s %s\n", st.FileName(), st.Digest())
	}
	return b.Bytes()
}

// loadSPIRV returns the embedded module for st when the manifest records
// the current source digest. Otherwise it compiles st with compile and
// reports embedded as false.
func loadSPIRV(fsys fs.FS, st ShaderStage, compile func(source, stage string) ([]byte, error)) (spv []byte, embedded bool, err error) {
	if spv, ok := embeddedSPIRV(fsys, st); ok {
		return spv, true, nil
	}
	spv, err = compile(st.GLSL, st.Stage)
	if err != nil {
		return nil, false, fmt.Errorf("no embedded SPIR-V for %s (run go generate ./vulkan): %w", st.Name, err)
	}
	return spv, false, nil
}

func embeddedSPIRV(fsys fs.FS, st ShaderStage) ([]byte, bool) {
	manifest, err := fs.ReadFile(fsys, "spirv/"+ManifestName)
	if err != nil || ParseManifest(manifest)[st.FileName()] != st.Digest() {
		return nil, false
	}
	spv, err := fs.ReadFile(fsys, "spirv/"+st.FileName())
	if err != nil || !validSPIRV(spv) {
		return nil, false
	}
	return spv, true
}

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

func validSPIRV(spv []byte) bool {
	if len(spv) < 20 || len(spv)%4 != 0 {
		return false
	}
	return binary.LittleEndian.Uint32(spv) == spirvMagic
}
