package asset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Format is a model file format the renderer can load.
type Format int

const (
	FormatUnknown Format = iota
	FormatGLB
	FormatGLTF
	FormatOBJ
)

func (f Format) String() string {
	switch f {
	case FormatGLB:
		return "glb"
	case FormatGLTF:
		return "gltf"
	case FormatOBJ:
		return "obj"
	}
	return "unknown"
}

// Ext returns the file extension the renderer keys its loader on.
func (f Format) Ext() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + f.String()
}

// glbType registers binary glTF with filetype so it is recognized by magic bytes.
var glbType = filetype.NewType("glb", "model/gltf-binary")

func init() {
	filetype.AddMatcher(glbType, func(buf []byte) bool {
		return len(buf) >= 4 && string(buf[:4]) == "glTF"
	})
}

// DetectFormat identifies data by magic bytes first, then by the name's extension, then by a
// text sniff. Recognized non-model files (images, archives...) are rejected by name.
func DetectFormat(name string, data []byte) (Format, error) {
	if len(data) == 0 {
		return FormatUnknown, fmt.Errorf("%w: empty file", ErrUnsupportedFormat)
	}
	kind, err := filetype.Match(data)
	if err == nil && kind == glbType {
		return FormatGLB, nil
	}
	if err == nil && kind != filetype.Unknown {
		return FormatUnknown, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, kind.Extension, kind.MIME.Value)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".glb":
		return FormatGLB, nil
	case ".gltf":
		return FormatGLTF, nil
	case ".obj":
		return FormatOBJ, nil
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return FormatGLTF, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

const (
	glbMagic      = 0x46546C67 // "glTF"
	glbChunkJSON  = 0x4E4F534A // "JSON"
	glbHeaderSize = 12
	glbChunkHead  = 8
)

// Validate checks that data is a well-formed file of format with at least one mesh.
func Validate(format Format, data []byte) error {
	switch format {
	case FormatGLB:
		return validateGLB(data)
	case FormatGLTF:
		return validateGLTF(data)
	case FormatOBJ:
		return validateOBJ(data)
	}
	return ErrUnsupportedFormat
}

func validateGLB(data []byte) error {
	if len(data) < glbHeaderSize+glbChunkHead {
		return fmt.Errorf("glb: truncated header (%d bytes)", len(data))
	}
	le := binary.LittleEndian
	if le.Uint32(data[0:4]) != glbMagic {
		return fmt.Errorf("glb: bad magic")
	}
	if v := le.Uint32(data[4:8]); v != 2 {
		return fmt.Errorf("glb: unsupported container version %d", v)
	}
	total := uint64(le.Uint32(data[8:12]))
	if total > uint64(len(data)) || total < glbHeaderSize+glbChunkHead {
		return fmt.Errorf("glb: declared length %d does not fit %d bytes", total, len(data))
	}
	chunkLen := uint64(le.Uint32(data[12:16]))
	if le.Uint32(data[16:20]) != glbChunkJSON {
		return fmt.Errorf("glb: first chunk is not JSON")
	}
	end := glbHeaderSize + glbChunkHead + chunkLen
	if end > total {
		return fmt.Errorf("glb: JSON chunk of %d bytes overruns container", chunkLen)
	}
	return validateGLTF(data[glbHeaderSize+glbChunkHead : end])
}

type gltfDocument struct {
	Asset *struct {
		Version string `json:"version"`
	} `json:"asset"`
	Meshes []json.RawMessage `json:"meshes"`
}

func validateGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("gltf: %w", err)
	}
	if doc.Asset == nil || doc.Asset.Version == "" {
		return fmt.Errorf("gltf: missing asset.version")
	}
	if len(doc.Meshes) == 0 {
		return fmt.Errorf("gltf: document has no meshes")
	}
	return nil
}

func validateOBJ(data []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if strings.HasPrefix(strings.TrimSpace(sc.Text()), "v ") {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("obj: %w", err)
	}
	return fmt.Errorf("obj: no vertex data")
}
