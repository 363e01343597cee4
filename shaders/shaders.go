// Package shaders loads precompiled SPIR-V shaders. The GLSL sources of the
// default shaders live next to this file. Run `go generate` in order to compile
// them again.
package shaders

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
	"github.com/NocaToca/Calico/unsafer"
)

//go:generate ./compile.sh

// Stage is the pipeline stage a shader runs in.
type Stage int

// The shader stages used by the graphics pipeline. The zero value is not a
// stage, so a shader whose stage was never set is rejected by Flag.
const (
	StageUnknown Stage = iota
	StageFragment
	StageVertex
)

func (s Stage) String() string {
	switch s {
	case StageFragment:
		return "fragment"
	case StageVertex:
		return "vertex"
	default:
		return "unknown"
	}
}

// Flag returns the Vulkan stage bit of s.
func (s Stage) Flag() (vk.ShaderStageFlagBits, error) {
	switch s {
	case StageFragment:
		return vk.ShaderStageFragmentBit, nil
	case StageVertex:
		return vk.ShaderStageVertexBit, nil
	default:
		return 0, gpu.Invalidf("unknown shader stage %d", int(s))
	}
}

// ParseStage converts the name of a stage to a Stage.
func ParseStage(name string) (Stage, error) {
	switch strings.ToLower(name) {
	case "fragment", "frag":
		return StageFragment, nil
	case "vertex", "vert":
		return StageVertex, nil
	default:
		return 0, gpu.Invalidf("unknown shader stage %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if _, err := s.Flag(); err != nil {
		return nil, err
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}

// Source is the byte code of one shader.
type Source struct {
	Path  string
	Stage Stage
	Code  []byte
}

// Load reads the whole SPIR-V file at path. The content is not validated
// beyond being readable.
func Load(path string, stage Stage) (Source, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return Source{}, errors.Wrapf(err, "failed to read %s shader", stage)
	}
	return Source{Path: path, Stage: stage, Code: code}, nil
}

// Words returns the byte code as 32 bit words, which is how Vulkan consumes
// it. A trailing partial word is padded with zeros.
func (s Source) Words() []uint32 {
	words := make([]uint32, (len(s.Code)+3)/4)
	copy(unsafer.SliceToBytes(words), s.Code)
	return words
}
