package gpu

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// ErrInvalidUsage is returned when the engine is asked to do something which
// can only be the result of a defect in the calling code: an unknown feature
// flag, an image layout transition nobody implemented and the like. It is never
// caused by the environment the program runs in.
var ErrInvalidUsage = errors.New("invalid usage")

// Invalidf returns an error wrapping ErrInvalidUsage.
func Invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidUsage, format, args...)
}

// VK_ERROR_INVALID_SHADER_NV. Drivers report it when a shader module fails
// their own validation during pipeline creation.
const resultErrorInvalidShader vk.Result = -1000012000

// Kind classifies the cause of a failed Vulkan call.
type Kind int

// The causes distinguished in error messages.
const (
	KindOther Kind = iota
	KindHostMemory
	KindDeviceMemory
	KindInvalidShader
)

func (k Kind) String() string {
	switch k {
	case KindHostMemory:
		return "out of host memory"
	case KindDeviceMemory:
		return "out of device memory"
	case KindInvalidShader:
		return "invalid shader"
	default:
		return "other"
	}
}

// ResultError is a failed Vulkan call.
type ResultError struct {
	Result vk.Result
}

// Check converts a Vulkan result into an error. Only vk.Success is nil.
func Check(res vk.Result) error {
	if res == vk.Success {
		return nil
	}
	return &ResultError{Result: res}
}

// Kind returns the class of the failure.
func (e *ResultError) Kind() Kind {
	switch e.Result {
	case vk.ErrorOutOfHostMemory:
		return KindHostMemory
	case vk.ErrorOutOfDeviceMemory:
		return KindDeviceMemory
	case resultErrorInvalidShader:
		return KindInvalidShader
	default:
		return KindOther
	}
}

func (e *ResultError) Error() string {
	msg := fmt.Sprintf("vulkan result %d", e.Result)
	if err := vk.Error(e.Result); err != nil {
		msg = err.Error()
	}
	if kind := e.Kind(); kind != KindOther {
		return fmt.Sprintf("%s (%s)", msg, kind)
	}
	return msg
}

// KindOf digs a ResultError out of err and returns its kind. Errors which do
// not originate from a Vulkan call are KindOther.
func KindOf(err error) Kind {
	var resErr *ResultError
	if errors.As(err, &resErr) {
		return resErr.Kind()
	}
	return KindOther
}

// NoSuitableDeviceError is returned when there is no GPU at all or none of the
// available ones satisfies the requirements of the engine.
type NoSuitableDeviceError struct {
	// Rejected maps a device name to the reason it was rejected.
	Rejected map[string]string
}

func (e *NoSuitableDeviceError) Error() string {
	if len(e.Rejected) == 0 {
		return "failed to find a GPU with Vulkan support"
	}

	reasons := make([]string, 0, len(e.Rejected))
	for name, reason := range e.Rejected {
		reasons = append(reasons, fmt.Sprintf("%s: %s", name, reason))
	}
	return fmt.Sprintf("failed to find a compatible GPU (%s)", strings.Join(reasons, "; "))
}

// UnsupportedFormatError is returned when none of the candidate formats is
// supported with the requested tiling and features.
type UnsupportedFormatError struct {
	Candidates []vk.Format
	Tiling     vk.ImageTiling
	Features   vk.FormatFeatureFlags
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf(
		"none of the formats %v supports features %#x with tiling %d",
		e.Candidates, e.Features, e.Tiling,
	)
}

// PipelineCreationError is a failure while building the graphics pipeline or
// one of the objects it is made of.
type PipelineCreationError struct {
	Step string
	Err  error
}

func (e *PipelineCreationError) Error() string {
	return fmt.Sprintf("pipeline creation failed at %s: %s", e.Step, e.Err)
}

func (e *PipelineCreationError) Unwrap() error {
	return e.Err
}

// Kind tells host memory, device memory and shader validation failures apart.
func (e *PipelineCreationError) Kind() Kind {
	return KindOf(e.Err)
}
