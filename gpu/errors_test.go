package gpu_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"

	"github.com/NocaToca/Calico/gpu"
)

func TestCheck(t *testing.T) {
	assert.NoError(t, gpu.Check(vk.Success))

	err := gpu.Check(vk.ErrorOutOfDeviceMemory)
	require.Error(t, err)

	var resErr *gpu.ResultError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, vk.ErrorOutOfDeviceMemory, resErr.Result)
	assert.Equal(t, gpu.KindDeviceMemory, resErr.Kind())
	assert.Contains(t, err.Error(), "out of device memory")
}

func TestCheckTreatsPositiveResultsAsErrors(t *testing.T) {
	err := gpu.Check(vk.Suboptimal)
	require.Error(t, err)
	assert.Equal(t, gpu.KindOther, gpu.KindOf(err))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want gpu.Kind
	}{
		{"host memory", gpu.Check(vk.ErrorOutOfHostMemory), gpu.KindHostMemory},
		{"device memory", gpu.Check(vk.ErrorOutOfDeviceMemory), gpu.KindDeviceMemory},
		{"invalid shader", gpu.Check(vk.Result(-1000012000)), gpu.KindInvalidShader},
		{"other result", gpu.Check(vk.ErrorDeviceLost), gpu.KindOther},
		{"wrapped", errors.Wrap(gpu.Check(vk.ErrorOutOfHostMemory), "creating buffer"), gpu.KindHostMemory},
		{"not vulkan", errors.New("boom"), gpu.KindOther},
		{"nil", nil, gpu.KindOther},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, gpu.KindOf(test.err))
		})
	}
}

func TestPipelineCreationError(t *testing.T) {
	err := error(&gpu.PipelineCreationError{
		Step: "graphics pipeline",
		Err:  errors.Wrap(gpu.Check(vk.Result(-1000012000)), "vkCreateGraphicsPipelines"),
	})

	var pipeErr *gpu.PipelineCreationError
	require.True(t, errors.As(err, &pipeErr))
	assert.Equal(t, gpu.KindInvalidShader, pipeErr.Kind())
	assert.Equal(t, gpu.KindInvalidShader, gpu.KindOf(err))
	assert.Contains(t, err.Error(), "graphics pipeline")
}

func TestInvalidf(t *testing.T) {
	err := gpu.Invalidf("unsupported layout transition %d -> %d", 1, 2)
	assert.True(t, errors.Is(err, gpu.ErrInvalidUsage))
	assert.Contains(t, err.Error(), "unsupported layout transition 1 -> 2")
}

func TestNoSuitableDeviceError(t *testing.T) {
	none := &gpu.NoSuitableDeviceError{}
	assert.Equal(t, "failed to find a GPU with Vulkan support", none.Error())

	rejected := &gpu.NoSuitableDeviceError{Rejected: map[string]string{
		"llvmpipe": "not a discrete GPU",
	}}
	assert.Contains(t, rejected.Error(), "failed to find a compatible GPU")
	assert.Contains(t, rejected.Error(), "llvmpipe: not a discrete GPU")
}
