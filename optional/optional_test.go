package optional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptional(t *testing.T) {
	var o Optional[uint32]
	assert.False(t, o.HasValue())
	assert.Equal(t, uint32(7), o.GetOr(7))
	assert.Panics(t, func() { o.Get() })

	o.Set(0)
	assert.True(t, o.HasValue())
	assert.Equal(t, uint32(0), o.Get())

	o.Reset()
	assert.False(t, o.HasValue())

	assert.Equal(t, "x", Of("x").Get())
}
