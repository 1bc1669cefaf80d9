package restcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-5))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, 50, ClampLimit(50))
	assert.Equal(t, MaxLimit, ClampLimit(100))
	assert.Equal(t, MaxLimit, ClampLimit(101))
	assert.Equal(t, MaxLimit, ClampLimit(1<<20))
}

func TestClampOffset(t *testing.T) {
	assert.Equal(t, 0, ClampOffset(-1))
	assert.Equal(t, 0, ClampOffset(0))
	assert.Equal(t, 40, ClampOffset(40))
}
