package funcinfo

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

//go:noinline
func sample(i int) int {
	if i == 0 {
		return 0
	}
	return i * sample(i-1)
}

func TestBodyLen(t *testing.T) {
	pc := reflect.ValueOf(sample).Pointer()

	length := BodyLen(pc)
	assert.Greater(t, length, 0, "known function reported empty")

	// the tail of the body is shorter than the whole body
	tail := BodyLen(pc + 4)
	assert.Less(t, tail, length)
	assert.Greater(t, tail, 0)
}

func TestBodyLenUnknown(t *testing.T) {
	assert.Zero(t, BodyLen(0))
	assert.Zero(t, BodyLen(^uintptr(0)))
}
