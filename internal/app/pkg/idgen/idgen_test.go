package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(RunIDPrefix)+32)
	assert.True(t, ValidRunID(a))
	assert.False(t, ValidRunID("run_xyz"))
	assert.False(t, ValidRunID(NewRequestID()))
}
