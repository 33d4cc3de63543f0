package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewULID_IsSortedAndUnique(t *testing.T) {
	previous := NewULID()
	for i := 0; i < 100; i++ {
		next := NewULID()
		assert.Less(t, previous, next)
		assert.Equal(t, strings.ToLower(next), next)
		previous = next
	}
}

func TestNewClientName(t *testing.T) {
	a := NewClientName("dpsim-api")
	b := NewClientName("dpsim-api")
	assert.True(t, strings.HasPrefix(a, "dpsim-api-"))
	assert.NotEqual(t, a, b)
}
