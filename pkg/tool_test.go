package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains([]string{"a", "b"}, "c"))
	assert.False(t, Contains(nil, "a"))
}

func TestAppendIfNotExists(t *testing.T) {
	s := AppendIfNotExists(nil, "a")
	s = AppendIfNotExists(s, "a")
	s = AppendIfNotExists(s, "b")
	assert.Equal(t, []string{"a", "b"}, s)
}
