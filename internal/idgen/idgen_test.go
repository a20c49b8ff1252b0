package idgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortedWithTime(t *testing.T) {
	first := New("mem")
	time.Sleep(2 * time.Millisecond)
	second := New("mem")

	assert.Less(t, first, second)
}

func TestNewHasKindPrefix(t *testing.T) {
	id := New("ent")
	assert.Equal(t, "ent_", id[:4])
	assert.Len(t, id, 4+10+suffixLen)
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New("mem")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
