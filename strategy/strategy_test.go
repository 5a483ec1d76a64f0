package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialPredictsForward(t *testing.T) {
	s := NewSequential()
	s.Fetch(0)
	assert.Equal(t, []int64{1, 2, 3}, s.Prefetch(3))
}

func TestSequentialDetectsBackwardSeek(t *testing.T) {
	s := NewSequential()
	s.Fetch(5)
	s.Fetch(2)
	assert.False(t, s.IsSequential())
}

func TestSequentialDetectsRun(t *testing.T) {
	s := NewSequential()
	s.Fetch(0)
	s.Fetch(1)
	s.Fetch(2)
	assert.True(t, s.IsSequential())
}
