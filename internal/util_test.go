package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconstructPath(t *testing.T) {
	parents := []int{-1, 0, 1, 2, 0}
	parentOf := func(i int) int { return parents[i] }

	t.Run("chain", func(t *testing.T) {
		path, ok := ReconstructPath(parentOf, 3, len(parents))
		assert.True(t, ok)
		assert.Equal(t, []int{0, 1, 2, 3}, path)
	})

	t.Run("root only", func(t *testing.T) {
		path, ok := ReconstructPath(parentOf, 0, len(parents))
		assert.True(t, ok)
		assert.Equal(t, []int{0}, path)
	})

	t.Run("branch", func(t *testing.T) {
		path, ok := ReconstructPath(parentOf, 4, len(parents))
		assert.True(t, ok)
		assert.Equal(t, []int{0, 4}, path)
	})

	t.Run("cycle", func(t *testing.T) {
		looped := []int{1, 2, 0}
		path, ok := ReconstructPath(func(i int) int { return looped[i] }, 2, len(looped))
		assert.False(t, ok)
		assert.Nil(t, path)
	})
}
