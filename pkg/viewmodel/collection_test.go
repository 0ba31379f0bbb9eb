package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionAccept(t *testing.T) {
	var c Collection[int]
	assert.False(t, c.Loaded())

	assert.True(t, c.Accept(2, []int{1, 2}))
	assert.True(t, c.Loaded())
	assert.Equal(t, []int{1, 2}, c.Items())

	assert.False(t, c.Accept(1, []int{9}), "older response is stale")
	assert.Equal(t, []int{1, 2}, c.Items())

	assert.True(t, c.Accept(3, []int{}))
	assert.Empty(t, c.Items())
	assert.True(t, c.Loaded(), "an empty list is still a result")
	assert.Equal(t, uint64(3), c.Seq())
}

func TestCollectionFailKeepsItems(t *testing.T) {
	var c Collection[string]
	c.Accept(1, []string{"a"})

	assert.True(t, c.Fail(2))
	assert.True(t, c.Failed())
	assert.Equal(t, []string{"a"}, c.Items())

	assert.False(t, c.Fail(1))
	assert.True(t, c.Accept(3, []string{"b"}))
	assert.False(t, c.Failed())
}
