package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueFIFO(t *testing.T) {
	var q eventQueue
	q.push(Event{Kind: Started, PadID: 1})
	q.push(Event{Kind: Success, PadID: 2})

	got, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, Started, got.Kind)
	assert.Equal(t, 1, got.PadID)

	got, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, Success, got.Kind)
	assert.Equal(t, 2, got.PadID)

	_, ok = q.pop()
	assert.False(t, ok)
}
