package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerQueue(t *testing.T) {
	q := newTimerQueue[string]()
	for _, timer := range []Timer[string]{{"c", 3}, {"a", 1}, {"x", 3}, {"b", 2}, {"y", 3}, {"d", 9}} {
		assert.True(t, q.PushTimer(timer))
	}
	assert.False(t, q.PushTimer(Timer[string]{"x", 3}))
	assert.True(t, q.Remove(Timer[string]{"b", 2}))
	assert.True(t, q.Remove(Timer[string]{"x", 3}))
	assert.False(t, q.Remove(Timer[string]{"x", 3}))
	assert.Equal(t, 4, q.Len())

	head, ok := q.PeekTimer()
	require.True(t, ok)
	assert.Equal(t, Timer[string]{"a", 1}, head)

	var popped []Timer[string]
	for {
		timer, ok := q.PopTimer()
		if !ok {
			break
		}
		popped = append(popped, timer)
	}
	// equal timestamps keep insertion order
	assert.Equal(t, []Timer[string]{{"a", 1}, {"c", 3}, {"y", 3}, {"d", 9}}, popped)
	assert.True(t, q.PushTimer(Timer[string]{"x", 3}))
}
