package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry_RegisterAndLookup(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("canvas-1", "session-abc")
	sid, ok := r.SessionFor("canvas-1")
	assert.True(t, ok)
	assert.Equal(t, "session-abc", sid)
}

func TestSessionRegistry_NotFound(t *testing.T) {
	r := NewSessionRegistry()

	_, ok := r.SessionFor("unknown")
	assert.False(t, ok)
}

func TestSessionRegistry_Reconnect(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("canvas-1", "session-old")
	r.Register("canvas-1", "session-new")

	sid, ok := r.SessionFor("canvas-1")
	assert.True(t, ok)
	assert.Equal(t, "session-new", sid)
}

func TestSessionRegistry_Remove(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("canvas-1", "session-1")
	r.Register("canvas-2", "session-1")
	r.Register("canvas-3", "session-2")
	r.Remove("session-1")

	_, ok := r.SessionFor("canvas-1")
	assert.False(t, ok)
	_, ok = r.SessionFor("canvas-2")
	assert.False(t, ok)
	assert.Equal(t, []string{"session-2"}, r.SessionIDs())
}

func TestSessionRegistry_SessionIDsDistinct(t *testing.T) {
	r := NewSessionRegistry()

	r.Register("canvas-1", "session-1")
	r.Register("canvas-2", "session-1")

	assert.Equal(t, []string{"session-1"}, r.SessionIDs())
}
