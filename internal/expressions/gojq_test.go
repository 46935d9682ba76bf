package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJQPath(t *testing.T) {
	assert.Equal(t, ".", ToJQPath(""))
	assert.Equal(t, ".name", ToJQPath("name"))
	assert.Equal(t, ".extra.workflow.id", ToJQPath("extra.workflow.id"))
	assert.Equal(t, `.extra["x-id"]`, ToJQPath("extra.x-id"))
	assert.Equal(t, `.["x-id"].y`, ToJQPath("x-id.y"))
	assert.Equal(t, ".inputParams[0].name", ToJQPath(".inputParams[0].name"))
}

func TestPathLookup(t *testing.T) {
	p := NewPathLookup()
	ctx := context.Background()
	data := map[string]any{
		"name": "http",
		"extra": map[string]any{
			"workflow": map[string]any{"id": "wf-1"},
			"x-id":     "dash",
		},
		"inputParams": []any{map[string]any{"name": "uri"}},
	}

	v, ok, err := p.Lookup(ctx, "extra.workflow.id", data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "wf-1", v)

	v, ok, err = p.Lookup(ctx, "extra.x-id", data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dash", v)

	v, ok, err = p.Lookup(ctx, ".inputParams[0].name", data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "uri", v)

	_, ok, err = p.Lookup(ctx, "extra.missing", data)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = p.Lookup(ctx, ".[", data)
	assert.Error(t, err)

	// indexing a string with a key is a runtime error
	_, _, err = p.Lookup(ctx, "name.sub", data)
	assert.Error(t, err)
}
