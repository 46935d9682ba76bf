package diagram

import (
	"context"
	"testing"

	"github.com/rendis/flowgraph/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertPNG(t *testing.T, png []byte) {
	t.Helper()
	require.Greater(t, len(png), 8, "PNG should be larger than header")
	assert.Equal(t, byte(0x89), png[0])
	assert.Equal(t, byte('P'), png[1])
	assert.Equal(t, byte('N'), png[2])
	assert.Equal(t, byte('G'), png[3])
}

func TestRenderImageLoop(t *testing.T) {
	png, err := RenderImage(context.Background(), Build(loopTree(), "ETL Pipeline"))
	require.NoError(t, err)
	assertPNG(t, png)
}

func TestRenderImageDecisionWithStatus(t *testing.T) {
	tr := decisionTree()
	tr.SetStatuses(map[string]tree.Status{"ship": {State: tree.StateCompleted}})

	png, err := RenderImage(context.Background(), Build(tr, ""))
	require.NoError(t, err)
	assertPNG(t, png)
}
