package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderASCIILoop(t *testing.T) {
	output := RenderASCII(Build(loopTree(), "ETL Pipeline"))
	assert.NotEmpty(t, output)

	assert.Contains(t, output, "=== ETL Pipeline ===")

	assert.Contains(t, output, "┌")
	assert.Contains(t, output, "┐")
	assert.Contains(t, output, "└")
	assert.Contains(t, output, "┘")
	assert.Contains(t, output, "│")
	assert.Contains(t, output, "▼")

	assert.Contains(t, output, "Start")
	assert.Contains(t, output, "End")
	assert.Contains(t, output, "fetch")
	assert.Contains(t, output, "--- retry sub-steps ---")
	assert.Contains(t, output, "  [loop body]")
	assert.Contains(t, output, "    transform ─→ store")
}

func TestRenderASCIIWithStatus(t *testing.T) {
	model := &DiagramModel{
		Title: "Test",
		Nodes: []*Node{
			{ID: "s", Label: "Start", Kind: NodeKindStart},
			{ID: "a", Label: "step-a", Kind: NodeKindTask, Status: &StatusOverlay{Status: "completed", DurationMs: 100}},
			{ID: "b", Label: "step-b", Kind: NodeKindTask, Status: &StatusOverlay{Status: "failed"}},
			{ID: "c", Label: "step-c", Kind: NodeKindLoop, Status: &StatusOverlay{Status: "running", Iterations: 3},
				Children: []*SubGraph{{ID: "c_body", Label: "loop body"}}},
			{ID: "d", Label: "step-d", Kind: NodeKindTask, Status: &StatusOverlay{Status: "canceled"}},
			{ID: "e", Label: "step-e", Kind: NodeKindTask, Status: &StatusOverlay{Status: "skipped"}},
			{ID: "f", Label: "step-f", Kind: NodeKindTask, Status: &StatusOverlay{Status: "pending"}},
			{ID: "end", Label: "End", Kind: NodeKindEnd},
		},
	}

	output := RenderASCII(model)

	assert.Contains(t, output, "[OK]")
	assert.Contains(t, output, "[FAIL]")
	assert.Contains(t, output, "[RUN]")
	assert.Contains(t, output, "[CANCEL]")
	assert.Contains(t, output, "[SKIP]")
	assert.Contains(t, output, "[PEND]")
	assert.Contains(t, output, "100ms")
	assert.Contains(t, output, "x3")
	assert.Contains(t, output, "(empty)")
}

func TestMakeBoxWidth(t *testing.T) {
	box := makeBox(&Node{Label: "héllo\nsecond line"})
	assert.Equal(t, 9, box.width)
	assert.Len(t, box.lines, 3)
}
