package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for a status string.
func statusTag(status string) string {
	switch status {
	case "completed":
		return "[OK]"
	case "failed":
		return "[FAIL]"
	case "running":
		return "[RUN]"
	case "canceled":
		return "[CANCEL]"
	case "skipped":
		return "[SKIP]"
	case "scheduled":
		return "[SCHED]"
	case "pending":
		return "[PEND]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text diagram: the root sequence
// as boxes joined by connectors, followed by one section per container.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	for i, node := range model.Nodes {
		for _, line := range makeBox(node).lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if i < len(model.Nodes)-1 {
			renderConnector(&b)
		}
	}

	walkNodes(model.Nodes, func(node *Node) {
		if len(node.Children) == 0 {
			return
		}
		b.WriteString(fmt.Sprintf("\n--- %s sub-steps ---\n", node.ID))
		for _, sg := range node.Children {
			renderSubGraph(&b, sg)
		}
	})

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}

	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			contentLines = append(contentLines, tag)
		}
		if node.Status.Iterations > 0 {
			contentLines = append(contentLines, fmt.Sprintf("x%d", node.Status.Iterations))
		}
		if node.Status.DurationMs > 0 {
			contentLines = append(contentLines, fmt.Sprintf("%dms", node.Status.DurationMs))
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		maxLen = max(maxLen, len([]rune(line)))
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len([]rune(content)))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderConnector draws a vertical connector between boxes.
func renderConnector(b *strings.Builder) {
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// renderSubGraph renders one case, branch or loop body as an indented list.
func renderSubGraph(b *strings.Builder, sg *SubGraph) {
	b.WriteString(fmt.Sprintf("  [%s]\n", sg.Label))
	if len(sg.Nodes) == 0 {
		b.WriteString("    (empty)\n")
		return
	}
	for _, node := range sg.Nodes {
		tag := ""
		if node.Status != nil {
			if t := statusTag(node.Status.Status); t != "" {
				tag = " " + t
			}
		}
		b.WriteString(fmt.Sprintf("    %s%s\n", firstLine(node.Label), tag))
	}
	for _, edge := range sg.Edges {
		b.WriteString(fmt.Sprintf("    %s ─→ %s\n", edge.From, edge.To))
	}
}
