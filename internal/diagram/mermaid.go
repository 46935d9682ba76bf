package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
// Containers become nested subgraphs.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	// Title as comment.
	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	writeMermaidSequence(&b, model.Nodes, model.Edges, "    ")

	// Status class definitions.
	b.WriteString("\n")
	b.WriteString("    classDef completed fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef running fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef canceled fill:#b7791a,stroke:#8a5c14,color:#fff\n")
	b.WriteString("    classDef pending fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
	b.WriteString("    classDef skipped fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")

	walkNodes(model.Nodes, func(node *Node) {
		if node.Status == nil {
			return
		}
		if cls := mermaidStatusClass(node.Status.Status); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), cls))
		}
	})

	return b.String()
}

func writeMermaidSequence(b *strings.Builder, nodes []*Node, edges []Edge, indent string) {
	for _, node := range nodes {
		b.WriteString(indent + mermaidNodeDef(node) + "\n")
		for _, sg := range node.Children {
			b.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s: %s\"]\n",
				indent, mermaidSafeID(sg.ID), node.ID, mermaidEscapeLabel(sg.Label)))
			writeMermaidSequence(b, sg.Nodes, sg.Edges, indent+"    ")
			b.WriteString(indent + "end\n")
		}
	}
	for _, edge := range edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("%s%s -->%s %s\n",
			indent, mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}
}

// walkNodes visits every node depth-first, nested sequences included.
func walkNodes(nodes []*Node, fn func(*Node)) {
	for _, n := range nodes {
		fn(n)
		for _, sg := range n.Children {
			walkNodes(sg.Nodes, fn)
		}
	}
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(firstLine(node.Label))

	switch node.Kind {
	case NodeKindDecision:
		return fmt.Sprintf("%s{%q}", id, label)
	case NodeKindFork, NodeKindLoop:
		return fmt.Sprintf("%s[[%q]]", id, label)
	case NodeKindJoin:
		return fmt.Sprintf("%s[/%q\\]", id, label)
	case NodeKindSubWorkflow:
		return fmt.Sprintf("%s[(%q)]", id, label)
	case NodeKindTerminate:
		return fmt.Sprintf("%s>%q]", id, label)
	case NodeKindUnsupported:
		return fmt.Sprintf("%s{{%q}}", id, label)
	case NodeKindStart, NodeKindEnd:
		return fmt.Sprintf("%s((%q))", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

var mermaidIDReplacer = strings.NewReplacer(
	".", "_", "-", "_", " ", "_", "#", "_", ":", "_", "[", "_", "]", "_",
)

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	return mermaidIDReplacer.Replace(id)
}

// mermaidEscapeLabel drops quotes, which %q would otherwise escape in a way
// Mermaid does not understand.
func mermaidEscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}

// mermaidStatusClass maps a status string to a Mermaid class name.
func mermaidStatusClass(status string) string {
	switch status {
	case "completed":
		return "completed"
	case "failed":
		return "failed"
	case "running":
		return "running"
	case "canceled":
		return "canceled"
	case "pending", "scheduled":
		return "pending"
	case "skipped":
		return "skipped"
	default:
		return ""
	}
}
