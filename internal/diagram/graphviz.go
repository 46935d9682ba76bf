package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a DiagramModel as a PNG image using graphviz.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node)
	if err := addSequence(graph, graph, model.Nodes, model.Edges, gvNodes); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// addSequence creates nodes in parent and edges in root. Containers get a
// dashed cluster per case, branch or loop body.
func addSequence(root, parent *cgraph.Graph, nodes []*Node, edges []Edge, gvNodes map[string]*cgraph.Node) error {
	for _, node := range nodes {
		gvNode, err := parent.CreateNodeByName(node.ID)
		if err != nil {
			return fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		gvNode.SetLabel(firstLine(node.Label))
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode

		for _, sg := range node.Children {
			sub, err := parent.CreateSubGraphByName("cluster_" + mermaidSafeID(sg.ID))
			if err != nil {
				continue
			}
			sub.SetLabel(sg.Label)
			sub.SetStyle(cgraph.DashedGraphStyle)
			if err := addSequence(root, sub, sg.Nodes, sg.Edges, gvNodes); err != nil {
				return err
			}
			if len(sg.Nodes) > 0 {
				if first := gvNodes[sg.Nodes[0].ID]; first != nil {
					_, _ = root.CreateEdgeByName("", gvNode, first)
				}
			}
		}
	}

	for _, edge := range edges {
		fromGV, toGV := gvNodes[edge.From], gvNodes[edge.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		e, err := root.CreateEdgeByName("", fromGV, toGV)
		if err == nil && edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}
	return nil
}

// applyNodeStyle sets graphviz attributes based on node kind and status.
func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindDecision:
		gvNode.SetShape(cgraph.DiamondShape)
	case NodeKindUnsupported:
		gvNode.SetShape(cgraph.HexagonShape)
	case NodeKindJoin:
		gvNode.SetShape(cgraph.InvTrapeziumShape)
	case NodeKindTerminate:
		gvNode.SetShape(cgraph.OctagonShape)
	case NodeKindSubWorkflow:
		gvNode.SetShape(cgraph.CylinderShape)
	case NodeKindStart, NodeKindEnd:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	if node.Status != nil {
		applyStatusColor(gvNode, node.Status.Status)
	}
}

// applyStatusColor sets fill color and style based on status.
func applyStatusColor(gvNode *cgraph.Node, status string) {
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	switch status {
	case "completed":
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
	case "failed":
		gvNode.SetFillColor("#8b1a1a")
		gvNode.SetFontColor("white")
	case "running":
		gvNode.SetFillColor("#1a5276")
		gvNode.SetFontColor("white")
	case "canceled":
		gvNode.SetFillColor("#b7791a")
		gvNode.SetFontColor("white")
	case "pending", "scheduled":
		gvNode.SetFillColor("#d3d3d3")
		gvNode.SetFontColor("black")
	case "skipped":
		gvNode.SetFillColor("#e8e8e8")
		gvNode.SetFontColor("#888888")
		gvNode.SetStyle(cgraph.DashedNodeStyle)
	}
}
