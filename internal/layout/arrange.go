package layout

import (
	"github.com/rendis/flowgraph/internal/normalize"
	"github.com/rendis/flowgraph/internal/tree"
)

// metrics are the node and spacing sizes of one density.
type metrics struct {
	nodeW, nodeH      float64
	gapMain, gapCross float64
	inset, header     float64
}

func metricsFor(d Density) metrics {
	if d == DensitySimple {
		return metrics{nodeW: 180, nodeH: 48, gapMain: 32, gapCross: 48, inset: 16, header: 32}
	}
	return metrics{nodeW: 280, nodeH: 120, gapMain: 60, gapCross: 80, inset: 24, header: 48}
}

// main is the node size along the flow direction.
func (m metrics) main(d Direction) float64 {
	if d == DirectionLR {
		return m.nodeW
	}
	return m.nodeH
}

func (m metrics) cross(d Direction) float64 {
	if d == DirectionLR {
		return m.nodeH
	}
	return m.nodeW
}

// Extent is the arranged content size and the counts Estimate needs.
type Extent struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	NodeCount int     `json:"node_count"`
	Depth     int     `json:"depth"`
	Breadth   int     `json:"breadth"`
}

// Params returns Estimate parameters for a container of the given size.
func (e Extent) Params(width, height float64, d Direction, density Density) Params {
	return Params{
		Width: width, Height: height,
		NodeCount: e.NodeCount, Depth: e.Depth, Breadth: e.Breadth,
		Direction: d, Density: density,
		ContentWidth: e.Width, ContentHeight: e.Height,
	}
}

type size struct{ cross, main float64 }

type arranger struct {
	m         metrics
	dir       Direction
	kinds     map[string]normalize.Kind
	children  map[string][]string
	sizes     map[string]size
	positions map[string]tree.Position
}

// Arrange places every node of tr and writes the positions back. Containers
// enclose their children: loops, cases and branches stack them along the
// flow, decisions and forks spread their arms across it.
func Arrange(tr *tree.Tree, d Direction, density Density) Extent {
	a := &arranger{
		m:         metricsFor(density),
		dir:       d,
		kinds:     make(map[string]normalize.Kind),
		children:  make(map[string][]string),
		sizes:     make(map[string]size),
		positions: make(map[string]tree.Position),
	}
	tr.Walk(func(n *tree.Node) bool {
		a.kinds[n.ID] = n.Kind
		a.children[n.ID] = append([]string(nil), n.Children...)
		return true
	})
	roots := tr.Roots()

	var total size
	breadth := 1
	for i, id := range roots {
		s := a.measure(id)
		total.cross = max(total.cross, s.cross)
		total.main += s.main
		if i > 0 {
			total.main += a.m.gapMain
		}
		breadth = max(breadth, a.breadth(id))
	}
	cursor := 0.0
	for _, id := range roots {
		s := a.sizes[id]
		a.place(id, (total.cross-s.cross)/2, cursor)
		cursor += s.main + a.m.gapMain
	}
	tr.SetPositions(a.positions)

	e := Extent{NodeCount: tr.Len(), Depth: tr.Depth(), Breadth: breadth}
	e.Width, e.Height = a.screen(total)
	return e
}

func (a *arranger) measure(id string) size {
	if s, ok := a.sizes[id]; ok {
		return s
	}
	leaf := size{cross: a.m.cross(a.dir), main: a.m.main(a.dir)}
	kids := a.children[id]
	var s size
	switch a.kinds[id] {
	case normalize.KindLoop, normalize.KindCase, normalize.KindBranch:
		if len(kids) == 0 {
			s = size{cross: leaf.cross + 2*a.m.inset, main: a.m.header + leaf.main + a.m.inset}
			break
		}
		s.cross = leaf.cross
		s.main = a.m.header + a.m.inset
		for i, c := range kids {
			cs := a.measure(c)
			s.cross = max(s.cross, cs.cross)
			s.main += cs.main
			if i > 0 {
				s.main += a.m.gapMain
			}
		}
		s.cross += 2 * a.m.inset
	case normalize.KindDecision, normalize.KindFork:
		if len(kids) == 0 {
			s = leaf
			break
		}
		s.cross = 2 * a.m.inset
		for i, c := range kids {
			cs := a.measure(c)
			s.cross += cs.cross
			if i > 0 {
				s.cross += a.m.gapCross
			}
			s.main = max(s.main, cs.main)
		}
		s.main += a.m.header + a.m.inset
	default:
		s = leaf
	}
	a.sizes[id] = s
	return s
}

func (a *arranger) place(id string, cross, main float64) {
	s := a.sizes[id]
	x, y := a.screen(size{cross: cross, main: main})
	w, h := a.screen(s)
	a.positions[id] = tree.Position{X: x, Y: y, Width: w, Height: h}

	kids := a.children[id]
	switch a.kinds[id] {
	case normalize.KindLoop, normalize.KindCase, normalize.KindBranch:
		cursor := main + a.m.header
		for _, c := range kids {
			cs := a.sizes[c]
			a.place(c, cross+(s.cross-cs.cross)/2, cursor)
			cursor += cs.main + a.m.gapMain
		}
	case normalize.KindDecision, normalize.KindFork:
		cursor := cross + a.m.inset
		for _, c := range kids {
			a.place(c, cursor, main+a.m.header)
			cursor += a.sizes[c].cross + a.m.gapCross
		}
	}
}

// breadth counts the leaf columns a node spans across the flow.
func (a *arranger) breadth(id string) int {
	kids := a.children[id]
	switch a.kinds[id] {
	case normalize.KindDecision, normalize.KindFork:
		n := 0
		for _, c := range kids {
			n += a.breadth(c)
		}
		return max(n, 1)
	default:
		n := 1
		for _, c := range kids {
			n = max(n, a.breadth(c))
		}
		return n
	}
}

// screen maps flow coordinates to x/y.
func (a *arranger) screen(s size) (float64, float64) {
	if a.dir == DirectionLR {
		return s.main, s.cross
	}
	return s.cross, s.main
}
