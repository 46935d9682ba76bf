// Package layout sizes the canvas transform and places nodes.
package layout

import (
	"fmt"
	"math"
)

// Direction is the render direction of the root sequence.
type Direction string

const (
	DirectionTB Direction = "TB"
	DirectionLR Direction = "LR"
)

// ParseDirection accepts TB or LR in any case; empty means TB.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "TB", "tb":
		return DirectionTB, nil
	case "LR", "lr":
		return DirectionLR, nil
	}
	return "", fmt.Errorf("unknown direction %q (want TB or LR)", s)
}

// Density is the visual density of rendered nodes.
type Density string

const (
	DensityComplicated Density = "complicated"
	DensitySimple      Density = "simple"
)

// ParseDensity accepts complicated or simple; empty means complicated.
func ParseDensity(s string) (Density, error) {
	switch Density(s) {
	case "", DensityComplicated:
		return DensityComplicated, nil
	case DensitySimple:
		return DensitySimple, nil
	}
	return "", fmt.Errorf("unknown density %q (want complicated or simple)", s)
}

const (
	MinZoom        = 0.2
	MaxZoom        = 1.0
	DefaultPadding = 40.0
)

// Params are the inputs of Estimate. ContentWidth and ContentHeight, when
// set, replace the extent estimated from the counts.
type Params struct {
	Width     float64
	Height    float64
	NodeCount int
	Depth     int
	Breadth   int
	Direction Direction
	Density   Density

	ContentWidth  float64
	ContentHeight float64
}

// Result is the canvas transform.
type Result struct {
	Zoom    float64 `json:"zoom"`
	Padding float64 `json:"padding"`
}

// Padding tapers with node count so tiny graphs do not float in empty space.
func Padding(nodeCount int) float64 {
	switch {
	case nodeCount <= 2:
		return 160
	case nodeCount <= 5:
		return 100
	case nodeCount <= 10:
		return 60
	default:
		return DefaultPadding
	}
}

// Estimate returns the zoom that fits the node extent into the container,
// clamped to [MinZoom, MaxZoom]. Degenerate input yields zoom 1 with the
// default padding.
func Estimate(p Params) Result {
	neutral := Result{Zoom: 1, Padding: DefaultPadding}
	if p.NodeCount <= 0 || !finite(p.Width, p.Height, p.ContentWidth, p.ContentHeight) {
		return neutral
	}

	pad := Padding(p.NodeCount)
	w, h := p.ContentWidth, p.ContentHeight
	if w <= 0 || h <= 0 {
		w, h = extent(p)
	}
	availW := p.Width - 2*pad
	availH := p.Height - 2*pad
	if w <= 0 || h <= 0 {
		return neutral
	}
	if availW <= 0 || availH <= 0 {
		return Result{Zoom: MinZoom, Padding: pad}
	}

	zoom := math.Min(availW/w, availH/h)
	if !finite(zoom) {
		return neutral
	}
	return Result{Zoom: clamp(zoom, MinZoom, MaxZoom), Padding: pad}
}

// extent estimates the content size from counts alone: the root sequence
// runs along the main axis and nesting widens the cross axis.
func extent(p Params) (float64, float64) {
	m := metricsFor(p.Density)
	breadth := max(p.Breadth, 1)
	rows := (p.NodeCount + breadth - 1) / breadth
	inset := float64(max(p.Depth-1, 0)) * 2 * m.inset

	main := float64(rows)*m.main(p.Direction) + float64(rows-1)*m.gapMain
	cross := float64(breadth)*m.cross(p.Direction) + float64(breadth-1)*m.gapCross + inset
	if p.Direction == DirectionLR {
		return main, cross
	}
	return cross, main
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
