// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package layout turns exported graph views into positioned,
// render-ready layouts: hierarchical rows with adaptive spacing, routed
// edges, a memoizing bounded cache, and a worker for offloading large
// computations.
package layout

import (
	"math"
	"sort"

	"github.com/AleutianAI/AleutianResearch/services/research/export"
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

// Point is a 2D coordinate in layout space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PositionedNode is a node with its assigned box.
type PositionedNode struct {
	// ID is the node id.
	ID string `json:"id"`

	// X, Y are the top-left corner of the node box. Levels center
	// around x = 0, so X is negative for the left half of a row.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Width, Height are the box dimensions.
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Level is the row index the node was bucketed into.
	Level int `json:"level"`
}

// RoutedEdge is an edge with its path through layout space.
type RoutedEdge struct {
	// ID is the edge id.
	ID string `json:"id"`

	// Source, Target are the endpoint node ids.
	Source string `json:"source"`
	Target string `json:"target"`

	// Type is the edge kind, carried through for styling.
	Type graph.EdgeKind `json:"type"`

	// Points is the routed path: 2 points for a straight segment,
	// 4 for a curved long-range edge, empty when an endpoint is
	// missing from the node set.
	Points []Point `json:"points"`
}

// Layout is a computed arrangement of one graph view.
type Layout struct {
	// Nodes are the positioned nodes, ordered by (level, id).
	Nodes []PositionedNode `json:"nodes"`

	// Edges are the routed edges in input order.
	Edges []RoutedEdge `json:"edges"`
}

// EngineOptions configures the layout geometry.
type EngineOptions struct {
	// NodeWidth, NodeHeight are the fixed node box dimensions.
	// Default: 180 x 60
	NodeWidth  float64
	NodeHeight float64

	// RowHeight is the vertical distance between level rows.
	// Default: 140
	RowHeight float64

	// BaseSpacing is the horizontal center-to-center spacing on sparse
	// levels.
	// Default: 260
	BaseSpacing float64

	// MinSpacing is the spacing floor for dense levels. Must exceed
	// NodeWidth or adjacent boxes overlap.
	// Default: 200
	MinSpacing float64

	// DensityThreshold is the per-level node count above which spacing
	// starts shrinking.
	// Default: 6
	DensityThreshold int

	// SpacingStep is how much spacing shrinks per node beyond the
	// threshold.
	// Default: 10
	SpacingStep float64
}

// DefaultEngineOptions returns sensible defaults.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		NodeWidth:        180,
		NodeHeight:       60,
		RowHeight:        140,
		BaseSpacing:      260,
		MinSpacing:       200,
		DensityThreshold: 6,
		SpacingStep:      10,
	}
}

// EngineOption is a functional option for configuring an Engine.
type EngineOption func(*EngineOptions)

// WithNodeSize sets the node box dimensions.
func WithNodeSize(width, height float64) EngineOption {
	return func(o *EngineOptions) {
		if width > 0 {
			o.NodeWidth = width
		}
		if height > 0 {
			o.NodeHeight = height
		}
	}
}

// WithRowHeight sets the vertical distance between level rows.
func WithRowHeight(h float64) EngineOption {
	return func(o *EngineOptions) {
		if h > 0 {
			o.RowHeight = h
		}
	}
}

// WithSpacing sets the base spacing and its floor.
func WithSpacing(base, floor float64) EngineOption {
	return func(o *EngineOptions) {
		if base > 0 {
			o.BaseSpacing = base
		}
		if floor > 0 {
			o.MinSpacing = floor
		}
	}
}

// WithDensity sets the shrink threshold and per-node shrink step.
func WithDensity(threshold int, step float64) EngineOption {
	return func(o *EngineOptions) {
		if threshold > 0 {
			o.DensityThreshold = threshold
		}
		if step > 0 {
			o.SpacingStep = step
		}
	}
}

// Engine computes hierarchical layouts.
//
// # Description
//
// Pure and deterministic: the same node and edge signatures always
// produce the same output, independent of input order. All geometry
// comes from EngineOptions; the engine holds no other state.
//
// # Thread Safety
//
// Safe for concurrent use.
type Engine struct {
	options EngineOptions
}

// NewEngine creates a layout engine.
func NewEngine(opts ...EngineOption) *Engine {
	options := DefaultEngineOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Engine{options: options}
}

// Options returns the engine's geometry configuration.
func (e *Engine) Options() EngineOptions {
	return e.options
}

// Compute lays out a graph view.
//
// # Description
//
// Nodes bucket into rows by level and each row centers around x = 0
// with adaptive spacing: past DensityThreshold nodes, spacing shrinks
// by SpacingStep per extra node down to MinSpacing. Edges route from
// the source's bottom center to the target's top center; a level gap
// above 1 produces a 4-point curve whose control offset grows with the
// gap, anything else a straight 2-point segment. An edge endpoint
// missing from the node set yields an empty point list, not an error.
//
// # Inputs
//
//   - nodes: The view nodes. Level must be populated.
//   - edges: The view edges.
//
// # Outputs
//
//   - *Layout: The positioned layout. Never nil; empty input produces
//     an empty layout.
func (e *Engine) Compute(nodes []export.ViewNode, edges []export.ViewEdge) *Layout {
	o := e.options
	layout := &Layout{
		Nodes: make([]PositionedNode, 0, len(nodes)),
		Edges: make([]RoutedEdge, 0, len(edges)),
	}

	levels := make(map[int][]export.ViewNode)
	for _, n := range nodes {
		levels[n.Level] = append(levels[n.Level], n)
	}
	levelOrder := make([]int, 0, len(levels))
	for level := range levels {
		levelOrder = append(levelOrder, level)
	}
	sort.Ints(levelOrder)

	positioned := make(map[string]PositionedNode, len(nodes))
	for _, level := range levelOrder {
		row := levels[level]
		// Input order must not leak into the geometry.
		sort.Slice(row, func(i, j int) bool { return row[i].ID < row[j].ID })

		spacing := e.rowSpacing(len(row))
		startX := -(float64(len(row)-1) * spacing) / 2
		y := float64(level) * o.RowHeight

		for i, n := range row {
			centerX := startX + float64(i)*spacing
			pn := PositionedNode{
				ID:     n.ID,
				X:      centerX - o.NodeWidth/2,
				Y:      y,
				Width:  o.NodeWidth,
				Height: o.NodeHeight,
				Level:  level,
			}
			positioned[n.ID] = pn
			layout.Nodes = append(layout.Nodes, pn)
		}
	}

	for _, edge := range edges {
		layout.Edges = append(layout.Edges, e.routeEdge(edge, positioned))
	}

	return layout
}

// rowSpacing returns the horizontal spacing for a row of count nodes.
func (e *Engine) rowSpacing(count int) float64 {
	o := e.options
	spacing := o.BaseSpacing
	if count > o.DensityThreshold {
		spacing -= float64(count-o.DensityThreshold) * o.SpacingStep
		if spacing < o.MinSpacing {
			spacing = o.MinSpacing
		}
	}
	return spacing
}

// routeEdge computes the path for one edge.
func (e *Engine) routeEdge(edge export.ViewEdge, positioned map[string]PositionedNode) RoutedEdge {
	routed := RoutedEdge{
		ID:     edge.ID,
		Source: edge.Source,
		Target: edge.Target,
		Type:   edge.Type,
		Points: []Point{},
	}

	src, srcOK := positioned[edge.Source]
	dst, dstOK := positioned[edge.Target]
	if !srcOK || !dstOK {
		return routed
	}

	from := Point{X: src.X + src.Width/2, Y: src.Y + src.Height}
	to := Point{X: dst.X + dst.Width/2, Y: dst.Y}

	gap := int(math.Abs(float64(dst.Level - src.Level)))
	if gap > 1 {
		offset := float64(gap) * e.options.RowHeight / 4
		routed.Points = []Point{
			from,
			{X: from.X, Y: from.Y + offset},
			{X: to.X, Y: to.Y - offset},
			to,
		}
		return routed
	}

	routed.Points = []Point{from, to}
	return routed
}
