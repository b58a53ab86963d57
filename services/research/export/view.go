// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export projects session graphs into consumer-facing shapes:
// the flat view model rendered by layout and websocket push, the
// versioned JSON snapshot used for persistence, and Mermaid diagram
// text.
package export

import (
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

// ViewNode is the flat, render-oriented projection of a graph node.
type ViewNode struct {
	// ID is the node id.
	ID string `json:"id"`

	// Label is the display label, taken from the node title.
	Label string `json:"label"`

	// Type is the step kind.
	Type graph.StepKind `json:"type"`

	// Level is the row index assigned by the graph.
	Level int `json:"level"`

	// Duration is the completion duration in milliseconds, zero when
	// not recorded.
	DurationMillis int64 `json:"duration_millis,omitempty"`

	// Metadata is a copy of the node annotations; mutating it does not
	// touch the store.
	Metadata *graph.Metadata `json:"metadata,omitempty"`
}

// ViewEdge is the flat projection of a graph edge.
type ViewEdge struct {
	// ID is the edge id.
	ID string `json:"id"`

	// Source is the source node id.
	Source string `json:"source"`

	// Target is the target node id.
	Target string `json:"target"`

	// Type is the edge kind.
	Type graph.EdgeKind `json:"type"`

	// Label is the display label, empty for plain edges.
	Label string `json:"label,omitempty"`
}

// View is a version-stamped projection of the whole session graph.
type View struct {
	// Version is the store version the view was taken at.
	Version uint64 `json:"version"`

	// RootID is the root node id, empty for an empty session.
	RootID string `json:"root_id,omitempty"`

	// Nodes are the projected nodes in insertion order.
	Nodes []ViewNode `json:"nodes"`

	// Edges are the projected edges in id order.
	Edges []ViewEdge `json:"edges"`
}

// BuildView projects the store into a View.
//
// Description:
//
//	Nodes follow insertion order, edges follow id order, so two calls
//	at the same version produce identical output. Metadata is cloned;
//	the view shares no mutable state with the store.
func BuildView(s *graph.Store) View {
	view := View{
		Version: s.Version(),
		RootID:  s.RootID(),
		Nodes:   make([]ViewNode, 0, s.NodeCount()),
		Edges:   make([]ViewEdge, 0, s.EdgeCount()),
	}

	for _, node := range s.Nodes() {
		view.Nodes = append(view.Nodes, ViewNode{
			ID:             node.ID,
			Label:          node.Title,
			Type:           node.Kind,
			Level:          node.Level,
			DurationMillis: node.Duration.Milliseconds(),
			Metadata:       node.Metadata.Clone(),
		})
	}

	for _, edge := range s.Edges() {
		view.Edges = append(view.Edges, ViewEdge{
			ID:     edge.ID,
			Source: edge.Source,
			Target: edge.Target,
			Type:   edge.Kind,
			Label:  edge.Label,
		})
	}

	return view
}
