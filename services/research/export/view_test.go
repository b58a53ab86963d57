// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"testing"
)

func TestBuildView(t *testing.T) {
	clock := newFakeClock()
	s := sessionStore(clock)

	view := BuildView(s)
	if view.Version != s.Version() {
		t.Errorf("view version = %d, want %d", view.Version, s.Version())
	}
	if view.RootID != s.RootID() {
		t.Errorf("view root = %q, want %q", view.RootID, s.RootID())
	}
	if len(view.Nodes) != s.NodeCount() || len(view.Edges) != s.EdgeCount() {
		t.Fatalf("view size = %d nodes / %d edges, want %d / %d",
			len(view.Nodes), len(view.Edges), s.NodeCount(), s.EdgeCount())
	}

	// Nodes follow insertion order.
	wantOrder := []string{"node-search-1", "node-analysis-1", "node-final-1"}
	for i, want := range wantOrder {
		if view.Nodes[i].ID != want {
			t.Errorf("node[%d] = %q, want %q", i, view.Nodes[i].ID, want)
		}
	}

	first := view.Nodes[0]
	if first.Label != "Find climate sources" || first.Type != "search" || first.Level != 0 {
		t.Errorf("node projection = %+v", first)
	}
	if first.DurationMillis != 200 {
		t.Errorf("duration millis = %d, want 200", first.DurationMillis)
	}

	// The error retag shows through.
	if view.Nodes[1].Type != "error" {
		t.Errorf("failed node type = %q, want error", view.Nodes[1].Type)
	}
}

func TestBuildView_Deterministic(t *testing.T) {
	clock := newFakeClock()
	s := sessionStore(clock)

	a := BuildView(s)
	b := BuildView(s)
	if len(a.Edges) != len(b.Edges) {
		t.Fatalf("edge counts differ: %d vs %d", len(a.Edges), len(b.Edges))
	}
	for i := range a.Edges {
		if a.Edges[i].ID != b.Edges[i].ID {
			t.Fatalf("edge order differs at %d: %q vs %q", i, a.Edges[i].ID, b.Edges[i].ID)
		}
	}
}

func TestBuildView_MetadataIsolated(t *testing.T) {
	clock := newFakeClock()
	s := sessionStore(clock)

	view := BuildView(s)
	if view.Nodes[0].Metadata == nil {
		t.Fatal("view dropped node metadata")
	}
	view.Nodes[0].Metadata.Model = "tampered"

	node, _ := s.Node("node-search-1")
	if node.Metadata.Model != "sonnet" {
		t.Errorf("mutating the view reached the store: model = %q", node.Metadata.Model)
	}
}

func TestBuildView_EmptyStore(t *testing.T) {
	clock := newFakeClock()
	s := sessionStore(clock)
	s.Reset()

	view := BuildView(s)
	if len(view.Nodes) != 0 || len(view.Edges) != 0 {
		t.Errorf("empty view has %d nodes / %d edges", len(view.Nodes), len(view.Edges))
	}
	if view.RootID != "" {
		t.Errorf("empty view root = %q", view.RootID)
	}
	if view.Nodes == nil || view.Edges == nil {
		t.Error("view slices should be empty, not nil, for stable JSON output")
	}
}
