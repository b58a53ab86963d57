// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"testing"
	"time"
)

// branchyStore builds a session with a two-hop critical path and four
// side branches off the root:
//
//	r -> m -> m2   (critical path)
//	r -> s1, s2, s3, s4 (side branches, s4 newest)
func branchyStore(clock *fakeClock) *Store {
	s := newTestStore(clock)
	r := s.AddNode(step("r", StepKindSearch, "root"), "", nil)
	clock.Advance(time.Second)
	m := s.AddNode(step("m", StepKindAnalysis, "main"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("s1", StepKindSearch, "side 1"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("s2", StepKindSearch, "side 2"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("s3", StepKindSearch, "side 3"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("m2", StepKindSynthesis, "main 2"), m.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("s4", StepKindSearch, "side 4"), r.ID, nil)
	return s
}

func TestArchive_NoOpUnderLimit(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	r := s.AddNode(step("a", StepKindSearch, "A"), "", nil)
	s.AddNode(step("b", StepKindAnalysis, "B"), r.ID, nil)

	var events int
	s.Subscribe(func(Event) { events++ })

	nodes, edges := s.ArchiveOldNodes(10)
	if nodes != 0 || edges != 0 {
		t.Errorf("dropped = %d, %d, want 0, 0", nodes, edges)
	}
	if events != 0 {
		t.Errorf("no-op archive emitted %d events", events)
	}
}

func TestArchive_CriticalPathImmune(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	// A pure chain is its own critical path; nothing is archivable.
	parent := ""
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		n := s.AddNode(step(id, StepKindAnalysis, id), parent, nil)
		parent = n.ID
		clock.Advance(time.Second)
	}

	nodes, edges := s.ArchiveOldNodes(2)
	if nodes != 0 || edges != 0 {
		t.Errorf("dropped = %d, %d, want 0, 0 (all nodes on the critical path)", nodes, edges)
	}
	if s.NodeCount() != 5 {
		t.Errorf("node count = %d, want 5", s.NodeCount())
	}
}

func TestArchive_KeepsRecentAndCriticalPath(t *testing.T) {
	clock := newFakeClock()
	s := branchyStore(clock)

	var events []Event
	s.Subscribe(func(ev Event) { events = append(events, ev) })
	preVersion := s.Version()

	nodes, edges := s.ArchiveOldNodes(2)
	if nodes != 3 || edges != 3 {
		t.Fatalf("dropped = %d nodes, %d edges, want 3, 3", nodes, edges)
	}

	for _, id := range []string{"node-r", "node-m", "node-m2", "node-s4"} {
		if _, ok := s.Node(id); !ok {
			t.Errorf("survivor %q missing", id)
		}
	}
	for _, id := range []string{"node-s1", "node-s2", "node-s3"} {
		if _, ok := s.Node(id); ok {
			t.Errorf("node %q survived archival", id)
		}
	}

	if got := s.Version(); got != preVersion+6 {
		t.Errorf("version = %d, want %d (one bump per removal)", got, preVersion+6)
	}

	if len(events) != 7 {
		t.Fatalf("deliveries = %d, want 7 (batch-update + 3 node-removed + 3 edge-removed)", len(events))
	}
	agg := events[0]
	if agg.Kind != EventBatchUpdate {
		t.Fatalf("first event = %q, want batch-update", agg.Kind)
	}
	wantIDs := []string{"node-s1", "node-s2", "node-s3"}
	if len(agg.NodeIDs) != len(wantIDs) {
		t.Fatalf("batch-update node ids = %v, want %v", agg.NodeIDs, wantIDs)
	}
	for i, id := range wantIDs {
		if agg.NodeIDs[i] != id {
			t.Errorf("batch-update node ids = %v, want %v", agg.NodeIDs, wantIDs)
			break
		}
	}
	if agg.Version != s.Version() {
		t.Errorf("batch-update version = %d, want final %d", agg.Version, s.Version())
	}

	removed := map[EventKind]int{}
	for _, ev := range events[1:] {
		removed[ev.Kind]++
	}
	if removed[EventNodeRemoved] != 3 || removed[EventEdgeRemoved] != 3 {
		t.Errorf("replayed removals = %v", removed)
	}
}

func TestArchive_PrunesPathAndRefs(t *testing.T) {
	clock := newFakeClock()
	s := branchyStore(clock)

	if n, e := s.ArchiveOldNodes(2); n == 0 && e == 0 {
		t.Fatal("archive did not drop anything")
	}

	wantPath := []string{"node-r", "node-m", "node-m2", "node-s4"}
	path := s.CurrentPath()
	if len(path) != len(wantPath) {
		t.Fatalf("current path = %v, want %v", path, wantPath)
	}
	for i := range wantPath {
		if path[i] != wantPath[i] {
			t.Fatalf("current path = %v, want %v", path, wantPath)
		}
	}

	root, _ := s.Node("node-r")
	if len(root.Children) != 2 || root.Children[0] != "node-m" || root.Children[1] != "node-s4" {
		t.Errorf("root children = %v, want [node-m node-s4]", root.Children)
	}

	for _, n := range s.Nodes() {
		for _, ref := range n.Children {
			if _, ok := s.Node(ref); !ok {
				t.Errorf("node %q child %q does not resolve", n.ID, ref)
			}
		}
		for _, ref := range n.Parents {
			if _, ok := s.Node(ref); !ok {
				t.Errorf("node %q parent %q does not resolve", n.ID, ref)
			}
		}
	}
	for _, e := range s.Edges() {
		if _, ok := s.Node(e.Source); !ok {
			t.Errorf("edge %q source does not resolve", e.ID)
		}
		if _, ok := s.Node(e.Target); !ok {
			t.Errorf("edge %q target does not resolve", e.ID)
		}
	}
}

func TestArchive_SweepsDanglingEdges(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	r := s.AddNode(step("r", StepKindSearch, "root"), "", nil)
	clock.Advance(time.Second)
	s.AddNode(step("a", StepKindAnalysis, "A"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("b", StepKindSearch, "B"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("c", StepKindSearch, "C"), r.ID, nil)

	// An edge orphaned by earlier state damage is swept along with the
	// edges of freshly dropped nodes.
	s.edges["ghost"] = &Edge{ID: "ghost", Source: "node-gone", Target: "node-a", Kind: EdgeKindSequential}

	nodes, edges := s.ArchiveOldNodes(1)
	if nodes != 1 {
		t.Fatalf("dropped nodes = %d, want 1", nodes)
	}
	if edges != 2 {
		t.Errorf("dropped edges = %d, want 2 (node-b's edge and the ghost)", edges)
	}
	if _, ok := s.Edge("ghost"); ok {
		t.Error("ghost edge survived the sweep")
	}
}

func TestArchive_NegativeLimitKeepsCriticalPathOnly(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	r := s.AddNode(step("r", StepKindSearch, "root"), "", nil)
	clock.Advance(time.Second)
	s.AddNode(step("a", StepKindAnalysis, "A"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("b", StepKindSearch, "B"), r.ID, nil)

	nodes, _ := s.ArchiveOldNodes(-1)
	if nodes != 1 {
		t.Errorf("dropped nodes = %d, want 1", nodes)
	}
	if _, ok := s.Node("node-b"); ok {
		t.Error("off-path node survived a zero retention ceiling")
	}
	if s.NodeCount() != 2 {
		t.Errorf("node count = %d, want 2 (critical path only)", s.NodeCount())
	}
}

func TestArchive_InsertionTiebreak(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	r := s.AddNode(step("r", StepKindSearch, "root"), "", nil)
	clock.Advance(time.Second)
	s.AddNode(step("m", StepKindAnalysis, "main"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("x", StepKindSearch, "X"), r.ID, nil)
	// y lands at the same instant as x; path order breaks the tie.
	s.AddNode(step("y", StepKindSearch, "Y"), r.ID, nil)
	clock.Advance(time.Second)
	s.AddNode(step("z", StepKindSearch, "Z"), r.ID, nil)

	nodes, _ := s.ArchiveOldNodes(2)
	if nodes != 1 {
		t.Fatalf("dropped nodes = %d, want 1", nodes)
	}
	if _, ok := s.Node("node-y"); !ok {
		t.Error("node-y dropped despite winning the same-timestamp tiebreak")
	}
	if _, ok := s.Node("node-x"); ok {
		t.Error("node-x survived; the later same-timestamp insertion should win")
	}
}
