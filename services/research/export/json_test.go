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
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sessionStore builds a small session with an error branch, recorded
// durations, and metadata.
func sessionStore(clock *fakeClock) *graph.Store {
	s := graph.NewStore(graph.WithClock(clock.Now), graph.WithLogger(quietLogger()))

	root := s.AddNode(graph.Step{
		ID:    "search-1",
		Kind:  graph.StepKindSearch,
		Title: "Find climate sources",
		Sources: []graph.Source{
			{URL: "https://example.com/report", Title: "Report"},
		},
		Metadata: &graph.Metadata{Model: "sonnet", SourceCount: 4},
	}, "", nil)
	clock.Advance(200 * time.Millisecond)
	s.UpdateNodeDuration(root.ID)

	clock.Advance(time.Second)
	analysis := s.AddNode(graph.Step{
		ID:      "analysis-1",
		Kind:    graph.StepKindAnalysis,
		Title:   "Analyze findings",
		Content: "Comparing reported figures.",
	}, root.ID, nil)
	s.MarkNodeError(analysis.ID, "model timeout")

	clock.Advance(time.Second)
	s.AddNode(graph.Step{
		ID:    "final-1",
		Kind:  graph.StepKindFinalAnswer,
		Title: "Answer",
	}, root.ID, nil)
	s.AddEdge(root.ID, "node-final-1", graph.EdgeKindDependency, "summarizes")

	return s
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	original := sessionStore(clock)

	data, err := Serialize(original)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	restored, err := Deserialize(data, graph.WithClock(clock.Now), graph.WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if restored.Version() != original.Version() {
		t.Errorf("version = %d, want %d", restored.Version(), original.Version())
	}
	if restored.RootID() != original.RootID() {
		t.Errorf("root = %q, want %q", restored.RootID(), original.RootID())
	}
	if restored.NodeCount() != original.NodeCount() || restored.EdgeCount() != original.EdgeCount() {
		t.Errorf("counts = %d nodes / %d edges, want %d / %d",
			restored.NodeCount(), restored.EdgeCount(),
			original.NodeCount(), original.EdgeCount())
	}

	wantPath := original.CurrentPath()
	gotPath := restored.CurrentPath()
	if len(gotPath) != len(wantPath) {
		t.Fatalf("path = %v, want %v", gotPath, wantPath)
	}
	for i := range wantPath {
		if gotPath[i] != wantPath[i] {
			t.Fatalf("path = %v, want %v", gotPath, wantPath)
		}
	}

	node, ok := restored.Node("node-search-1")
	if !ok {
		t.Fatal("restored store is missing node-search-1")
	}
	if node.Kind != graph.StepKindSearch || node.Title != "Find climate sources" {
		t.Errorf("node basics lost: kind=%q title=%q", node.Kind, node.Title)
	}
	if node.Duration != 200*time.Millisecond {
		t.Errorf("duration = %v, want 200ms", node.Duration)
	}
	if node.Metadata == nil || node.Metadata.Model != "sonnet" || node.Metadata.SourceCount != 4 {
		t.Errorf("metadata lost: %+v", node.Metadata)
	}
	if node.Step == nil || len(node.Step.Sources) != 1 || node.Step.Sources[0].URL != "https://example.com/report" {
		t.Error("embedded step sources lost")
	}

	failed, ok := restored.Node("node-analysis-1")
	if !ok {
		t.Fatal("restored store is missing node-analysis-1")
	}
	if failed.Kind != graph.StepKindError {
		t.Errorf("error retag lost: kind = %q", failed.Kind)
	}
	if failed.Metadata == nil || failed.Metadata.ErrorMessage != "model timeout" {
		t.Error("error message lost")
	}

	for id, want := range original.InsertionTimes() {
		got, ok := restored.InsertionTimes()[id]
		if !ok {
			t.Errorf("insertion time for %q lost", id)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("insertion time for %q = %v, want %v", id, got, want)
		}
	}

	// The restored store keeps working: statistics and further
	// mutations behave like the original's.
	stats := restored.Statistics()
	if stats.TotalNodes != 3 || stats.ErrorCount != 1 {
		t.Errorf("restored stats = %d nodes / %d errors, want 3 / 1", stats.TotalNodes, stats.ErrorCount)
	}
	v := restored.Version()
	restored.AddNode(graph.Step{ID: "post-restore", Kind: graph.StepKindSearch, Title: "More"}, restored.RootID(), nil)
	if restored.Version() <= v {
		t.Error("restored store version did not advance on mutation")
	}
}

func TestDeserialize_MalformedBytes(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"truncated json", []byte(`{"schema_version":1,"nodes":[`)},
		{"not json", []byte("flowchart TB")},
		{"empty", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Deserialize(tc.data, graph.WithLogger(quietLogger()))
			if !errors.Is(err, ErrMalformedSnapshot) {
				t.Errorf("err = %v, want ErrMalformedSnapshot", err)
			}
		})
	}
}

func TestDeserialize_UnknownSchemaVersion(t *testing.T) {
	_, err := Deserialize([]byte(`{"schema_version":99,"nodes":[],"edges":[]}`), graph.WithLogger(quietLogger()))
	if !errors.Is(err, ErrMalformedSnapshot) {
		t.Errorf("err = %v, want ErrMalformedSnapshot", err)
	}
}

func TestDeserialize_CorruptContent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Version:       3,
		Nodes: []*graph.Node{
			{ID: "node-a", Kind: graph.StepKindSearch, Title: "A", CreatedAt: now},
		},
		Edges: []*graph.Edge{
			{ID: "node-a->node-gone:sequential", Source: "node-a", Target: "node-gone", Kind: graph.EdgeKindSequential},
		},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	_, err = Deserialize(data, graph.WithLogger(quietLogger()))
	if !errors.Is(err, graph.ErrCorruptSnapshot) {
		t.Errorf("err = %v, want graph.ErrCorruptSnapshot", err)
	}
	if errors.Is(err, ErrMalformedSnapshot) {
		t.Error("structural corruption misreported as malformed bytes")
	}
}
