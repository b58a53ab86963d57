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

func TestStatistics_EmptyGraph(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	stats := s.Statistics()
	if stats.TotalNodes != 0 {
		t.Errorf("TotalNodes = %d, want 0", stats.TotalNodes)
	}
	if stats.SuccessRate != 1.0 {
		t.Errorf("SuccessRate = %v, want 1.0 (nothing failed)", stats.SuccessRate)
	}
	if stats.TotalDuration != 0 || stats.AverageStepDuration != 0 {
		t.Errorf("durations = %v / %v, want 0 / 0", stats.TotalDuration, stats.AverageStepDuration)
	}
	if stats.ErrorCount != 0 || stats.TotalSources != 0 || stats.UniqueCitations != 0 {
		t.Errorf("counters = %d / %d / %d, want all 0",
			stats.ErrorCount, stats.TotalSources, stats.UniqueCitations)
	}
}

func TestStatistics_Durations(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	a := s.AddNode(step("a", StepKindSearch, "A"), "", nil)
	clock.Advance(100 * time.Millisecond)
	s.UpdateNodeDuration(a.ID)

	b := s.AddNode(step("b", StepKindAnalysis, "B"), a.ID, nil)
	clock.Advance(300 * time.Millisecond)
	s.UpdateNodeDuration(b.ID)

	// A third node never completes.
	s.AddNode(step("c", StepKindSynthesis, "C"), b.ID, nil)
	clock.Advance(600 * time.Millisecond)

	stats := s.Statistics()
	if stats.TotalNodes != 3 {
		t.Errorf("TotalNodes = %d, want 3", stats.TotalNodes)
	}
	if stats.TotalDuration != time.Second {
		t.Errorf("TotalDuration = %v, want 1s", stats.TotalDuration)
	}
	if stats.AverageStepDuration != 200*time.Millisecond {
		t.Errorf("AverageStepDuration = %v, want 200ms (incomplete nodes excluded)",
			stats.AverageStepDuration)
	}
	if stats.SuccessRate != 1.0 {
		t.Errorf("SuccessRate = %v, want 1.0", stats.SuccessRate)
	}
}

func TestStatistics_SourceCounting(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	// Attached list longer than the reported count: the list wins.
	a := Step{
		ID:    "a",
		Kind:  StepKindSearch,
		Title: "A",
		Sources: []Source{
			{URL: "https://example.com/one", Title: "One"},
			{URL: "https://example.com/two", Title: "Two"},
			{URL: "https://example.com/three", Title: "Three"},
		},
		Metadata: &Metadata{SourceCount: 2},
	}
	root := s.AddNode(a, "", nil)

	// Reported count larger than the attached list: the count wins.
	b := Step{
		ID:       "b",
		Kind:     StepKindAnalysis,
		Title:    "B",
		Sources:  []Source{{URL: "https://example.com/one"}},
		Metadata: &Metadata{SourceCount: 5},
	}
	s.AddNode(b, root.ID, nil)

	stats := s.Statistics()
	if stats.TotalSources != 8 {
		t.Errorf("TotalSources = %d, want 8 (3 + 5)", stats.TotalSources)
	}
}

func TestStatistics_UniqueCitations(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	a := Step{
		ID:    "a",
		Kind:  StepKindSearch,
		Title: "A",
		Sources: []Source{
			{URL: "https://example.com/paper", Title: "Paper v1"},
			{Title: "Untitled archive scan"},
		},
	}
	root := s.AddNode(a, "", nil)

	// Same URL under a different title, plus a section-level repeat of
	// the title-only source, plus one genuinely new citation.
	b := Step{
		ID:      "b",
		Kind:    StepKindSynthesis,
		Title:   "B",
		Sources: []Source{{URL: "https://example.com/paper", Title: "Paper v2"}},
		Metadata: &Metadata{
			Sections: []Section{{
				Title: "Background",
				Sources: []Source{
					{Title: "Untitled archive scan"},
					{URL: "https://example.com/fresh"},
				},
			}},
		},
	}
	s.AddNode(b, root.ID, nil)

	stats := s.Statistics()
	if stats.UniqueCitations != 3 {
		t.Errorf("UniqueCitations = %d, want 3", stats.UniqueCitations)
	}
}

func TestStatistics_SuccessRate(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	root := s.AddNode(step("a", StepKindSearch, "A"), "", nil)
	s.AddNode(step("b", StepKindAnalysis, "B"), root.ID, nil)
	c := s.AddNode(step("c", StepKindAnalysis, "C"), root.ID, nil)
	d := s.AddNode(step("d", StepKindSynthesis, "D"), c.ID, nil)

	s.MarkNodeError(c.ID, "rate limited")
	s.MarkNodeError(d.ID, "upstream failed")

	stats := s.Statistics()
	if stats.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", stats.ErrorCount)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("SuccessRate = %v, want 0.5", stats.SuccessRate)
	}
}
