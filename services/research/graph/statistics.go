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

import "time"

// Statistics is the derived read-side view over the live node set.
type Statistics struct {
	// TotalNodes is the live node count.
	TotalNodes int `json:"total_nodes"`

	// TotalDuration is the elapsed time since the earliest node was
	// created. Zero on an empty graph.
	TotalDuration time.Duration `json:"total_duration"`

	// AverageStepDuration is the mean completion duration among nodes
	// with a recorded duration. Zero when none recorded one.
	AverageStepDuration time.Duration `json:"average_step_duration"`

	// ErrorCount is the number of error-kind nodes.
	ErrorCount int `json:"error_count"`

	// SuccessRate is (total - errors) / total. An empty graph has a
	// success rate of 1: no nodes means nothing failed.
	SuccessRate float64 `json:"success_rate"`

	// TotalSources sums, per node, the larger of the metadata-reported
	// source count and the attached source list length.
	TotalSources int `json:"total_sources"`

	// UniqueCitations counts distinct citations across metadata
	// sections and directly attached step sources, keyed by URL when
	// present and by title otherwise.
	UniqueCitations int `json:"unique_citations"`
}

// Statistics computes the session statistics.
//
// Description:
//
//	Pure read over the live node set; nothing is cached or mutated,
//	so the result is always consistent with the current version.
//
// Complexity:
//
//	O(nodes + citations).
func (s *Store) Statistics() Statistics {
	stats := Statistics{
		TotalNodes:  len(s.nodes),
		SuccessRate: 1.0,
	}
	if stats.TotalNodes == 0 {
		return stats
	}

	var (
		earliest      time.Time
		durationSum   time.Duration
		durationCount int
		citations     = make(map[string]bool)
	)

	for _, node := range s.nodes {
		if earliest.IsZero() || node.CreatedAt.Before(earliest) {
			earliest = node.CreatedAt
		}
		if node.HasDuration() {
			durationSum += node.Duration
			durationCount++
		}
		if node.Kind == StepKindError {
			stats.ErrorCount++
		}

		attached := 0
		if node.Step != nil {
			attached = len(node.Step.Sources)
			for _, src := range node.Step.Sources {
				if key := src.Key(); key != "" {
					citations[key] = true
				}
			}
		}
		reported := 0
		if node.Metadata != nil {
			reported = node.Metadata.SourceCount
			for _, section := range node.Metadata.Sections {
				for _, src := range section.Sources {
					if key := src.Key(); key != "" {
						citations[key] = true
					}
				}
			}
		}
		if reported > attached {
			stats.TotalSources += reported
		} else {
			stats.TotalSources += attached
		}
	}

	if elapsed := s.opts.Clock().Sub(earliest); elapsed > 0 {
		stats.TotalDuration = elapsed
	}
	if durationCount > 0 {
		stats.AverageStepDuration = durationSum / time.Duration(durationCount)
	}
	stats.SuccessRate = float64(stats.TotalNodes-stats.ErrorCount) / float64(stats.TotalNodes)
	stats.UniqueCitations = len(citations)
	return stats
}
