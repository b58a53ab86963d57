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

import "fmt"

// NodeIDForStep derives the node id for a step id.
//
// The derivation is deterministic so the same step can never
// materialize twice: re-adding a step resolves to the existing node.
func NodeIDForStep(stepID string) string {
	return "node-" + stepID
}

// edgeIDBase derives the deterministic base id for an edge. The label
// participates so that, for example, the sequential edge and the
// "Error occurred" edge between the same pair stay distinct without
// suffixing.
func edgeIDBase(source, target string, kind EdgeKind, label string) string {
	if label == "" {
		return fmt.Sprintf("%s->%s:%s", source, target, kind)
	}
	return fmt.Sprintf("%s->%s:%s:%s", source, target, kind, label)
}

// nextEdgeID returns the first free id for the tuple, disambiguating
// true repeats with a numeric suffix (-2, -3, ...).
func (s *Store) nextEdgeID(source, target string, kind EdgeKind, label string) string {
	base := edgeIDBase(source, target, kind, label)
	id := base
	for n := 2; ; n++ {
		if _, exists := s.edges[id]; !exists {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}
