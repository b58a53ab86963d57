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
	"log/slog"
	"sort"
)

// ArchiveOldNodes prunes old nodes to bound memory on long sessions.
//
// Description:
//
//	When the live node count exceeds maxNodes, the store keeps the
//	maxNodes most recently inserted nodes plus every node on the
//	critical path (root, then repeatedly the first recorded child),
//	regardless of age. Everything else is dropped along with its
//	timestamp bookkeeping. Edges are swept in full: any edge with a
//	missing endpoint goes, including edges orphaned before this pass.
//	Surviving nodes' child and parent lists and the current path are
//	pruned in lockstep so every remaining reference resolves.
//
//	All removals are wrapped in bus batch mode: listeners see one
//	batch-update naming every dropped node id, then the individual
//	node-removed and edge-removed events in order.
//
// Inputs:
//
//	maxNodes - Retention ceiling. Non-positive keeps only the
//	critical path.
//
// Outputs:
//
//	droppedNodes, droppedEdges - Removal counts; both zero when the
//	graph is already within bounds.
//
// Complexity:
//
//	O(nodes log nodes + edges). Runs only on explicit invocation.
func (s *Store) ArchiveOldNodes(maxNodes int) (droppedNodes, droppedEdges int) {
	if maxNodes < 0 {
		maxNodes = 0
	}
	if len(s.nodes) <= maxNodes {
		return 0, 0
	}
	start := s.opts.Clock()

	type candidate struct {
		id  string
		seq int
	}
	candidates := make([]candidate, 0, len(s.path))
	for i, id := range s.path {
		if _, ok := s.nodes[id]; ok {
			candidates = append(candidates, candidate{id: id, seq: i})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ti, tj := s.insertedAt[candidates[i].id], s.insertedAt[candidates[j].id]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return candidates[i].seq > candidates[j].seq
	})

	keep := make(map[string]bool, maxNodes)
	for i := 0; i < maxNodes && i < len(candidates); i++ {
		keep[candidates[i].id] = true
	}
	for _, id := range s.criticalPath() {
		keep[id] = true
	}

	var removedNodes []string
	for _, id := range s.path {
		if node, ok := s.nodes[id]; ok && !keep[id] {
			delete(s.nodes, id)
			delete(s.insertedAt, id)
			removedNodes = append(removedNodes, node.ID)
		}
	}
	if len(removedNodes) == 0 {
		return 0, 0
	}

	var removedEdges []string
	for _, edge := range s.Edges() {
		_, srcOK := s.nodes[edge.Source]
		_, dstOK := s.nodes[edge.Target]
		if !srcOK || !dstOK {
			delete(s.edges, edge.ID)
			removedEdges = append(removedEdges, edge.ID)
		}
	}

	for _, node := range s.nodes {
		node.Children = pruneRefs(node.Children, s.nodes)
		node.Parents = pruneRefs(node.Parents, s.nodes)
	}

	pruned := s.path[:0]
	for _, id := range s.path {
		if _, ok := s.nodes[id]; ok {
			pruned = append(pruned, id)
		}
	}
	s.path = pruned

	s.StartBatch()
	for _, id := range removedNodes {
		s.version++
		s.bus.emit(Event{Kind: EventNodeRemoved, Version: s.version, NodeID: id})
	}
	for _, id := range removedEdges {
		s.version++
		s.bus.emit(Event{Kind: EventEdgeRemoved, Version: s.version, EdgeID: id})
	}
	s.EndBatch()

	elapsed := s.opts.Clock().Sub(start)
	recordArchive(len(removedNodes), len(removedEdges), elapsed)
	s.log.Info("archived old nodes",
		slog.Int("dropped_nodes", len(removedNodes)),
		slog.Int("dropped_edges", len(removedEdges)),
		slog.Int("remaining", len(s.nodes)),
		slog.Duration("elapsed", elapsed))
	return len(removedNodes), len(removedEdges)
}

// criticalPath returns the ids reached from the root by repeatedly
// following each node's first recorded child. Empty when no root.
func (s *Store) criticalPath() []string {
	var chain []string
	seen := make(map[string]bool)
	id := s.rootID
	for id != "" && !seen[id] {
		node, ok := s.nodes[id]
		if !ok {
			break
		}
		seen[id] = true
		chain = append(chain, id)
		id = ""
		for _, child := range node.Children {
			if _, ok := s.nodes[child]; ok {
				id = child
				break
			}
		}
	}
	return chain
}

// pruneRefs drops ids that no longer resolve, preserving order.
func pruneRefs(refs []string, nodes map[string]*Node) []string {
	out := refs[:0]
	for _, id := range refs {
		if _, ok := nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
