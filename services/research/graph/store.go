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
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Store is the event-sourced graph of one research session.
//
// Description:
//
//	Store owns the node map, edge map, root id, current path
//	(insertion order), per-node insertion timestamps, and the
//	monotonic version counter. Every mutation bumps the version and
//	emits an event on the embedded bus, so reactive consumers can
//	detect staleness without deep comparison.
//
// Thread Safety:
//
//	NOT safe for concurrent use. One logical session owns one Store
//	and serializes access to it; concurrent sessions require separate
//	instances.
type Store struct {
	nodes      map[string]*Node
	edges      map[string]*Edge
	rootID     string
	path       []string
	insertedAt map[string]time.Time
	version    uint64
	bus        *Bus
	opts       StoreOptions
	log        *slog.Logger
}

// NewStore creates an empty session graph.
//
// Example:
//
//	s := graph.NewStore()
//
//	// Deterministic clock for tests
//	s := graph.NewStore(graph.WithClock(func() time.Time { return fixed }))
func NewStore(opts ...StoreOption) *Store {
	options := DefaultStoreOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Store{
		nodes:      make(map[string]*Node),
		edges:      make(map[string]*Edge),
		path:       make([]string, 0),
		insertedAt: make(map[string]time.Time),
		bus:        NewBus(options.Logger),
		opts:       options,
		log:        options.Logger,
	}
}

// RestoreState is the full internal state of a store, as captured by
// a serialized snapshot.
type RestoreState struct {
	Version    uint64
	RootID     string
	Nodes      []*Node
	Edges      []*Edge
	Path       []string
	InsertedAt map[string]time.Time
}

// Restore rebuilds a store from snapshot state.
//
// Description:
//
//	Validates structural integrity (unique ids, resolvable edge
//	endpoints, resolvable root, path, child and parent references)
//	and rebuilds the store around the provided state. Corrupt input
//	signals a version/compatibility problem: the caller must discard
//	the snapshot, so unlike the live mutation paths this returns an
//	error instead of degrading silently.
//
// Ownership:
//
//	Restore takes ownership of the nodes and edges in state; they
//	must not be mutated by the caller afterwards.
//
// Errors:
//
//	ErrCorruptSnapshot - wrapped with the failing detail.
func Restore(state RestoreState, opts ...StoreOption) (*Store, error) {
	s := NewStore(opts...)

	for _, n := range state.Nodes {
		if n == nil || n.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrCorruptSnapshot)
		}
		if _, exists := s.nodes[n.ID]; exists {
			return nil, fmt.Errorf("%w: %w %q", ErrCorruptSnapshot, ErrDuplicateNode, n.ID)
		}
		s.nodes[n.ID] = n
	}

	for _, n := range state.Nodes {
		for _, ref := range n.Children {
			if _, ok := s.nodes[ref]; !ok {
				return nil, fmt.Errorf("%w: node %q child: %w %q", ErrCorruptSnapshot, n.ID, ErrUnknownNode, ref)
			}
		}
		for _, ref := range n.Parents {
			if _, ok := s.nodes[ref]; !ok {
				return nil, fmt.Errorf("%w: node %q parent: %w %q", ErrCorruptSnapshot, n.ID, ErrUnknownNode, ref)
			}
		}
	}

	for _, e := range state.Edges {
		if e == nil || e.ID == "" {
			return nil, fmt.Errorf("%w: edge without id", ErrCorruptSnapshot)
		}
		if _, exists := s.edges[e.ID]; exists {
			return nil, fmt.Errorf("%w: %w %q", ErrCorruptSnapshot, ErrDuplicateEdge, e.ID)
		}
		if _, ok := s.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("%w: edge %q source: %w %q", ErrCorruptSnapshot, e.ID, ErrUnknownNode, e.Source)
		}
		if _, ok := s.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("%w: edge %q target: %w %q", ErrCorruptSnapshot, e.ID, ErrUnknownNode, e.Target)
		}
		s.edges[e.ID] = e
	}

	if state.RootID != "" {
		if _, ok := s.nodes[state.RootID]; !ok {
			return nil, fmt.Errorf("%w: root: %w %q", ErrCorruptSnapshot, ErrUnknownNode, state.RootID)
		}
	}
	for _, id := range state.Path {
		if _, ok := s.nodes[id]; !ok {
			return nil, fmt.Errorf("%w: current path: %w %q", ErrCorruptSnapshot, ErrUnknownNode, id)
		}
	}

	s.rootID = state.RootID
	s.path = append(s.path, state.Path...)
	s.version = state.Version
	for id, n := range s.nodes {
		at, ok := state.InsertedAt[id]
		if !ok {
			at = n.CreatedAt
		}
		s.insertedAt[id] = at
	}
	return s, nil
}

// Subscribe registers an event listener on the embedded bus and
// returns its unsubscribe function.
func (s *Store) Subscribe(fn ListenerFunc) func() {
	return s.bus.Subscribe(fn)
}

// StartBatch switches the embedded bus into batch mode. See
// Bus.StartBatch.
func (s *Store) StartBatch() {
	s.bus.StartBatch()
}

// EndBatch leaves batch mode and flushes queued events. See
// Bus.EndBatch.
func (s *Store) EndBatch() {
	s.bus.EndBatch()
}

// AddNode materializes a step as a graph node.
//
// Description:
//
//	The step must carry a unique id; the node id derives from it
//	deterministically, so re-adding the same step returns the
//	existing node unchanged. When parentID is given but unresolved
//	the node is still created, just without linking. On success the
//	node joins the current path, its level is computed from the
//	parent, a sequential (or, for error-kind steps, error) edge is
//	created from the parent, the version is incremented, and
//	node-added fires.
//
// Inputs:
//
//	step - The originating step. An empty id is a no-op.
//	parentID - Optional parent node id. Empty for root candidates.
//	md - Optional metadata merged over the step's own metadata.
//
// Outputs:
//
//	*Node - The created (or pre-existing) node, nil when step has no id.
//
// Ownership:
//
//	The node embeds the step payload. Slices and metadata reachable
//	from step transfer to the store and must not be mutated by the
//	caller afterwards.
func (s *Store) AddNode(step Step, parentID string, md *Metadata) *Node {
	if step.ID == "" {
		s.log.Debug("add node skipped: step without id")
		return nil
	}

	id := NodeIDForStep(step.ID)
	if existing, ok := s.nodes[id]; ok {
		s.log.Debug("add node skipped: duplicate step", slog.String("node_id", id))
		return existing
	}

	now := s.opts.Clock()
	stepCopy := step
	node := &Node{
		ID:        id,
		Kind:      step.Kind,
		Title:     step.Title,
		CreatedAt: now,
		Metadata:  step.Metadata.Clone().merge(md),
		Step:      &stepCopy,
	}

	var parent *Node
	if parentID == "" {
		if s.rootID == "" {
			s.rootID = id
		}
	} else {
		found, ok := s.nodes[parentID]
		if !ok {
			s.log.Debug("add node: parent unresolved, node left unlinked",
				slog.String("node_id", id),
				slog.String("parent_id", parentID))
		} else {
			parent = found
		}
	}

	if parent != nil {
		node.Parents = append(node.Parents, parent.ID)
		node.Level = parent.Level + 1
		parent.Children = append(parent.Children, id)
	}

	s.nodes[id] = node
	s.path = append(s.path, id)
	s.insertedAt[id] = now

	if parent != nil {
		kind := EdgeKindSequential
		if step.Kind == StepKindError {
			kind = EdgeKindError
		}
		s.insertEdge(parent.ID, id, kind, "")
	}

	s.version++
	recordNodeAdded(string(node.Kind))
	s.bus.emit(Event{Kind: EventNodeAdded, Version: s.version, NodeID: id})
	return node
}

// UpdateNodeDuration records the completion duration for a node.
//
// The duration is now minus the node's creation time and is recorded
// at most once: a second call is a no-op yielding the same duration
// as the first. Fires node-completed with the recorded duration.
func (s *Store) UpdateNodeDuration(nodeID string) {
	node, ok := s.nodes[nodeID]
	if !ok {
		s.log.Debug("update duration skipped: unknown node", slog.String("node_id", nodeID))
		return
	}
	if node.HasDuration() {
		return
	}

	d := s.opts.Clock().Sub(node.CreatedAt)
	if d <= 0 {
		// A coarse clock can report zero elapsed; the recording must
		// still stick so a later call cannot overwrite it.
		d = time.Nanosecond
	}
	node.Duration = d

	s.version++
	s.bus.emit(Event{Kind: EventNodeCompleted, Version: s.version, NodeID: nodeID, Duration: int64(d)})
}

// UpdateNodeMetadata shallow-merges partial into the node's metadata
// and bumps the version. Unknown node ids are a no-op.
func (s *Store) UpdateNodeMetadata(nodeID string, partial *Metadata) {
	node, ok := s.nodes[nodeID]
	if !ok {
		s.log.Debug("update metadata skipped: unknown node", slog.String("node_id", nodeID))
		return
	}
	if partial == nil {
		return
	}
	node.Metadata = node.Metadata.merge(partial)
	s.version++
}

// MarkNodeError retags a node as failed.
//
// Description:
//
//	The node's kind becomes the error kind and the message is
//	recorded in its metadata. An error edge labeled "Error occurred"
//	is linked from the last non-error node on the current path to the
//	failed node; when no such node exists the link is skipped. Fires
//	node-error carrying the node id and message.
func (s *Store) MarkNodeError(nodeID, message string) {
	node, ok := s.nodes[nodeID]
	if !ok {
		s.log.Debug("mark error skipped: unknown node", slog.String("node_id", nodeID))
		return
	}

	node.Kind = StepKindError
	if node.Metadata == nil {
		node.Metadata = &Metadata{}
	}
	node.Metadata.ErrorMessage = message

	if source := s.lastHealthyOnPath(); source != "" {
		s.insertEdge(source, nodeID, EdgeKindError, ErrorEdgeLabel)
	}

	s.version++
	s.bus.emit(Event{Kind: EventNodeError, Version: s.version, NodeID: nodeID, Error: message})
}

// lastHealthyOnPath returns the id of the most recently inserted
// non-error node still present on the current path, or "".
func (s *Store) lastHealthyOnPath() string {
	for i := len(s.path) - 1; i >= 0; i-- {
		id := s.path[i]
		if n, ok := s.nodes[id]; ok && n.Kind != StepKindError {
			return id
		}
	}
	return ""
}

// AddEdge creates a directed edge between two existing nodes.
//
// The id derives deterministically from (source, target, kind, label)
// with a numeric suffix on collision, so repeated relationships stay
// distinct. A missing endpoint is a no-op returning nil. Fires
// edge-added.
func (s *Store) AddEdge(source, target string, kind EdgeKind, label string) *Edge {
	if _, ok := s.nodes[source]; !ok {
		s.log.Debug("add edge skipped: unknown source", slog.String("source", source))
		return nil
	}
	if _, ok := s.nodes[target]; !ok {
		s.log.Debug("add edge skipped: unknown target", slog.String("target", target))
		return nil
	}

	edge := s.insertEdge(source, target, kind, label)
	s.version++
	recordEdgeAdded(string(kind))
	s.bus.emit(Event{Kind: EventEdgeAdded, Version: s.version, EdgeID: edge.ID})
	return edge
}

// insertEdge creates and stores an edge without touching the version
// counter or the bus. AddNode and MarkNodeError fold their implicit
// edge into the operation's own version bump and event.
func (s *Store) insertEdge(source, target string, kind EdgeKind, label string) *Edge {
	edge := &Edge{
		ID:     s.nextEdgeID(source, target, kind, label),
		Source: source,
		Target: target,
		Kind:   kind,
		Label:  label,
	}
	s.edges[edge.ID] = edge
	return edge
}

// RemoveEdge deletes an edge by id. Unknown ids are a no-op. Fires
// edge-removed.
func (s *Store) RemoveEdge(edgeID string) {
	if _, ok := s.edges[edgeID]; !ok {
		s.log.Debug("remove edge skipped: unknown edge", slog.String("edge_id", edgeID))
		return
	}
	delete(s.edges, edgeID)
	s.version++
	s.bus.emit(Event{Kind: EventEdgeRemoved, Version: s.version, EdgeID: edgeID})
}

// UpdateEdgeLabel replaces the label of an existing edge. The edge id
// keeps its creation-time identity. Unknown ids are a no-op.
func (s *Store) UpdateEdgeLabel(edgeID, label string) {
	edge, ok := s.edges[edgeID]
	if !ok {
		s.log.Debug("update edge skipped: unknown edge", slog.String("edge_id", edgeID))
		return
	}
	edge.Label = label
	s.version++
}

// Reset clears all session state.
//
// The version is rebased onto the wall clock (floored at the current
// version) and then incremented, so a post-reset version can never
// repeat a pre-reset one. Fires graph-reset.
func (s *Store) Reset() {
	s.nodes = make(map[string]*Node)
	s.edges = make(map[string]*Edge)
	s.rootID = ""
	s.path = s.path[:0]
	s.insertedAt = make(map[string]time.Time)

	base := uint64(s.opts.Clock().UnixMilli())
	if base < s.version {
		base = s.version
	}
	s.version = base + 1
	recordReset()
	s.bus.emit(Event{Kind: EventGraphReset, Version: s.version})
}

// Node returns the node with the given id.
func (s *Store) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id.
func (s *Store) Edge(id string) (*Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// NodeCount returns the number of live nodes.
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// EdgeCount returns the number of live edges.
func (s *Store) EdgeCount() int {
	return len(s.edges)
}

// RootID returns the root node id, or "" before the first parentless
// node arrives.
func (s *Store) RootID() string {
	return s.rootID
}

// Version returns the current version counter.
func (s *Store) Version() uint64 {
	return s.version
}

// CurrentPath returns a copy of the insertion-order node id list.
func (s *Store) CurrentPath() []string {
	return append([]string(nil), s.path...)
}

// InsertionTimes returns a copy of the per-node insertion timestamp
// bookkeeping used by archival ordering.
func (s *Store) InsertionTimes() map[string]time.Time {
	out := make(map[string]time.Time, len(s.insertedAt))
	for id, at := range s.insertedAt {
		out[id] = at
	}
	return out
}

// Nodes returns the live nodes in insertion order. Nodes missing from
// the current path (possible only in restored snapshots) follow in id
// order.
func (s *Store) Nodes() []*Node {
	out := make([]*Node, 0, len(s.nodes))
	seen := make(map[string]bool, len(s.nodes))
	for _, id := range s.path {
		if n, ok := s.nodes[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, n)
		}
	}
	if len(out) < len(s.nodes) {
		rest := make([]string, 0, len(s.nodes)-len(out))
		for id := range s.nodes {
			if !seen[id] {
				rest = append(rest, id)
			}
		}
		sort.Strings(rest)
		for _, id := range rest {
			out = append(out, s.nodes[id])
		}
	}
	return out
}

// Edges returns the live edges sorted by id for deterministic
// iteration.
func (s *Store) Edges() []*Edge {
	out := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
