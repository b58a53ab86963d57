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

import "log/slog"

// EventKind identifies a graph mutation notification.
type EventKind string

const (
	// EventNodeAdded fires after AddNode materializes a new node.
	EventNodeAdded EventKind = "node-added"

	// EventNodeCompleted fires when a completion duration is recorded.
	EventNodeCompleted EventKind = "node-completed"

	// EventNodeError fires when a node is marked as failed.
	EventNodeError EventKind = "node-error"

	// EventNodeRemoved fires for each node dropped by archival.
	EventNodeRemoved EventKind = "node-removed"

	// EventEdgeAdded fires after AddEdge creates an edge.
	EventEdgeAdded EventKind = "edge-added"

	// EventEdgeRemoved fires for each edge dropped by archival.
	EventEdgeRemoved EventKind = "edge-removed"

	// EventBatchUpdate is the synthetic aggregate emitted by EndBatch
	// before the queued events replay. NodeIDs carries the union of
	// node ids across the queued events.
	EventBatchUpdate EventKind = "batch-update"

	// EventGraphReset fires after Reset clears the session.
	EventGraphReset EventKind = "graph-reset"
)

// Event is a single graph notification. Fields are sparse; which are
// set depends on Kind.
type Event struct {
	// Kind identifies the mutation.
	Kind EventKind `json:"kind"`

	// Version is the store version after the mutation.
	Version uint64 `json:"version"`

	// NodeID is the affected node, when a single node is affected.
	NodeID string `json:"node_id,omitempty"`

	// NodeIDs is the union of affected node ids on batch-update.
	NodeIDs []string `json:"node_ids,omitempty"`

	// EdgeID is the affected edge for edge events.
	EdgeID string `json:"edge_id,omitempty"`

	// Duration is the recorded duration on node-completed, in
	// nanoseconds.
	Duration int64 `json:"duration,omitempty"`

	// Error is the failure message on node-error.
	Error string `json:"error,omitempty"`
}

// ListenerFunc receives graph events. Delivery is synchronous on the
// mutating goroutine; listeners must not mutate the store from inside
// a callback.
type ListenerFunc func(Event)

// subscription pairs a listener with its registration id so
// unsubscribe can remove exactly one entry.
type subscription struct {
	id int
	fn ListenerFunc
}

// Bus is the store's embedded notification fan-out.
//
// Listeners are invoked in subscription order. A panicking listener
// is recovered and logged; it never blocks delivery to the remaining
// listeners and never undoes the mutation that triggered the event.
//
// Batch mode queues events instead of delivering them. EndBatch
// delivers one synthetic batch-update carrying the union of node ids
// across the queue, then replays the queued events in their original
// order. Batch mode is not nestable: a second StartBatch clears the
// pending queue.
type Bus struct {
	log       *slog.Logger
	nextID    int
	listeners []subscription
	batching  bool
	pending   []Event
}

// NewBus creates an event bus. A nil logger falls back to
// slog.Default().
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Subscribe registers a listener and returns its unsubscribe
// function. Unsubscribing is idempotent.
func (b *Bus) Subscribe(fn ListenerFunc) func() {
	if fn == nil {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})
	return func() {
		for i, sub := range b.listeners {
			if sub.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (b *Bus) ListenerCount() int {
	return len(b.listeners)
}

// StartBatch switches the bus into batch mode. If the bus is already
// batching, the pending queue is cleared.
func (b *Bus) StartBatch() {
	b.batching = true
	b.pending = b.pending[:0]
}

// InBatch reports whether the bus is currently queueing events.
func (b *Bus) InBatch() bool {
	return b.batching
}

// EndBatch leaves batch mode. With a non-empty queue it delivers one
// batch-update event carrying the union of queued node ids, then
// replays each queued event in original order. An empty queue is a
// no-op beyond leaving batch mode.
func (b *Bus) EndBatch() {
	if !b.batching {
		return
	}
	b.batching = false
	if len(b.pending) == 0 {
		return
	}

	queued := b.pending
	b.pending = nil

	seen := make(map[string]bool, len(queued))
	union := make([]string, 0, len(queued))
	var version uint64
	for _, ev := range queued {
		if ev.Version > version {
			version = ev.Version
		}
		if ev.NodeID != "" && !seen[ev.NodeID] {
			seen[ev.NodeID] = true
			union = append(union, ev.NodeID)
		}
		for _, id := range ev.NodeIDs {
			if !seen[id] {
				seen[id] = true
				union = append(union, id)
			}
		}
	}

	b.deliver(Event{Kind: EventBatchUpdate, Version: version, NodeIDs: union})
	for _, ev := range queued {
		b.deliver(ev)
	}
}

// emit queues the event in batch mode, otherwise delivers it
// immediately.
func (b *Bus) emit(ev Event) {
	if b.batching {
		b.pending = append(b.pending, ev)
		return
	}
	b.deliver(ev)
}

// deliver invokes every listener, isolating panics per listener.
func (b *Bus) deliver(ev Event) {
	for _, sub := range b.listeners {
		b.invoke(sub, ev)
	}
}

func (b *Bus) invoke(sub subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("graph listener panicked",
				slog.Int("listener_id", sub.id),
				slog.String("event", string(ev.Kind)),
				slog.Any("panic", r))
		}
	}()
	sub.fn(ev)
}
