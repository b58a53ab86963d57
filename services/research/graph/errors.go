// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the event-sourced research session graph.
//
// The graph package contains the session store (nodes, edges, root,
// current path, version counter), the embedded event bus with batch
// mode, the statistics engine, and the archival policy. Nodes are
// research steps; edges are sequential, dependency, or error
// relationships between them.
//
// # Failure Model
//
// Mutations against unresolved node or edge ids are silent no-ops,
// logged at debug level. Out-of-order arrival of asynchronous steps
// must never abort a session, so the store favors availability over
// strict reference checking. Callers must not assume an error return
// on a bad reference; the sentinel errors below surface only from
// snapshot restoration, where corrupt input is a compatibility
// problem the caller has to handle explicitly.
//
// # Thread Safety
//
// Store is NOT safe for concurrent use. One logical session owns one
// Store, and the owner serializes access; concurrent sessions use
// separate instances. Event delivery is synchronous on the mutating
// goroutine and is not reentrant-safe.
package graph

import "errors"

// Sentinel errors for graph restoration.
var (
	// ErrCorruptSnapshot is returned when restoring from a snapshot
	// whose structure is internally inconsistent. Callers should
	// discard the snapshot and start a fresh session.
	ErrCorruptSnapshot = errors.New("corrupt graph snapshot")

	// ErrUnknownNode is wrapped into ErrCorruptSnapshot details when
	// an edge, the root, or the current path references a node id
	// that is not present in the snapshot.
	ErrUnknownNode = errors.New("unknown node id")

	// ErrDuplicateNode is wrapped into ErrCorruptSnapshot details
	// when a snapshot carries two nodes with the same id.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrDuplicateEdge is wrapped into ErrCorruptSnapshot details
	// when a snapshot carries two edges with the same id.
	ErrDuplicateEdge = errors.New("duplicate edge id")
)
