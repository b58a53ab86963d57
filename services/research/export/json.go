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
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

// SnapshotSchemaVersion is the current snapshot wire schema. Bump on
// breaking layout changes; Deserialize rejects versions it does not
// know.
const SnapshotSchemaVersion = 1

// Snapshot is the JSON wire form of a full session graph.
type Snapshot struct {
	// SchemaVersion identifies the snapshot layout.
	SchemaVersion int `json:"schema_version"`

	// Version is the store version at capture time.
	Version uint64 `json:"version"`

	// RootID is the root node id, empty for an empty session.
	RootID string `json:"root_id,omitempty"`

	// Nodes are the full nodes, including embedded steps.
	Nodes []*graph.Node `json:"nodes"`

	// Edges are the full edges.
	Edges []*graph.Edge `json:"edges"`

	// CurrentPath is the insertion-order node id list.
	CurrentPath []string `json:"current_path,omitempty"`

	// InsertedAtMillis maps node id to insertion time in Unix
	// milliseconds. Used by archival ordering after a restore.
	InsertedAtMillis map[string]int64 `json:"inserted_at_millis,omitempty"`
}

// Serialize captures the store as a self-contained JSON snapshot.
//
// Description:
//
//	The snapshot holds everything Deserialize needs to rebuild an
//	equivalent store: nodes with embedded steps, edges, root, current
//	path, insertion timestamps, and the version counter, under a
//	schema version stamp.
//
// Outputs:
//
//	[]byte - The JSON snapshot.
//	error - Non-nil when marshaling fails.
func Serialize(s *graph.Store) ([]byte, error) {
	snap := Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Version:       s.Version(),
		RootID:        s.RootID(),
		Nodes:         s.Nodes(),
		Edges:         s.Edges(),
		CurrentPath:   s.CurrentPath(),
	}

	times := s.InsertionTimes()
	if len(times) > 0 {
		snap.InsertedAtMillis = make(map[string]int64, len(times))
		for id, at := range times {
			snap.InsertedAtMillis[id] = at.UnixMilli()
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("serialize graph: %w", err)
	}
	return data, nil
}

// Deserialize rebuilds a store from snapshot bytes.
//
// Description:
//
//	Two failure tiers, both telling the caller to discard the blob:
//	bytes that do not decode (or carry an unknown schema version)
//	return ErrMalformedSnapshot; bytes that decode but fail the
//	graph's structural validation return the graph package's
//	ErrCorruptSnapshot.
//
// Inputs:
//
//	data - The snapshot bytes.
//	opts - Store options for the rebuilt store (clock, logger).
//
// Errors:
//
//	ErrMalformedSnapshot - Undecodable bytes or unknown schema.
//	graph.ErrCorruptSnapshot - Structurally invalid content.
func Deserialize(data []byte, opts ...graph.StoreOption) (*graph.Store, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: unknown schema version %d", ErrMalformedSnapshot, snap.SchemaVersion)
	}

	state := graph.RestoreState{
		Version: snap.Version,
		RootID:  snap.RootID,
		Nodes:   snap.Nodes,
		Edges:   snap.Edges,
		Path:    snap.CurrentPath,
	}
	if len(snap.InsertedAtMillis) > 0 {
		state.InsertedAt = make(map[string]time.Time, len(snap.InsertedAtMillis))
		for id, millis := range snap.InsertedAtMillis {
			state.InsertedAt[id] = time.UnixMilli(millis)
		}
	}

	return graph.Restore(state, opts...)
}
