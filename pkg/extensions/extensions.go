// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the collaborator interfaces of the research
// graph service.
//
// The graph core is deliberately free of external dependencies: persistence
// backends and step-producing pipelines plug in through the interfaces in
// this package. The open source build runs on no-op defaults; deployments
// inject concrete implementations via ServiceOptions.
//
// # Extension Categories
//
//   - snapshot.go: session snapshot persistence (SnapshotStore)
//   - interceptor.go: step intake hooks (StepInterceptor)
//
// # Usage
//
// Default (in-memory persistence, pass-through intake):
//
//	opts := extensions.DefaultOptions()
//	svc, err := research.New(cfg, &opts)
//
// With an injected backend:
//
//	opts := extensions.DefaultOptions().
//	    WithSnapshotStore(badgerStore)
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// All fields are optional; nil values are replaced with no-op defaults by
// DefaultOptions() or by services that check for nil.
type ServiceOptions struct {
	// SnapshotStore persists serialized session snapshots keyed by
	// session id.
	// Default: NopSnapshotStore (process-local, in-memory)
	SnapshotStore SnapshotStore

	// StepInterceptor observes steps as they enter a session graph
	// and may reject them at the boundary.
	// Default: NopStepInterceptor (pass-through)
	StepInterceptor StepInterceptor
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source build: snapshots live
// in process memory and steps pass through unmodified.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		SnapshotStore:   NewNopSnapshotStore(),
		StepInterceptor: &NopStepInterceptor{},
	}
}

// WithSnapshotStore returns a copy of opts with the given SnapshotStore.
// Useful for fluent configuration.
func (opts ServiceOptions) WithSnapshotStore(store SnapshotStore) ServiceOptions {
	opts.SnapshotStore = store
	return opts
}

// WithStepInterceptor returns a copy of opts with the given StepInterceptor.
func (opts ServiceOptions) WithStepInterceptor(i StepInterceptor) ServiceOptions {
	opts.StepInterceptor = i
	return opts
}
