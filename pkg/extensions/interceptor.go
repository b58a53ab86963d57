// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import "context"

// StepInfo is the boundary projection of an incoming research step handed
// to interceptors. It carries identity only; step content stays inside the
// service.
type StepInfo struct {
	// SessionID is the session the step is entering.
	SessionID string

	// StepID is the producer-assigned step id.
	StepID string

	// Kind is the step kind string.
	Kind string

	// Title is the step title.
	Title string
}

// StepInterceptor observes steps as they enter a session graph.
//
// # Description
//
// Called before a step is materialized as a node. Returning an error
// rejects the step at the boundary; the graph is not touched. Deployments
// use this for quota enforcement, tenancy checks, or intake audit trails.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; steps for different
// sessions arrive on different goroutines.
type StepInterceptor interface {
	// Intercept inspects one incoming step. A non-nil error rejects it.
	Intercept(ctx context.Context, info StepInfo) error
}

// NopStepInterceptor accepts every step. The open source default.
type NopStepInterceptor struct{}

// Intercept accepts the step.
func (*NopStepInterceptor) Intercept(context.Context, StepInfo) error { return nil }

var _ StepInterceptor = (*NopStepInterceptor)(nil)
