// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the request boundary of the research graph
// service.
//
// Step-producing collaborators talk to the service through the types in
// this package. All payload validation happens here, with
// go-playground/validator struct tags plus custom validators for the
// closed kind enumerations and the bounded metadata extension map; the
// graph core itself only checks step id uniqueness.
package datatypes

import (
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

// =============================================================================
// Size Limits
// =============================================================================

const (
	// MaxStepIDBytes is the maximum size of a producer-assigned step id.
	MaxStepIDBytes = 128

	// MaxStepTitleBytes is the maximum size of a step title.
	MaxStepTitleBytes = 512

	// MaxStepContentBytes is the maximum size of a step body. Mirrors
	// the org's request-size compliance limit for message content.
	MaxStepContentBytes = 32 * 1024 // 32KB

	// MaxStepSources is the maximum number of citations attached
	// directly to one step.
	MaxStepSources = 100

	// MaxEdgeLabelBytes is the maximum size of an edge label.
	MaxEdgeLabelBytes = 256
)

// =============================================================================
// Step Intake Payloads
// =============================================================================

// SourcePayload is one citation in an incoming step or section.
type SourcePayload struct {
	URL   string `json:"url,omitempty" validate:"omitempty,max=2048"`
	Title string `json:"title,omitempty" validate:"omitempty,max=512"`
}

// SectionPayload is a titled citation group in incoming metadata.
type SectionPayload struct {
	Title   string          `json:"title,omitempty" validate:"omitempty,max=512"`
	Sources []SourcePayload `json:"sources,omitempty" validate:"omitempty,max=100,dive"`
}

// MetadataPayload is the incoming form of step metadata.
//
// The closed fields map one-to-one onto graph.Metadata; Extra is the
// bounded free-form extension map, enforced by the `extramap` custom
// validator (at most 16 keys, keys up to 64 bytes, values up to 1 KiB).
type MetadataPayload struct {
	Model                 string             `json:"model,omitempty" validate:"omitempty,max=128"`
	Effort                string             `json:"effort,omitempty" validate:"omitempty,max=64"`
	ParadigmProbabilities map[string]float64 `json:"paradigm_probabilities,omitempty" validate:"omitempty,max=32,dive,gte=0,lte=1"`
	SourceCount           int                `json:"source_count,omitempty" validate:"gte=0"`
	ErrorMessage          string             `json:"error_message,omitempty" validate:"omitempty,max=2048"`
	Sections              []SectionPayload   `json:"sections,omitempty" validate:"omitempty,max=100,dive"`
	Extra                 map[string]string  `json:"extra,omitempty" validate:"omitempty,extramap"`
}

// ToGraph converts the payload into the core metadata type. Nil stays
// nil so absent metadata never materializes an empty struct.
func (m *MetadataPayload) ToGraph() *graph.Metadata {
	if m == nil {
		return nil
	}
	md := &graph.Metadata{
		Model:        m.Model,
		Effort:       m.Effort,
		SourceCount:  m.SourceCount,
		ErrorMessage: m.ErrorMessage,
	}
	if m.ParadigmProbabilities != nil {
		md.ParadigmProbabilities = make(map[string]float64, len(m.ParadigmProbabilities))
		for k, v := range m.ParadigmProbabilities {
			md.ParadigmProbabilities[k] = v
		}
	}
	for _, sec := range m.Sections {
		section := graph.Section{Title: sec.Title}
		for _, src := range sec.Sources {
			section.Sources = append(section.Sources, graph.Source{URL: src.URL, Title: src.Title})
		}
		md.Sections = append(md.Sections, section)
	}
	if m.Extra != nil {
		md.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			md.Extra[k] = v
		}
	}
	return md
}

// StepPayload is one incoming research step.
type StepPayload struct {
	// ID is the producer-assigned unique step id. Node ids derive from
	// it, so re-sending a step id is a no-op rather than a duplicate.
	ID string `json:"id" validate:"required,max=128"`

	// Kind is the step classification; must be one of the closed set.
	Kind string `json:"kind" validate:"required,stepkind"`

	// Title is the display title.
	Title string `json:"title" validate:"required,max=512"`

	// Content is the optional step body, capped at 32KB.
	Content string `json:"content,omitempty" validate:"omitempty,maxcontent"`

	// Sources are citations attached directly to the step.
	Sources []SourcePayload `json:"sources,omitempty" validate:"omitempty,max=100,dive"`

	// Metadata carries optional producer annotations.
	Metadata *MetadataPayload `json:"metadata,omitempty"`
}

// ToGraph converts the payload into the core step type.
func (s *StepPayload) ToGraph() graph.Step {
	step := graph.Step{
		ID:       s.ID,
		Kind:     graph.StepKind(s.Kind),
		Title:    s.Title,
		Content:  s.Content,
		Metadata: s.Metadata.ToGraph(),
	}
	for _, src := range s.Sources {
		step.Sources = append(step.Sources, graph.Source{URL: src.URL, Title: src.Title})
	}
	return step
}

// =============================================================================
// Request Types
// =============================================================================

// CreateSessionRequest starts a new research session.
type CreateSessionRequest struct {
	// SessionID is optional; a UUID is generated when empty.
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

// Validate checks the request against its tags.
func (r *CreateSessionRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// AppendStepRequest materializes a step as a graph node.
type AppendStepRequest struct {
	// Step is the incoming step.
	Step StepPayload `json:"step" validate:"required"`

	// ParentID is the optional parent node id. An unresolvable parent
	// does not fail the request; the node is created unlinked.
	ParentID string `json:"parent_id,omitempty" validate:"omitempty,max=256"`
}

// Validate checks the request against its tags.
func (r *AppendStepRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// ErrorStepRequest marks a node as failed.
type ErrorStepRequest struct {
	// Message is the failure description.
	Message string `json:"message" validate:"required,max=2048"`
}

// Validate checks the request against its tags.
func (r *ErrorStepRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// MergeMetadataRequest shallow-merges metadata into a node.
type MergeMetadataRequest struct {
	Metadata MetadataPayload `json:"metadata" validate:"required"`
}

// Validate checks the request against its tags.
func (r *MergeMetadataRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// AddEdgeRequest creates an explicit edge between two existing nodes.
type AddEdgeRequest struct {
	Source string `json:"source" validate:"required,max=256"`
	Target string `json:"target" validate:"required,max=256"`
	Kind   string `json:"kind" validate:"required,edgekind"`
	Label  string `json:"label,omitempty" validate:"omitempty,max=256"`
}

// Validate checks the request against its tags.
func (r *AddEdgeRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// ArchiveRequest bounds the session to at most MaxNodes live nodes
// (plus the critical path).
type ArchiveRequest struct {
	MaxNodes int `json:"max_nodes" validate:"required,gt=0"`
}

// Validate checks the request against its tags.
func (r *ArchiveRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// LayoutRequest asks for a positioned layout of the session graph.
type LayoutRequest struct {
	// RequestID correlates the response; clients overlap requests and
	// discard stale responses by id. Generated when empty.
	RequestID string `json:"request_id,omitempty" validate:"omitempty,uuid4"`
}

// Validate checks the request against its tags.
func (r *LayoutRequest) Validate() error {
	return boundaryValidate.Struct(r)
}

// EnsureDefaults generates a RequestID when the client supplied none.
func (r *LayoutRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
}

// =============================================================================
// Response Types
// =============================================================================

// ArchiveResponse reports the effect of one archive pass.
type ArchiveResponse struct {
	SessionID      string `json:"session_id"`
	DroppedNodes   int    `json:"dropped_nodes"`
	DroppedEdges   int    `json:"dropped_edges"`
	RemainingNodes int    `json:"remaining_nodes"`
	Version        uint64 `json:"version"`
}
