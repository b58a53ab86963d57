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
	"time"
)

// StepKind classifies a research step.
//
// Kinds are a closed set. Unknown kinds are rejected at the request
// boundary (datatypes package) and never reach the store.
type StepKind string

const (
	// StepKindSearch is a web or corpus search step.
	StepKindSearch StepKind = "search"

	// StepKindAnalysis is an analysis step over gathered material.
	StepKindAnalysis StepKind = "analysis"

	// StepKindSynthesis combines prior findings into new material.
	StepKindSynthesis StepKind = "synthesis"

	// StepKindDecision is a branch point in the research narrative.
	StepKindDecision StepKind = "decision"

	// StepKindFinalAnswer is the concluding step of a session.
	StepKindFinalAnswer StepKind = "final-answer"

	// StepKindError marks a failed step.
	StepKindError StepKind = "error"
)

// stepKinds is the closed set of valid step kinds.
var stepKinds = map[StepKind]bool{
	StepKindSearch:      true,
	StepKindAnalysis:    true,
	StepKindSynthesis:   true,
	StepKindDecision:    true,
	StepKindFinalAnswer: true,
	StepKindError:       true,
}

// IsValid reports whether k is one of the known step kinds.
func (k StepKind) IsValid() bool {
	return stepKinds[k]
}

// String returns the string representation of the StepKind.
func (k StepKind) String() string {
	return string(k)
}

// EdgeKind classifies the relationship an edge expresses.
type EdgeKind string

const (
	// EdgeKindSequential links a step to its successor on the narrative.
	EdgeKindSequential EdgeKind = "sequential"

	// EdgeKindDependency links a step to material it depends on.
	EdgeKindDependency EdgeKind = "dependency"

	// EdgeKindError links the last healthy step to a failed one.
	EdgeKindError EdgeKind = "error"
)

// edgeKinds is the closed set of valid edge kinds.
var edgeKinds = map[EdgeKind]bool{
	EdgeKindSequential: true,
	EdgeKindDependency: true,
	EdgeKindError:      true,
}

// IsValid reports whether k is one of the known edge kinds.
func (k EdgeKind) IsValid() bool {
	return edgeKinds[k]
}

// String returns the string representation of the EdgeKind.
func (k EdgeKind) String() string {
	return string(k)
}

// ErrorEdgeLabel is the label attached to edges created by MarkNodeError.
const ErrorEdgeLabel = "Error occurred"

// Source is a single citation attached to a step or a metadata section.
type Source struct {
	// URL is the citation link. May be empty for offline material.
	URL string `json:"url,omitempty"`

	// Title is the human-readable citation title.
	Title string `json:"title,omitempty"`
}

// Key returns the de-duplication key for the source: the URL when
// present, the title otherwise.
func (s Source) Key() string {
	if s.URL != "" {
		return s.URL
	}
	return s.Title
}

// Section is a titled group of sources inside step metadata.
type Section struct {
	// Title is the section heading.
	Title string `json:"title,omitempty"`

	// Sources are the citations gathered under this section.
	Sources []Source `json:"sources,omitempty"`
}

// Extension map bounds, enforced at the request boundary.
const (
	// MaxExtraKeys is the maximum number of entries in Metadata.Extra.
	MaxExtraKeys = 16

	// MaxExtraKeyBytes is the maximum byte length of an Extra key.
	MaxExtraKeyBytes = 64

	// MaxExtraValueBytes is the maximum byte length of an Extra value.
	MaxExtraValueBytes = 1024
)

// Metadata carries the optional, closed per-step annotations.
//
// Every field has a fixed meaning; free-form annotations go into the
// bounded Extra map. Merging is shallow: non-zero incoming fields
// replace existing ones, slices replace wholesale, and Extra merges
// key by key.
type Metadata struct {
	// Model names the model that produced the step, if any.
	Model string `json:"model,omitempty"`

	// Effort is the reported effort class (for example "high").
	Effort string `json:"effort,omitempty"`

	// ParadigmProbabilities maps paradigm name to probability.
	ParadigmProbabilities map[string]float64 `json:"paradigm_probabilities,omitempty"`

	// SourceCount is the source count reported by the producer. The
	// statistics engine takes the max of this and the attached source
	// list length.
	SourceCount int `json:"source_count,omitempty"`

	// ErrorMessage is set when the step failed.
	ErrorMessage string `json:"error_message,omitempty"`

	// Sections are titled citation groups.
	Sections []Section `json:"sections,omitempty"`

	// Extra is the bounded free-form extension map. Limits are
	// enforced where external steps enter the graph, not here.
	Extra map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy of the metadata. Nil stays nil.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := &Metadata{
		Model:        m.Model,
		Effort:       m.Effort,
		SourceCount:  m.SourceCount,
		ErrorMessage: m.ErrorMessage,
	}
	if m.ParadigmProbabilities != nil {
		out.ParadigmProbabilities = make(map[string]float64, len(m.ParadigmProbabilities))
		for k, v := range m.ParadigmProbabilities {
			out.ParadigmProbabilities[k] = v
		}
	}
	if m.Sections != nil {
		out.Sections = make([]Section, len(m.Sections))
		for i, sec := range m.Sections {
			cp := Section{Title: sec.Title}
			if sec.Sources != nil {
				cp.Sources = append([]Source(nil), sec.Sources...)
			}
			out.Sections[i] = cp
		}
	}
	if m.Extra != nil {
		out.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// merge shallow-merges partial into m and returns the result.
//
// Non-zero scalar fields replace, slices replace wholesale, Extra
// merges key-wise. A nil receiver returns a clone of partial.
func (m *Metadata) merge(partial *Metadata) *Metadata {
	if partial == nil {
		return m
	}
	if m == nil {
		return partial.Clone()
	}
	if partial.Model != "" {
		m.Model = partial.Model
	}
	if partial.Effort != "" {
		m.Effort = partial.Effort
	}
	if partial.ParadigmProbabilities != nil {
		m.ParadigmProbabilities = make(map[string]float64, len(partial.ParadigmProbabilities))
		for k, v := range partial.ParadigmProbabilities {
			m.ParadigmProbabilities[k] = v
		}
	}
	if partial.SourceCount != 0 {
		m.SourceCount = partial.SourceCount
	}
	if partial.ErrorMessage != "" {
		m.ErrorMessage = partial.ErrorMessage
	}
	if partial.Sections != nil {
		m.Sections = partial.Clone().Sections
	}
	for k, v := range partial.Extra {
		if m.Extra == nil {
			m.Extra = make(map[string]string, len(partial.Extra))
		}
		m.Extra[k] = v
	}
	return m
}

// Step is the payload a step-producing collaborator hands to the
// graph. The store checks only id uniqueness; everything else is
// validated at the request boundary.
type Step struct {
	// ID is the producer-assigned unique step id.
	ID string `json:"id"`

	// Kind classifies the step.
	Kind StepKind `json:"kind"`

	// Title is the human-readable step title.
	Title string `json:"title"`

	// Content is the optional step body.
	Content string `json:"content,omitempty"`

	// Sources are the citations attached directly to the step.
	Sources []Source `json:"sources,omitempty"`

	// Metadata carries optional producer annotations.
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Node is a research step materialized in the graph.
type Node struct {
	// ID is derived deterministically from the originating step id.
	ID string `json:"id"`

	// Kind classifies the node. MarkNodeError retags this to
	// StepKindError.
	Kind StepKind `json:"kind"`

	// Title is the display title, taken from the step.
	Title string `json:"title"`

	// CreatedAt is the node creation time.
	CreatedAt time.Time `json:"created_at"`

	// Duration is the completion duration. Zero until
	// UpdateNodeDuration records it; recorded at most once.
	Duration time.Duration `json:"duration,omitempty"`

	// Children holds child node ids in attachment order.
	Children []string `json:"children,omitempty"`

	// Parents holds parent node ids. Single parent in current use,
	// a list for extensibility.
	Parents []string `json:"parents,omitempty"`

	// Level is the hop distance from the root along the parent chain.
	Level int `json:"level"`

	// Metadata carries the merged node annotations.
	Metadata *Metadata `json:"metadata,omitempty"`

	// Step is the embedded original step payload.
	Step *Step `json:"step,omitempty"`
}

// HasDuration reports whether a completion duration was recorded.
func (n *Node) HasDuration() bool {
	return n.Duration > 0
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	// ID is derived deterministically from (source, target, kind,
	// label), with a numeric suffix on collision.
	ID string `json:"id"`

	// Source is the source node id.
	Source string `json:"source"`

	// Target is the target node id.
	Target string `json:"target"`

	// Kind classifies the relationship.
	Kind EdgeKind `json:"kind"`

	// Label is the optional display label.
	Label string `json:"label,omitempty"`
}

// StoreOptions configures a Store.
type StoreOptions struct {
	// Clock supplies the current time. Default: time.Now. Injected in
	// tests for deterministic durations and versions.
	Clock func() time.Time

	// Logger receives debug logs for defensive no-ops and listener
	// failures. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultStoreOptions returns the default store configuration.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Clock:  time.Now,
		Logger: slog.Default(),
	}
}

// StoreOption is a functional option for configuring a Store.
type StoreOption func(*StoreOptions)

// WithClock sets the time source used for creation timestamps,
// durations, and version rebasing.
func WithClock(clock func() time.Time) StoreOption {
	return func(o *StoreOptions) {
		if clock != nil {
			o.Clock = clock
		}
	}
}

// WithLogger sets the logger used by the store and its event bus.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(o *StoreOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}
