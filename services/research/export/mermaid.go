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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

// MermaidOptions configures Mermaid diagram generation.
type MermaidOptions struct {
	// Direction is the flowchart direction (TB, LR, BT, RL).
	// Default: "TB"
	Direction string

	// IncludeStats prepends a comment header with session statistics.
	// Default: true
	IncludeStats bool

	// MaxNodes limits the number of rendered nodes; the overflow is
	// collapsed into a single marker node.
	// Default: 200
	MaxNodes int
}

// DefaultMermaidOptions returns sensible defaults.
func DefaultMermaidOptions() MermaidOptions {
	return MermaidOptions{
		Direction:    "TB",
		IncludeStats: true,
		MaxNodes:     200,
	}
}

// Mermaid renders the session graph as a Mermaid flowchart.
//
// Description:
//
//	Nodes render in insertion order with a shape per step kind: error
//	steps as hexagons, final answers as subroutine boxes, everything
//	else as rectangles. Error edges render dotted with their label,
//	other edges solid. Node ids are sanitized into Mermaid-safe
//	identifiers; distinct ids that sanitize to the same text get a
//	numeric suffix so they stay distinct in the diagram.
func Mermaid(s *graph.Store, opts *MermaidOptions) string {
	if opts == nil {
		defaults := DefaultMermaidOptions()
		opts = &defaults
	}
	direction := opts.Direction
	if direction == "" {
		direction = "TB"
	}

	var sb strings.Builder

	if opts.IncludeStats {
		stats := s.Statistics()
		sb.WriteString("%% research session export\n")
		sb.WriteString(fmt.Sprintf("%%%% nodes=%d edges=%d errors=%d success_rate=%.2f sources=%d citations=%d\n",
			stats.TotalNodes, s.EdgeCount(), stats.ErrorCount, stats.SuccessRate,
			stats.TotalSources, stats.UniqueCitations))
	}

	sb.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	nodes := s.Nodes()
	ids := assignMermaidIDs(nodes)
	rendered := make(map[string]bool, len(nodes))

	for i, node := range nodes {
		if opts.MaxNodes > 0 && i >= opts.MaxNodes {
			sb.WriteString(fmt.Sprintf("    more[...%d more]\n", len(nodes)-i))
			break
		}
		rendered[node.ID] = true

		label := escapeMermaidLabel(node.Title)
		if label == "" {
			label = escapeMermaidLabel(node.ID)
		}

		switch node.Kind {
		case graph.StepKindError:
			sb.WriteString(fmt.Sprintf("    %s{{\"%s\"}}:::errorStep\n", ids[node.ID], label))
		case graph.StepKindFinalAnswer:
			sb.WriteString(fmt.Sprintf("    %s[[\"%s\"]]:::finalAnswer\n", ids[node.ID], label))
		default:
			sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", ids[node.ID], label))
		}
	}

	sb.WriteString("\n")
	for _, edge := range s.Edges() {
		if !rendered[edge.Source] || !rendered[edge.Target] {
			continue
		}
		src, dst := ids[edge.Source], ids[edge.Target]

		switch {
		case edge.Kind == graph.EdgeKindError && edge.Label != "":
			sb.WriteString(fmt.Sprintf("    %s -.->|%s| %s\n", src, escapeMermaidLabel(edge.Label), dst))
		case edge.Kind == graph.EdgeKindError:
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", src, dst))
		case edge.Label != "":
			sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n", src, escapeMermaidLabel(edge.Label), dst))
		default:
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", src, dst))
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef errorStep fill:#ff6b6b,stroke:#333,stroke-width:2px,color:#fff\n")
	sb.WriteString("    classDef finalAnswer fill:#10ac84,stroke:#333,stroke-width:2px,color:#fff\n")

	return sb.String()
}

// assignMermaidIDs maps every node id to a unique Mermaid-safe
// identifier, suffixing sanitization collisions.
func assignMermaidIDs(nodes []*graph.Node) map[string]string {
	ids := make(map[string]string, len(nodes))
	taken := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		id := sanitizeMermaidID(node.ID)
		if taken[id] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", id, n)
				if !taken[candidate] {
					id = candidate
					break
				}
			}
		}
		taken[id] = true
		ids[node.ID] = id
	}
	return ids
}

func sanitizeMermaidID(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	result := sb.String()
	if result == "" {
		return "n"
	}
	// Ensure starts with letter
	if result[0] >= '0' && result[0] <= '9' {
		result = "n" + result
	}
	return result
}

func escapeMermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		"\"", "#quot;",
		"<", "&lt;",
		">", "&gt;",
		"\n", " ",
		"|", "/",
	)
	return replacer.Replace(s)
}
