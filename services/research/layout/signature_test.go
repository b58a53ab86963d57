// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layout

import (
	"testing"

	"github.com/AleutianAI/AleutianResearch/services/research/export"
	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

func TestSignature_OrderIndependent(t *testing.T) {
	nodes := []export.ViewNode{vnode("a", 0), vnode("b", 1), vnode("c", 1)}
	edges := []export.ViewEdge{vedge("a", "b"), vedge("a", "c")}

	shuffledNodes := []export.ViewNode{nodes[2], nodes[0], nodes[1]}
	shuffledEdges := []export.ViewEdge{edges[1], edges[0]}

	if Signature(nodes, edges) != Signature(shuffledNodes, shuffledEdges) {
		t.Error("signature depends on input order")
	}
}

func TestSignature_StructuralFieldsParticipate(t *testing.T) {
	base := []export.ViewNode{vnode("a", 0), vnode("b", 1)}
	edges := []export.ViewEdge{vedge("a", "b")}
	ref := Signature(base, edges)

	t.Run("level change", func(t *testing.T) {
		changed := []export.ViewNode{vnode("a", 0), vnode("b", 2)}
		if Signature(changed, edges) == ref {
			t.Error("level change did not change the signature")
		}
	})

	t.Run("type change", func(t *testing.T) {
		changed := []export.ViewNode{vnode("a", 0), vnode("b", 1)}
		changed[1].Type = graph.StepKindError
		if Signature(changed, edges) == ref {
			t.Error("type change did not change the signature")
		}
	})

	t.Run("label change", func(t *testing.T) {
		changed := []export.ViewNode{vnode("a", 0), vnode("b", 1)}
		changed[1].Label = "renamed"
		if Signature(changed, edges) == ref {
			t.Error("label change did not change the signature")
		}
	})

	t.Run("edge type change", func(t *testing.T) {
		changed := []export.ViewEdge{vedge("a", "b")}
		changed[0].Type = graph.EdgeKindError
		if Signature(base, changed) == ref {
			t.Error("edge type change did not change the signature")
		}
	})
}

func TestSignature_CosmeticFieldsIgnored(t *testing.T) {
	base := []export.ViewNode{vnode("a", 0), vnode("b", 1)}
	edges := []export.ViewEdge{vedge("a", "b")}
	ref := Signature(base, edges)

	decorated := []export.ViewNode{vnode("a", 0), vnode("b", 1)}
	decorated[0].DurationMillis = 1200
	decorated[1].Metadata = &graph.Metadata{Model: "sonnet", SourceCount: 9}
	labeledEdges := []export.ViewEdge{vedge("a", "b")}
	labeledEdges[0].Label = "depends on"

	if Signature(decorated, labeledEdges) != ref {
		t.Error("metadata, duration, or edge label leaked into the signature")
	}
}
