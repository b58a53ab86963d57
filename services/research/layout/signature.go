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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianResearch/services/research/export"
)

// Signature derives the cache key for a graph view.
//
// # Description
//
// Only layout-relevant fields participate: (id, level, type, label)
// per node and (source, target, type) per edge. Both signature lists
// are sorted before hashing, so input order never changes the key.
// Anything that would change the computed geometry or styling changes
// the signature; anything else (metadata, durations, edge labels) does
// not.
func Signature(nodes []export.ViewNode, edges []export.ViewEdge) string {
	nodeSigs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		nodeSigs = append(nodeSigs, fmt.Sprintf("%s|%d|%s|%s", n.ID, n.Level, n.Type, n.Label))
	}
	sort.Strings(nodeSigs)

	edgeSigs := make([]string, 0, len(edges))
	for _, e := range edges {
		edgeSigs = append(edgeSigs, fmt.Sprintf("%s|%s|%s", e.Source, e.Target, e.Type))
	}
	sort.Strings(edgeSigs)

	h := sha256.New()
	h.Write([]byte(strings.Join(nodeSigs, "\n")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(edgeSigs, "\n")))

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}
