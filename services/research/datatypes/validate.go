// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianResearch/services/research/graph"
)

// boundaryValidate is the shared validator for the request boundary.
// Initialized in init() with the custom validators below.
var boundaryValidate *validator.Validate

func init() {
	boundaryValidate = validator.New()

	_ = boundaryValidate.RegisterValidation("stepkind", validateStepKind)
	_ = boundaryValidate.RegisterValidation("edgekind", validateEdgeKind)
	_ = boundaryValidate.RegisterValidation("extramap", validateExtraMap)
	_ = boundaryValidate.RegisterValidation("maxcontent", validateMaxContent)
}

// validateStepKind accepts only the closed step kind set. Unknown kinds
// are rejected here and never reach the store.
func validateStepKind(fl validator.FieldLevel) bool {
	return graph.StepKind(fl.Field().String()).IsValid()
}

// validateEdgeKind accepts only the closed edge kind set.
func validateEdgeKind(fl validator.FieldLevel) bool {
	return graph.EdgeKind(fl.Field().String()).IsValid()
}

// validateExtraMap enforces the bounds of the free-form metadata
// extension map: at most graph.MaxExtraKeys entries, keys up to
// graph.MaxExtraKeyBytes, values up to graph.MaxExtraValueBytes. Byte
// lengths, not rune counts, to bound memory.
func validateExtraMap(fl validator.FieldLevel) bool {
	extra, ok := fl.Field().Interface().(map[string]string)
	if !ok {
		return false
	}
	if len(extra) > graph.MaxExtraKeys {
		return false
	}
	for k, v := range extra {
		if len(k) == 0 || len(k) > graph.MaxExtraKeyBytes {
			return false
		}
		if len(v) > graph.MaxExtraValueBytes {
			return false
		}
	}
	return true
}

// validateMaxContent caps a string field at MaxStepContentBytes bytes.
func validateMaxContent(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxStepContentBytes
}

// generateUUID returns a random UUID string.
func generateUUID() string {
	return uuid.New().String()
}
