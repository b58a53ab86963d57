// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command research runs the Aleutian research graph service.
//
// # Usage
//
//	# Start the HTTP server
//	research serve --port 12230 --data-dir ~/.aleutian/research
//
//	# Export a stored session
//	research export <session-id> --data-dir ~/.aleutian/research --format mermaid
//
// # Environment Variables
//
//   - RESEARCH_PORT: HTTP server port (default: 12230)
//   - RESEARCH_DATA_DIR: BadgerDB snapshot directory (default: in-memory)
//   - RESEARCH_OTEL_ENDPOINT: OpenTelemetry collector (default: disabled)
//   - RESEARCH_CONFIG_FILE: YAML config with hot-reloadable limits
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
