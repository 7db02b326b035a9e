// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that end up
// in log output, map keys, and URL paths. Using these validators keeps
// injected control characters and path traversal sequences out of those
// surfaces.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// sessionIdPattern matches identifiers accepted from URL path segments.
// Allows: letters, digits, hyphens (UUIDs), underscores, dots
// Max length: 64 characters
var sessionIdPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateSessionId validates a session identifier taken from a request path.
//
// Valid session ids:
//   - 1-64 characters
//   - Letters and digits
//   - Hyphens (-) and underscores (_)
//   - Dots (.) except as the first character
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateSessionId(sessionId); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateSessionId(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	if !sessionIdPattern.MatchString(id) {
		return fmt.Errorf("invalid session id: %q (must be 1-64 alphanumeric chars, dots, hyphens, or underscores)", id)
	}

	return nil
}

// SanitizeSessionId normalizes and validates a session identifier.
// Returns the trimmed id if valid, or an error if invalid.
func SanitizeSessionId(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if err := ValidateSessionId(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}
