// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateSessionId(t *testing.T) {
	valid := []string{
		"default",
		"s1",
		"550e8400-e29b-41d4-a716-446655440000",
		"user_7.canvas",
		strings.Repeat("a", 64),
	}
	for _, id := range valid {
		if err := ValidateSessionId(id); err != nil {
			t.Errorf("ValidateSessionId(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		".hidden",
		"has space",
		"path/traversal",
		"..",
		"new\nline",
		strings.Repeat("a", 65),
	}
	for _, id := range invalid {
		if err := ValidateSessionId(id); err == nil {
			t.Errorf("ValidateSessionId(%q) = nil, want error", id)
		}
	}
}

func TestSanitizeSessionId(t *testing.T) {
	got, err := SanitizeSessionId("  live-7  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "live-7" {
		t.Errorf("expected trimmed id, got %q", got)
	}

	if _, err := SanitizeSessionId("  "); err == nil {
		t.Error("whitespace-only id must fail")
	}
}
