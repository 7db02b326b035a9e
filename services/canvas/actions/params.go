// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package actions

// params.go contains typed accessors for raw, model-supplied parameter maps.
// Model output is JSON-decoded into map[string]any, so every read must
// tolerate missing keys and wrong types.

import (
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// getString returns the string at key, or defaultVal when absent or not a
// string.
func getString(params map[string]any, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getInt returns the integer at key, tolerating the float64 shape JSON
// decoding produces.
func getInt(params map[string]any, key string, defaultVal int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}

// getMap returns the nested object at key, or nil.
func getMap(params map[string]any, key string) map[string]any {
	if v, ok := params[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// getStringSlice collects string elements at key. Accepts a bare string as
// a one-element list; models frequently send both shapes.
func getStringSlice(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// getPosition extracts an {x, y} object at key, or nil when absent or
// malformed.
func getPosition(params map[string]any, key string) *datatypes.Position {
	obj := getMap(params, key)
	if obj == nil {
		return nil
	}
	x, xOk := asFloat(obj["x"])
	y, yOk := asFloat(obj["y"])
	if !xOk || !yOk {
		return nil
	}
	return &datatypes.Position{X: x, Y: y}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
