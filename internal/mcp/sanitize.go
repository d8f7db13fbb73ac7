package mcp

import (
	"regexp"
	"strings"
)

// maxToolNameLen is the model-side limit on function names.
const maxToolNameLen = 63

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SafeToolName maps a remote tool name onto the model's allowed
// alphabet and length. Invalid characters become underscores; over-
// long names keep their head and tail around a "___" marker.
func SafeToolName(name string) string {
	safe := invalidNameChars.ReplaceAllString(name, "_")
	if len(safe) > maxToolNameLen {
		keep := maxToolNameLen - 3
		head := keep / 2
		tail := keep - head
		safe = safe[:head] + "___" + safe[len(safe)-tail:]
	}
	return safe
}

// PrefixedToolName disambiguates a colliding tool name with its
// server, staying within the length limit.
func PrefixedToolName(server, name string) string {
	return SafeToolName(server + "__" + name)
}

// SanitizeSchema strips `default` keys that appear inside anyOf
// branches, which the model's schema validator rejects, and recurses
// through nested schemas.
func SanitizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	return sanitizeNode(schema, false).(map[string]any)
}

func sanitizeNode(node any, insideAnyOf bool) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if key == "default" && insideAnyOf {
				continue
			}
			if key == "anyOf" {
				out[key] = sanitizeNode(val, true)
				continue
			}
			out[key] = sanitizeNode(val, insideAnyOf)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = sanitizeNode(item, insideAnyOf)
		}
		return out
	default:
		return v
	}
}

// DisplayToolName renders "server.tool" for confirmations.
func DisplayToolName(server, name string) string {
	return strings.Join([]string{server, name}, ".")
}
