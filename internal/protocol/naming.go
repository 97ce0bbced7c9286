// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol converts between the neutral message/tool model and
// each vendor's wire format. All conversions are pure functions; no
// network or state lives here.
package protocol

import (
	"fmt"
	"strings"
)

// =============================================================================
// TOOL NAME ENCODING
// =============================================================================

// Wire tool names join the tool ID and action name with an underscore,
// e.g. "git_status". Underscores are legal inside tool IDs, so decoding
// is ambiguous in general ("web_search_fetch" could be web_search/fetch
// or web/search_fetch). DecodeToolName resolves this by probing the
// registry's known IDs longest-first; the plain first-underscore split
// is only a fallback for names no registered tool matches.

// EncodeToolName builds the wire name for a tool action.
func EncodeToolName(toolID, actionName string) string {
	return toolID + "_" + actionName
}

// DecodeToolName splits a wire name back into tool ID and action name.
// knownIDs must be sorted longest-first so that tool IDs containing
// underscores win over shorter prefixes.
func DecodeToolName(wireName string, knownIDs []string) (toolID, actionName string, err error) {
	for _, id := range knownIDs {
		prefix := id + "_"
		if strings.HasPrefix(wireName, prefix) && len(wireName) > len(prefix) {
			return id, wireName[len(prefix):], nil
		}
	}

	// Unknown tool; split on the first underscore so the caller can
	// report which tool ID was not found.
	idx := strings.Index(wireName, "_")
	if idx <= 0 || idx == len(wireName)-1 {
		return "", "", fmt.Errorf("malformed tool name %q: want <tool>_<action>", wireName)
	}
	return wireName[:idx], wireName[idx+1:], nil
}
