// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"testing"

	"github.com/morganforge/tiller/internal/tools"
)

// =============================================================================
// TOOL NAME ENCODING TESTS
// =============================================================================

func TestEncodeDecodeRoundTrip(t *testing.T) {
	knownIDs := []string{"web_search", "run_script", "git", "web", "run"}

	tests := []struct {
		toolID string
		action string
	}{
		{"git", "status"},
		{"web", "fetch"},
		{"web_search", "query"},
		{"run_script", "content"},
		{"run", "once"},
	}
	for _, tt := range tests {
		wire := EncodeToolName(tt.toolID, tt.action)
		gotTool, gotAction, err := DecodeToolName(wire, knownIDs)
		if err != nil {
			t.Errorf("DecodeToolName(%q): %v", wire, err)
			continue
		}
		if gotTool != tt.toolID || gotAction != tt.action {
			t.Errorf("DecodeToolName(%q) = (%q, %q), want (%q, %q)",
				wire, gotTool, gotAction, tt.toolID, tt.action)
		}
	}
}

func TestDecodeLongestIDWins(t *testing.T) {
	// "web_search_fetch" must resolve to web_search/fetch, not
	// web/search_fetch, when both IDs are registered.
	knownIDs := []string{"web_search", "web"}

	toolID, action, err := DecodeToolName("web_search_fetch", knownIDs)
	if err != nil {
		t.Fatal(err)
	}
	if toolID != "web_search" || action != "fetch" {
		t.Errorf("got (%q, %q), want (web_search, fetch)", toolID, action)
	}
}

func TestDecodeResidualAmbiguity(t *testing.T) {
	// "run_script_content" is ambiguous when both run and run_script are
	// registered: it could mean run/script_content or run_script/content.
	// The longest registered ID always wins, so the shorter tool loses
	// any action name that extends a sibling's ID. Tools must not ship
	// such action names; this pins the resolution either way.
	knownIDs := []string{"run_script", "run"}

	toolID, action, err := DecodeToolName("run_script_content", knownIDs)
	if err != nil {
		t.Fatal(err)
	}
	if toolID != "run_script" || action != "content" {
		t.Errorf("got (%q, %q), want (run_script, content)", toolID, action)
	}
}

func TestDecodeUnknownToolFallsBack(t *testing.T) {
	toolID, action, err := DecodeToolName("mystery_probe", []string{"git"})
	if err != nil {
		t.Fatal(err)
	}
	if toolID != "mystery" || action != "probe" {
		t.Errorf("got (%q, %q), want (mystery, probe)", toolID, action)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, name := range []string{"nounderscores", "_leading", "trailing_", "_"} {
		if _, _, err := DecodeToolName(name, nil); err == nil {
			t.Errorf("DecodeToolName(%q) should fail", name)
		}
	}
}

func TestRegistryIDsDecodeEveryBuiltin(t *testing.T) {
	r := tools.NewBuiltinRegistry()
	ids := r.IDs()

	for _, tool := range r.All() {
		for _, action := range tool.Actions {
			wire := EncodeToolName(tool.ID, action.Name)
			gotTool, gotAction, err := DecodeToolName(wire, ids)
			if err != nil {
				t.Errorf("DecodeToolName(%q): %v", wire, err)
				continue
			}
			if gotTool != tool.ID || gotAction != action.Name {
				t.Errorf("DecodeToolName(%q) = (%q, %q), want (%q, %q)",
					wire, gotTool, gotAction, tool.ID, action.Name)
			}
		}
	}
}
