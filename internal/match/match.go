// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package match selects which tools to offer the model for a turn.
// Offering every tool on every call wastes context and invites
// irrelevant calls; offering none blinds the model. Cheap local
// heuristics each nominate tools and the results are unioned.
package match

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/morganforge/tiller/internal/detect"
	"github.com/morganforge/tiller/internal/tools"
)

// ============================================================================
// MATCH CONTEXT
// ============================================================================

// Context carries the per-turn facts the heuristics read. It is rebuilt
// for every turn and never cached; project state can change between
// turns.
type Context struct {
	// WorkDir is the working directory the turn runs against.
	WorkDir string
	// OpenFiles and SelectedFiles are paths the user has in play, when
	// the front end knows them.
	OpenFiles     []string
	SelectedFiles []string
	// Project is the detected project type for the working directory.
	Project detect.Info
	// Capabilities explicitly requested by the caller, if any.
	Capabilities []string
}

// files returns every open and selected path.
func (c Context) files() []string {
	out := make([]string, 0, len(c.OpenFiles)+len(c.SelectedFiles))
	out = append(out, c.OpenFiles...)
	return append(out, c.SelectedFiles...)
}

// MatchResult is one heuristic's recommendation: a tool, the action it
// would lead with, a relative score, and a human-readable reason.
type MatchResult struct {
	Tool          *tools.Tool
	Action        string
	Score         float64
	Justification string
}

// ============================================================================
// SELECTION
// ============================================================================

// capabilitiesByProject maps a project type to the capabilities its
// work usually needs.
var capabilitiesByProject = map[detect.ProjectType][]string{
	detect.ProjectGo:     {"filesystem", "execute"},
	detect.ProjectNode:   {"filesystem", "execute"},
	detect.ProjectRust:   {"filesystem", "execute"},
	detect.ProjectPython: {"filesystem", "execute"},
	detect.ProjectDocker: {"filesystem", "execute"},
}

// sourceExtensions marks file extensions whose presence suggests the
// user is working on runnable code.
var sourceExtensions = map[string]bool{
	".go": true, ".rs": true, ".py": true, ".js": true,
	".ts": true, ".sh": true, ".rb": true, ".c": true,
}

// Match runs every heuristic and returns each recommendation with its
// score and justification:
//
//  1. keyword match of the message text against each tool's keywords
//  2. capability match against the context's requested capabilities
//  3. auto-select from the detected project type (vcs when a git repo
//     is present, plus the project's usual capabilities)
//  4. open and selected files nominate filesystem tools, and execute
//     tools when the files look like source code
//
// A tool can appear more than once, once per heuristic that nominated
// it. Callers wanting a flat tool set use SelectTools, which unions
// without rescoring.
func Match(registry *tools.Registry, message string, mctx Context) []MatchResult {
	text := strings.ToLower(message)

	var out []MatchResult
	out = append(out, keywordMatch(registry, text)...)
	for _, cap := range mctx.Capabilities {
		for _, tool := range registry.GetByCapability(cap) {
			out = append(out, MatchResult{
				Tool:          tool,
				Action:        leadAction(tool, text),
				Score:         1,
				Justification: fmt.Sprintf("caller requested capability %q", cap),
			})
		}
	}
	out = append(out, autoSelect(registry, text, mctx)...)
	out = append(out, fileSelect(registry, text, mctx)...)
	return out
}

// SelectTools returns the installed tools relevant to a message: the
// Match recommendations unioned and de-duplicated by tool ID in
// registration order, with no rescoring.
func SelectTools(registry *tools.Registry, message string, mctx Context) []*tools.Tool {
	selected := make(map[string]bool)
	for _, result := range Match(registry, message, mctx) {
		selected[result.Tool.ID] = true
	}

	var out []*tools.Tool
	for _, tool := range registry.GetInstalled() {
		if selected[tool.ID] {
			out = append(out, tool)
		}
	}
	return out
}

// keywordMatch nominates installed tools whose keywords appear in the
// already-lowercased message text, scoring one point per keyword hit.
func keywordMatch(registry *tools.Registry, text string) []MatchResult {
	var out []MatchResult
	for _, tool := range registry.GetInstalled() {
		var hits []string
		for _, kw := range tool.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		out = append(out, MatchResult{
			Tool:          tool,
			Action:        leadAction(tool, text),
			Score:         float64(len(hits)),
			Justification: fmt.Sprintf("message mentions %q", strings.Join(hits, ", ")),
		})
	}
	return out
}

// autoSelect nominates tools from the detected project type alone.
func autoSelect(registry *tools.Registry, text string, mctx Context) []MatchResult {
	var out []MatchResult

	if mctx.Project.GitRepo {
		for _, tool := range registry.GetByCapability("vcs") {
			out = append(out, MatchResult{
				Tool:          tool,
				Action:        leadAction(tool, text),
				Score:         0.5,
				Justification: "working directory is a git repository",
			})
		}
	}
	for _, cap := range capabilitiesByProject[mctx.Project.Type] {
		for _, tool := range registry.GetByCapability(cap) {
			out = append(out, MatchResult{
				Tool:          tool,
				Action:        leadAction(tool, text),
				Score:         0.5,
				Justification: fmt.Sprintf("detected %s project", mctx.Project.Type),
			})
		}
	}
	return out
}

// fileSelect nominates tools from the files the user has open or
// selected.
func fileSelect(registry *tools.Registry, text string, mctx Context) []MatchResult {
	files := mctx.files()
	if len(files) == 0 {
		return nil
	}

	caps := []string{"filesystem"}
	for _, f := range files {
		if sourceExtensions[filepath.Ext(f)] {
			caps = append(caps, "execute")
			break
		}
	}

	var out []MatchResult
	for _, cap := range caps {
		for _, tool := range registry.GetByCapability(cap) {
			out = append(out, MatchResult{
				Tool:          tool,
				Action:        leadAction(tool, text),
				Score:         0.5,
				Justification: fmt.Sprintf("%d file(s) in play, e.g. %s", len(files), filepath.Base(files[0])),
			})
		}
	}
	return out
}

// leadAction picks the action a recommendation leads with: the first
// action whose name appears in the message text, else the tool's first
// action.
func leadAction(tool *tools.Tool, text string) string {
	for i := range tool.Actions {
		if strings.Contains(text, strings.ToLower(tool.Actions[i].Name)) {
			return tool.Actions[i].Name
		}
	}
	if len(tool.Actions) > 0 {
		return tool.Actions[0].Name
	}
	return ""
}
