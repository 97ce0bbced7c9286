// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect identifies the kind of project in a working directory
// so tool selection can favor relevant capabilities.
//
// Detection is a cheap marker-file scan (go.mod, package.json, and so
// on) and is recomputed per conversational turn; directories change
// under long-lived sessions.
package detect

import (
	"os"
	"path/filepath"
)

// =============================================================================
// PROJECT TYPE DEFINITIONS
// =============================================================================

// ProjectType represents the kind of project found in a directory.
type ProjectType int

const (
	// ProjectUnknown means no recognized marker file was found.
	ProjectUnknown ProjectType = iota
	// ProjectGo indicates a Go module (go.mod).
	ProjectGo
	// ProjectNode indicates a Node.js package (package.json).
	ProjectNode
	// ProjectRust indicates a Cargo crate (Cargo.toml).
	ProjectRust
	// ProjectPython indicates a Python project (pyproject.toml or
	// requirements.txt).
	ProjectPython
	// ProjectDocker indicates a Dockerfile with no other marker.
	ProjectDocker
)

// String returns the display name of the project type.
func (t ProjectType) String() string {
	switch t {
	case ProjectGo:
		return "go"
	case ProjectNode:
		return "node"
	case ProjectRust:
		return "rust"
	case ProjectPython:
		return "python"
	case ProjectDocker:
		return "docker"
	default:
		return "unknown"
	}
}

// =============================================================================
// PROJECT INFO
// =============================================================================

// Info describes what was detected in a directory.
type Info struct {
	Type ProjectType
	// Marker is the file that decided the type.
	Marker string
	// GitRepo is set when the directory is under version control.
	GitRepo bool
}

// markers maps decision files to project types, checked in order so
// language markers win over a bare Dockerfile.
var markers = []struct {
	file string
	typ  ProjectType
}{
	{"go.mod", ProjectGo},
	{"package.json", ProjectNode},
	{"Cargo.toml", ProjectRust},
	{"pyproject.toml", ProjectPython},
	{"requirements.txt", ProjectPython},
	{"Dockerfile", ProjectDocker},
}

// Detect scans dir for project marker files.
func Detect(dir string) Info {
	info := Info{Type: ProjectUnknown}

	for _, m := range markers {
		if fileExists(filepath.Join(dir, m.file)) {
			info.Type = m.typ
			info.Marker = m.file
			break
		}
	}

	if fi, err := os.Stat(filepath.Join(dir, ".git")); err == nil && fi.IsDir() {
		info.GitRepo = true
	}

	return info
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
