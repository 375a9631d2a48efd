// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scan walks a project root to build a ProjectDescriptor, and
// classifies an error message when the traceback carried no usable
// frames.
package scan

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/autodebug/pkg/model"
)

const maxWalkFiles = 20000

var defaultExcludes = []string{
	".git/**", "node_modules/**", "vendor/**", "__pycache__/**",
	"*.pyc", "dist/**", "build/**", "target/**", ".venv/**",
}

var markerFiles = map[string]string{
	"pyproject.toml": "python",
	"setup.py":       "python",
	"package.json":   "node",
	"go.mod":         "go",
	"Cargo.toml":     "rust",
	"pom.xml":        "java",
	"build.gradle":   "java",
}

var entryPointNames = []string{
	"main.py", "app.py", "manage.py", "index.js", "server.js", "index.ts",
	"main.go", "main.rs", "Main.java",
}

var frameworkMarkers = map[string][]string{
	"python": {"flask", "fastapi", "django", "celery"},
	"node":   {"express", "react", "next", "koa", "nestjs"},
	"go":     {"gin", "echo", "fiber", "chi"},
	"rust":   {"actix", "actix-web", "rocket", "axum"},
	"java":   {"spring", "springframework"},
}

// ValidateLocalPath rejects paths that escape outside root or target a
// handful of sensitive directories, used both here and by the safe
// applier's containment check.
func ValidateLocalPath(root, target string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(filepath.Join(root, target))
	if err != nil {
		return "", err
	}
	absRoot = filepath.Clean(absRoot)
	absTarget = filepath.Clean(absTarget)
	if absTarget != absRoot && !strings.HasPrefix(absTarget, absRoot+string(filepath.Separator)) {
		return "", errEscapes(target)
	}
	for _, sensitive := range []string{".git", ".ssh", ".aws"} {
		if hasPathComponent(absTarget, sensitive) {
			return "", errEscapes(target)
		}
	}
	return absTarget, nil
}

func hasPathComponent(path, component string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == component {
			return true
		}
	}
	return false
}

type pathEscapeErr struct{ path string }

func (e *pathEscapeErr) Error() string { return "path escapes project root: " + e.path }

func errEscapes(path string) error { return &pathEscapeErr{path: path} }

// IsPathEscape reports whether err was produced by ValidateLocalPath's
// containment check, so callers can map it to the path_escape taxonomy
// entry.
func IsPathEscape(err error) bool {
	_, ok := err.(*pathEscapeErr)
	return ok
}

// Scan walks root and builds a ProjectDescriptor: detected project type,
// frameworks, entry points, and the filtered list of source files.
func Scan(root string) (*model.ProjectDescriptor, error) {
	desc := &model.ProjectDescriptor{Root: root, ProjectType: "unknown"}
	excludes := append([]string{}, defaultExcludes...)
	excludes = append(excludes, readGitignore(root)...)

	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if matchesAny(relSlash, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		count++
		if count > maxWalkFiles {
			return filepath.SkipAll
		}

		if marker, ok := markerFiles[d.Name()]; ok && desc.ProjectType == "unknown" {
			desc.ProjectType = marker
			desc.Frameworks = detectFrameworks(path, marker)
		}
		base := d.Name()
		for _, ep := range entryPointNames {
			if base == ep {
				desc.EntryPoints = append(desc.EntryPoints, relSlash)
			}
		}

		desc.SourceFiles = append(desc.SourceFiles, relSlash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(desc.SourceFiles)
	sort.Strings(desc.EntryPoints)
	return desc, nil
}

func detectFrameworks(markerPath, projectType string) []string {
	data, err := os.ReadFile(markerPath)
	if err != nil {
		return nil
	}
	content := strings.ToLower(string(data))
	var found []string
	for _, fw := range frameworkMarkers[projectType] {
		if strings.Contains(content, fw) {
			found = append(found, fw)
		}
	}
	return found
}

func readGitignore(root string) []string {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "/")
		if strings.HasSuffix(line, "/") {
			line += "**"
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// matchesAny reports whether path matches any of the glob patterns, using
// a hand-rolled matcher supporting '*', '**', '?', and '[...]' classes —
// the same shape as a conventional .gitignore-style exclude list.
func matchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if matchGlob(p, path) || matchGlob(p, filepath.Base(path)) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, name string) bool {
	return matchGlobRecursive(splitPattern(pattern), splitPattern(name))
}

func splitPattern(s string) []string {
	return strings.Split(s, "/")
}

func matchGlobRecursive(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchGlobRecursive(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if !matchSegment(pattern[0], name[0]) {
			return false
		}
		pattern = pattern[1:]
		name = name[1:]
	}
	return len(name) == 0
}

func matchSegment(pattern, segment string) bool {
	pi, si := 0, 0
	starIdx, matchIdx := -1, 0
	for si < len(segment) {
		tokLen, ok := matchTokenAt(pattern, pi, segment[si])
		if pi < len(pattern) && pattern[pi] == '?' {
			pi++
			si++
		} else if ok {
			pi += tokLen
			si++
		} else if pi < len(pattern) && pattern[pi] == '*' {
			starIdx = pi
			matchIdx = si
			pi++
		} else if starIdx != -1 {
			pi = starIdx + 1
			matchIdx++
			si = matchIdx
		} else {
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// matchTokenAt reports whether the token starting at pattern[pi] matches
// c, and how many pattern bytes that token consumes ('[...]' classes are
// more than one byte; a literal is one). '*' and '?' are handled by the
// caller and report no match here.
func matchTokenAt(pattern string, pi int, c byte) (int, bool) {
	if pi >= len(pattern) || pattern[pi] == '*' || pattern[pi] == '?' {
		return 0, false
	}
	if pattern[pi] == '[' {
		end := strings.IndexByte(pattern[pi:], ']')
		if end == -1 {
			return 1, pattern[pi] == c
		}
		class := pattern[pi+1 : pi+end]
		return end + 1, strings.IndexByte(class, c) != -1
	}
	return 1, pattern[pi] == c
}
