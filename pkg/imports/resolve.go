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

// Package imports enumerates and resolves a source file's import
// statements to project-local paths, and assembles the lazily-resolved
// dependency graph used for upstream/downstream neighborhood queries.
package imports

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/autodebug/pkg/model"
)

var (
	pyImportRe = regexp.MustCompile(`^\s*(?:from\s+(\.*[\w.]*)\s+import\s+[\w, *()]+|import\s+([\w.]+))`)
	jsImportRe = regexp.MustCompile(`(?:import\s+(?:[\w*{}, ]+\s+from\s+)?['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\))`)
	goImportRe = regexp.MustCompile(`^\s*(?:_\s+)?"([^"]+)"`)
	rustUseRe  = regexp.MustCompile(`^\s*use\s+([\w:]+)`)
	javaImport = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)(?:\.\*)?;`)

	jsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}
)

// Extract enumerates a file's import statements without resolving them.
func Extract(content string, lang model.Language) []string {
	switch lang {
	case model.LangPython:
		return extractMatches(content, pyImportRe, 1, 2)
	case model.LangJavaScript, model.LangTypeScript:
		return extractMatches(content, jsImportRe, 1, 2)
	case model.LangGo:
		return extractMatches(content, goImportRe, 1)
	case model.LangRust:
		return extractMatches(content, rustUseRe, 1)
	case model.LangJava:
		return extractMatches(content, javaImport, 1)
	default:
		return nil
	}
}

func extractMatches(content string, re *regexp.Regexp, groups ...int) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, g := range groups {
			if g < len(m) && m[g] != "" {
				out = append(out, m[g])
				break
			}
		}
	}
	return out
}

// Resolve resolves one import statement found in sourceFile (project-
// relative) against root, per the per-language resolution table.
func Resolve(root, sourceFile, statement string, lang model.Language) model.Import {
	switch lang {
	case model.LangPython:
		return resolvePython(root, sourceFile, statement)
	case model.LangJavaScript, model.LangTypeScript:
		return resolveJS(root, sourceFile, statement)
	case model.LangGo:
		return resolveGo(root, statement)
	case model.LangRust:
		return resolveRust(root, statement)
	case model.LangJava:
		return resolveJava(root, statement)
	default:
		return model.Import{Statement: statement, Confidence: model.ConfidenceUnresolved}
	}
}

func resolvePython(root, sourceFile, statement string) model.Import {
	imp := model.Import{Statement: statement, Confidence: model.ConfidenceUnresolved}
	if strings.HasPrefix(statement, ".") {
		dir := filepath.Dir(filepath.Join(root, sourceFile))
		rest := strings.TrimLeft(statement, ".")
		cand := filepath.Join(dir, filepath.Join(strings.Split(rest, ".")...)+".py")
		if fileExists(cand) {
			imp.Resolved = relPath(root, cand)
			imp.Confidence = model.ConfidenceCertain
		}
		return imp
	}

	parts := strings.Split(statement, ".")
	asFile := filepath.Join(root, filepath.Join(parts...)) + ".py"
	asPkg := filepath.Join(root, filepath.Join(parts...), "__init__.py")

	var matches []string
	if fileExists(asFile) {
		matches = append(matches, asFile)
	}
	if fileExists(asPkg) {
		matches = append(matches, asPkg)
	}
	switch len(matches) {
	case 1:
		imp.Resolved = relPath(root, matches[0])
		imp.Confidence = model.ConfidenceCertain
	case 0:
		// stays unresolved
	default:
		imp.Resolved = relPath(root, matches[0])
		imp.Confidence = model.ConfidenceHeuristic
	}
	return imp
}

func resolveJS(root, sourceFile, statement string) model.Import {
	imp := model.Import{Statement: statement, Confidence: model.ConfidenceUnresolved}
	if !strings.HasPrefix(statement, ".") && !strings.HasPrefix(statement, "/") {
		return imp // bare specifier, node_modules excluded
	}

	base := filepath.Join(filepath.Dir(filepath.Join(root, sourceFile)), statement)
	if strings.HasPrefix(statement, "/") {
		base = filepath.Join(root, statement)
	}

	var candidates []string
	for _, ext := range jsExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range jsExtensions {
		candidates = append(candidates, filepath.Join(base, "index"+ext))
	}
	if fileExists(base) {
		candidates = append([]string{base}, candidates...)
	}

	for _, c := range candidates {
		if fileExists(c) {
			imp.Resolved = relPath(root, c)
			imp.Confidence = model.ConfidenceCertain
			return imp
		}
	}
	return imp
}

func resolveGo(root, statement string) model.Import {
	imp := model.Import{Statement: statement, Confidence: model.ConfidenceUnresolved}
	if !strings.Contains(statement, "/") && !strings.Contains(statement, ".") {
		return imp // stdlib package
	}

	var found []string
	// Match the tail of the import path against directory suffixes under the project.
	tail := statement
	entries, err := listDirs(root)
	if err != nil {
		return imp
	}
	for _, dir := range entries {
		if strings.HasSuffix(dir, tail) || strings.HasSuffix(filepath.ToSlash(dir), lastSegments(tail, 2)) {
			found = append(found, dir)
		}
	}
	if len(found) == 1 {
		imp.Resolved = relPath(root, filepath.Join(root, found[0]))
		imp.Confidence = model.ConfidenceCertain
	} else if len(found) > 1 {
		imp.Resolved = relPath(root, filepath.Join(root, found[0]))
		imp.Confidence = model.ConfidenceHeuristic
	}
	return imp
}

func lastSegments(path string, n int) string {
	parts := strings.Split(path, "/")
	if len(parts) <= n {
		return path
	}
	return strings.Join(parts[len(parts)-n:], "/")
}

func listDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			rel, _ := filepath.Rel(root, path)
			if rel != "." {
				dirs = append(dirs, filepath.ToSlash(rel))
			}
		}
		return nil
	})
	return dirs, err
}

func resolveRust(root, statement string) model.Import {
	imp := model.Import{Statement: statement, Confidence: model.ConfidenceUnresolved}
	segs := strings.Split(statement, "::")
	if len(segs) == 0 {
		return imp
	}
	base := filepath.Join(append([]string{root, "src"}, segs...)...)
	candidates := []string{base + ".rs", filepath.Join(base, "mod.rs")}
	for _, c := range candidates {
		if fileExists(c) {
			imp.Resolved = relPath(root, c)
			imp.Confidence = model.ConfidenceHeuristic
			return imp
		}
	}
	return imp
}

func resolveJava(root, statement string) model.Import {
	imp := model.Import{Statement: statement, Confidence: model.ConfidenceUnresolved}
	rel := strings.ReplaceAll(statement, ".", "/") + ".java"
	for _, srcRoot := range []string{"src/main/java", "src"} {
		cand := filepath.Join(root, srcRoot, rel)
		if fileExists(cand) {
			imp.Resolved = relPath(root, cand)
			imp.Confidence = model.ConfidenceCertain
			return imp
		}
	}
	return imp
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// ResolveFile reads sourceFile, enumerates its imports, and resolves each
// against root.
func ResolveFile(root, sourceFile string, lang model.Language) ([]model.Import, error) {
	content, err := os.ReadFile(filepath.Join(root, sourceFile))
	if err != nil {
		return nil, err
	}
	stmts := Extract(string(content), lang)
	out := make([]model.Import, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, Resolve(root, sourceFile, s, lang))
	}
	return out, nil
}
