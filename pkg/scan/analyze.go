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

package scan

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const analyzerPeekBytes = 8192

var (
	identifierRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]{3,}`)
	quotedRe     = regexp.MustCompile(`'([^']{2,})'|"([^"]{2,})"`)
	httpVerbRe   = regexp.MustCompile(`\b(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\b`)
	statusCodeRe = regexp.MustCompile(`\b[1-5]\d{2}\b`)
	urlPathRe    = regexp.MustCompile(`/[A-Za-z0-9_\-/{}]+`)
)

var categoryKeywords = map[string][]string{
	"http":     {"request", "response", "status", "header", "url", "endpoint", "http"},
	"database": {"query", "sql", "connection", "transaction", "table", "column", "database", "db"},
	"import":   {"module", "import", "package", "require", "dependency"},
	"type":     {"type", "cast", "convert", "nil", "none", "null", "undefined"},
	"runtime":  {"panic", "segfault", "overflow", "deadlock", "goroutine", "thread"},
}

// CandidateFile is a scored match for an error keyword search.
type CandidateFile struct {
	Path  string
	Score int
}

// Keywords extracts searchable terms from an error message: identifiers
// longer than 3 characters, quoted literals, HTTP verbs, status codes,
// and URL-shaped paths.
func Keywords(message string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range identifierRe.FindAllString(message, -1) {
		add(m)
	}
	for _, m := range quotedRe.FindAllStringSubmatch(message, -1) {
		if m[1] != "" {
			add(m[1])
		} else {
			add(m[2])
		}
	}
	for _, m := range httpVerbRe.FindAllString(message, -1) {
		add(m)
	}
	for _, m := range statusCodeRe.FindAllString(message, -1) {
		add(m)
	}
	for _, m := range urlPathRe.FindAllString(message, -1) {
		add(m)
	}
	return out
}

// Category classifies an error message into a coarse bucket: it returns
// the first category, in the priority order http, database, import, type,
// runtime, that has any keyword occurring in the message, falling back to
// "other" when nothing matches. Matches are not counted.
func Category(message string) string {
	lower := strings.ToLower(message)
	order := []string{"http", "database", "import", "type", "runtime"}
	for _, cat := range order {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return "other"
}

// Candidates scores every source file under root by how many of keywords
// appear in its path or first analyzerPeekBytes of content, returning
// matches ordered by descending score then path.
func Candidates(root string, sourceFiles []string, keywords []string) []CandidateFile {
	var out []CandidateFile
	for _, rel := range sourceFiles {
		score := scoreFile(root, rel, keywords)
		if score > 0 {
			out = append(out, CandidateFile{Path: rel, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out
}

func scoreFile(root, rel string, keywords []string) int {
	score := 0
	lowerPath := strings.ToLower(rel)
	for _, kw := range keywords {
		if strings.Contains(lowerPath, strings.ToLower(kw)) {
			score += 3
		}
	}

	f, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return score
	}
	defer f.Close()

	buf := make([]byte, analyzerPeekBytes)
	n, _ := f.Read(buf)
	content := strings.ToLower(string(buf[:n]))
	for _, kw := range keywords {
		if strings.Contains(content, strings.ToLower(kw)) {
			score++
		}
	}
	return score
}
