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

// Package symbols extracts the syntactic unit (function, class, method,
// struct...) enclosing a given line of a source file. Go, JavaScript,
// TypeScript, Rust, and Java are handled by tree-sitter grammars; Python
// is handled by a hand-written indentation-aware scanner since no Go AST
// library for Python exists in the dependency graph this module draws
// from.
package symbols

import (
	"os"
	"strings"
	"sync"

	"github.com/kraklabs/autodebug/pkg/model"
)

// Parser extracts every Symbol in a file's source text.
type Parser interface {
	Parse(path string, source []byte) ([]model.Symbol, error)
}

var (
	registryMu sync.Mutex
	registry   = map[model.Language]Parser{}
)

func register(lang model.Language, p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[lang] = p
}

func init() {
	register(model.LangPython, pythonParser{})
	register(model.LangGo, newTreeSitterParser(model.LangGo))
	register(model.LangJavaScript, newTreeSitterParser(model.LangJavaScript))
	register(model.LangTypeScript, newTreeSitterParser(model.LangTypeScript))
	register(model.LangRust, newTreeSitterParser(model.LangRust))
	register(model.LangJava, newTreeSitterParser(model.LangJava))
}

func parserFor(lang model.Language) Parser {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[lang]
}

const fallbackRadius = 50

// Extract returns the best Symbol in path whose span contains line, or a
// synthetic ±50-line Symbol of kind "other" if no parsed symbol does (or
// the file can't be parsed at all). It never returns an error; diagnostic
// is non-empty when the file can't be read or its parser reports an error.
// Neither backend reports syntax errors: tree-sitter yields a partial tree
// and the Python scanner never fails, so a file with syntax errors gets an
// empty diagnostic.
func Extract(path string, line int, lang model.Language) (*model.Symbol, string) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, "read " + path + ": " + err.Error()
	}

	parser := parserFor(lang)
	var syms []model.Symbol
	var diagnostic string
	if parser != nil {
		syms, err = parser.Parse(path, source)
		if err != nil {
			diagnostic = err.Error()
		}
	}

	if best := selectBest(syms, line); best != nil {
		return best, diagnostic
	}
	return fallbackSymbol(path, string(source), line), diagnostic
}

// selectBest prefers the smallest containing span; ties break by the
// latest start line (the most deeply nested candidate).
func selectBest(syms []model.Symbol, line int) *model.Symbol {
	var best *model.Symbol
	for i := range syms {
		s := &syms[i]
		if !s.Contains(line) {
			continue
		}
		if best == nil {
			best = s
			continue
		}
		span := s.EndLine - s.StartLine
		bestSpan := best.EndLine - best.StartLine
		if span < bestSpan || (span == bestSpan && s.StartLine > best.StartLine) {
			best = s
		}
	}
	return best
}

func fallbackSymbol(path, source string, line int) *model.Symbol {
	lines := strings.Split(source, "\n")
	start := line - fallbackRadius
	if start < 1 {
		start = 1
	}
	end := line + fallbackRadius
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start, end = 1, len(lines)
	}
	text := strings.Join(lines[maxInt(0, start-1):minInt(len(lines), end)], "\n")
	return &model.Symbol{
		File: path, Kind: model.SymbolOther, Name: "<unresolved>",
		StartLine: start, EndLine: end, Source: text,
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
