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

package symbols

import (
	"regexp"
	"strings"

	"github.com/kraklabs/autodebug/pkg/model"
)

var (
	pyDefRe   = regexp.MustCompile(`^(\s*)(async\s+def|def)\s+(\w+)\s*\(`)
	pyClassRe = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*[:(]`)
)

// pythonParser is a hand-written indentation-aware scanner standing in
// for a native Python AST backend: it walks the source line by line,
// tracking each def/class's indent level, and closes a symbol's span
// when a later line at the same or shallower indent begins.
type pythonParser struct{}

type pyOpenSymbol struct {
	sym    model.Symbol
	indent int
}

func (pythonParser) Parse(path string, source []byte) ([]model.Symbol, error) {
	lines := strings.Split(string(source), "\n")
	var out []model.Symbol
	var stack []pyOpenSymbol

	closeTo := func(indent int, upToLine int) {
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			top.sym.EndLine = upToLine
			top.sym.Source = strings.Join(lines[top.sym.StartLine-1:top.sym.EndLine], "\n")
			out = append(out, top.sym)
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := indentWidth(line)

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			closeTo(indent, lineNo-1)
			stack = append(stack, pyOpenSymbol{
				sym:    model.Symbol{File: path, Kind: model.SymbolFunction, Name: m[3], StartLine: lineNo},
				indent: indent,
			})
			continue
		}
		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			closeTo(indent, lineNo-1)
			stack = append(stack, pyOpenSymbol{
				sym:    model.Symbol{File: path, Kind: model.SymbolClass, Name: m[2], StartLine: lineNo},
				indent: indent,
			})
			continue
		}
		closeTo(indent, lineNo-1)
	}
	closeTo(0, len(lines))

	return out, nil
}

func indentWidth(line string) int {
	n := 0
	for _, c := range line {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 8
		default:
			return n
		}
	}
	return n
}
