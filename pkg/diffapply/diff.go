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

// Package diffapply computes unified diffs between a file's current
// content and the model's proposed full_code_block, and safely applies
// the result to disk.
package diffapply

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

// UnifiedDiff computes a unified diff (contextLines lines of context)
// between before and after, labeling the hunks with path.
func UnifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	ops := diffsToOps(diffs)
	hunks := groupIntoHunks(ops, contextLines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks {
		writeHunk(&sb, h)
	}
	return sb.String()
}

type opKind int

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

type op struct {
	kind opKind
	line string
}

func diffsToOps(diffs []diffmatchpatch.Diff) []op {
	var ops []op
	for _, d := range diffs {
		lines := strings.SplitAfter(d.Text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		var kind opKind
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = opEqual
		case diffmatchpatch.DiffDelete:
			kind = opDelete
		case diffmatchpatch.DiffInsert:
			kind = opInsert
		}
		for _, l := range lines {
			ops = append(ops, op{kind: kind, line: l})
		}
	}
	return ops
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []string
}

func groupIntoHunks(ops []op, context int) []hunk {
	var hunks []hunk
	oldLine, newLine := 1, 1

	i := 0
	for i < len(ops) {
		if ops[i].kind == opEqual {
			oldLine++
			newLine++
			i++
			continue
		}

		// Found a change; back up to include leading context.
		start := i
		lead := 0
		for start > 0 && lead < context && ops[start-1].kind == opEqual {
			start--
			lead++
		}
		hOldStart := oldLine - lead
		hNewStart := newLine - lead

		// Walk the change run(s), merging runs separated by at most
		// 2*context equal lines, and stop after trailing context.
		end := i
		for end < len(ops) {
			if ops[end].kind != opEqual {
				end++
				continue
			}
			trail := 0
			j := end
			for j < len(ops) && ops[j].kind == opEqual && trail < 2*context {
				j++
				trail++
			}
			if j < len(ops) && ops[j].kind != opEqual {
				end = j
				continue
			}
			trailKeep := trail
			if trailKeep > context {
				trailKeep = context
			}
			end += trailKeep
			break
		}
		if end > len(ops) {
			end = len(ops)
		}

		var lines []string
		oldCount, newCount := 0, 0
		for k := start; k < end; k++ {
			switch ops[k].kind {
			case opEqual:
				lines = append(lines, " "+ops[k].line)
				oldCount++
				newCount++
			case opDelete:
				lines = append(lines, "-"+ops[k].line)
				oldCount++
			case opInsert:
				lines = append(lines, "+"+ops[k].line)
				newCount++
			}
		}

		hunks = append(hunks, hunk{
			oldStart: hOldStart, oldCount: oldCount,
			newStart: hNewStart, newCount: newCount,
			lines: lines,
		})

		// Advance oldLine/newLine to just past this hunk.
		for k := i; k < end; k++ {
			switch ops[k].kind {
			case opEqual:
				oldLine++
				newLine++
			case opDelete:
				oldLine++
			case opInsert:
				newLine++
			}
		}
		i = end
	}

	return hunks
}

func writeHunk(sb *strings.Builder, h hunk) {
	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)
	for _, l := range h.lines {
		sb.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			sb.WriteString("\n")
		}
	}
}
