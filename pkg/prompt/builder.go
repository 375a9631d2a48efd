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

// Package prompt assembles the investigation prompt from labeled sections
// and normalizes the model's JSON response into a FixProposal.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kraklabs/autodebug/pkg/callchain"
	"github.com/kraklabs/autodebug/pkg/model"
)

// Budgets caps each labeled section's character count before truncation.
// Defaults follow the investigation pipeline's default configuration.
type Budgets struct {
	ErrorLog     int
	Descriptor   int
	CallChain    int
	Upstream     int
}

// DefaultBudgets returns the investigation pipeline's default section
// character budgets.
func DefaultBudgets() Budgets {
	return Budgets{ErrorLog: 4000, Descriptor: 2000, CallChain: 20000, Upstream: 10000}
}

const instructions = `Analyze the error above using the call chain and project context provided.

Return ONLY a single JSON object (no commentary, no markdown fences) of this shape:
{
  "filepath": "relative/path/to/file.ext",
  "full_code_block": "the complete corrected file content",
  "explanation": "what was wrong and what this change does",
  "root_cause_file": "optional relative path, if the true root cause lives elsewhere",
  "root_cause_explanation": "optional explanation of the root cause",
  "additional_fixes": []
}`

// Build assembles the full prompt from the error log, project descriptor,
// assembled call chain, and upstream context files (with their content).
func Build(errorLog string, desc *model.ProjectDescriptor, result callchain.Result, upstreamContent map[string]string, budgets Budgets) string {
	var sb strings.Builder

	sb.WriteString("ERROR LOG\n")
	sb.WriteString(truncate(errorLog, budgets.ErrorLog))
	sb.WriteString("\n\n")

	sb.WriteString("PROJECT DESCRIPTOR\n")
	sb.WriteString(truncate(describeProject(desc), budgets.Descriptor))
	sb.WriteString("\n\n")

	sb.WriteString("CALL CHAIN\n")
	sb.WriteString(truncate(describeChain(result.Chain), budgets.CallChain))
	sb.WriteString("\n\n")

	sb.WriteString("UPSTREAM CONTEXT\n")
	sb.WriteString(truncate(describeUpstream(result.Upstream, upstreamContent), budgets.Upstream))
	sb.WriteString("\n\n")

	sb.WriteString("INSTRUCTIONS\n")
	sb.WriteString(instructions)

	return sb.String()
}

func describeProject(desc *model.ProjectDescriptor) string {
	if desc == nil {
		return "(no project descriptor available)"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Project type: %s\n", desc.ProjectType))
	if len(desc.Frameworks) > 0 {
		sb.WriteString(fmt.Sprintf("Frameworks: %s\n", strings.Join(desc.Frameworks, ", ")))
	}
	if len(desc.EntryPoints) > 0 {
		sb.WriteString(fmt.Sprintf("Entry points: %s\n", strings.Join(desc.EntryPoints, ", ")))
	}
	return sb.String()
}

func describeChain(chain []model.CallChainEntry) string {
	var sb strings.Builder
	for i, entry := range chain {
		sb.WriteString(fmt.Sprintf("#%d %s:%d", i+1, entry.Frame.File, entry.Frame.Line))
		if entry.Frame.Symbol != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", entry.Frame.Symbol))
		}
		sb.WriteString("\n")
		if entry.Symbol != nil {
			sb.WriteString(fmt.Sprintf("  %s %s [lines %d-%d]:\n", entry.Symbol.Kind, entry.Symbol.Name, entry.Symbol.StartLine, entry.Symbol.EndLine))
			sb.WriteString(indent(entry.Symbol.Source, "  "))
			sb.WriteString("\n")
		}
		for _, imp := range entry.Imports {
			if imp.Resolved != "" {
				sb.WriteString(fmt.Sprintf("  import %s -> %s (%s)\n", imp.Statement, imp.Resolved, imp.Confidence))
			}
		}
	}
	return sb.String()
}

func describeUpstream(files []string, content map[string]string) string {
	if len(files) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for _, f := range files {
		sb.WriteString(fmt.Sprintf("--- %s ---\n", f))
		if c, ok := content[f]; ok {
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// truncate clips text to max characters, appending a marker with the
// number of lines cut when it does.
func truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := text[:max]
	lines := strings.Count(text, "\n") - strings.Count(cut, "\n")
	return cut + fmt.Sprintf("\n… [truncated, %d more lines]", lines)
}
