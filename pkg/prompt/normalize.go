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

package prompt

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kraklabs/autodebug/pkg/model"
)

// CorrectiveMessage is appended to the end of the original prompt text when
// the first response fails to parse, asking the model to try again.
const CorrectiveMessage = "Your previous response was not valid JSON. Return JSON only, with no commentary or markdown fences."

// Normalize extracts and coerces a FixProposal from raw model output.
// It tolerates leading/trailing commentary by locating the first
// balanced {...} block before unmarshaling.
func Normalize(raw string, projectRoot string) (*model.FixProposal, error) {
	block, err := firstBalancedObject(raw)
	if err != nil {
		return nil, err
	}

	var proposal model.FixProposal
	if err := json.Unmarshal([]byte(block), &proposal); err != nil {
		return nil, fmt.Errorf("decode fix proposal: %w", err)
	}

	coerce(&proposal, projectRoot)
	return &proposal, nil
}

func coerce(p *model.FixProposal, projectRoot string) {
	p.Filepath = toProjectRelative(p.Filepath, projectRoot)
	if p.RootCauseFile != "" {
		p.RootCauseFile = toProjectRelative(p.RootCauseFile, projectRoot)
	}
	if p.AdditionalFixes == nil {
		p.AdditionalFixes = []model.FixProposal{}
	}
	for i := range p.AdditionalFixes {
		p.AdditionalFixes[i].Filepath = toProjectRelative(p.AdditionalFixes[i].Filepath, projectRoot)
		if p.AdditionalFixes[i].AdditionalFixes == nil {
			p.AdditionalFixes[i].AdditionalFixes = []model.FixProposal{}
		}
	}
}

func toProjectRelative(path, projectRoot string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) && projectRoot != "" {
		if rel, err := filepath.Rel(projectRoot, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(strings.TrimPrefix(path, "./"))
}

// firstBalancedObject scans raw for the first top-level balanced {...}
// block, ignoring braces inside string literals.
func firstBalancedObject(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in model output")
}
