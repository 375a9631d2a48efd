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

// Package callchain assembles normalized Frames, their enclosing Symbol,
// and resolved imports into an ordered CallChainEntry list, plus a
// deduplicated upstream-context file set — the step that runs between
// import resolution and prompt construction.
package callchain

import (
	"path/filepath"

	"github.com/kraklabs/autodebug/pkg/imports"
	"github.com/kraklabs/autodebug/pkg/model"
	"github.com/kraklabs/autodebug/pkg/symbols"
)

// MaxChainLength caps the number of CallChainEntry in the assembled
// chain; excess frames are dropped from the middle, preserving the
// outermost call and the crash site.
const MaxChainLength = 10

// MaxUpstreamFiles caps the deduplicated upstream-context file list.
const MaxUpstreamFiles = 5

// Assembler builds call chains for one project root.
type Assembler struct {
	root   string
	graph  *imports.Graph
	detect imports.LanguageDetector
}

// NewAssembler builds an Assembler rooted at root, using detect to infer
// each file's language for both symbol extraction and import resolution.
func NewAssembler(root string, detect imports.LanguageDetector) *Assembler {
	return &Assembler{root: root, graph: imports.NewGraph(root, detect), detect: detect}
}

// Result is the call chain plus its upstream context, ready for the
// prompt builder.
type Result struct {
	Chain    []model.CallChainEntry
	Upstream []string
}

// Assemble drops external frames, builds the CallChainEntry list for the
// remaining project-local frames, and computes upstream context from the
// crash frame. lang is used for any file whose language detect cannot tell.
func (a *Assembler) Assemble(frames []model.Frame, lang model.Language) Result {
	local := trimMiddle(filterExternal(frames), MaxChainLength)

	chain := make([]model.CallChainEntry, 0, len(local))
	for _, f := range local {
		entry := model.CallChainEntry{Frame: f}
		fileLang := a.detect(f.File)
		if fileLang == model.LangUnknown {
			fileLang = lang
		}

		abs := filepath.Join(a.root, f.File)
		if sym, _ := symbols.Extract(abs, f.Line, fileLang); sym != nil {
			entry.Symbol = sym
		}
		if imps, err := imports.ResolveFile(a.root, f.File, fileLang); err == nil {
			entry.Imports = imps
		}
		chain = append(chain, entry)
	}

	var upstream []string
	if len(local) > 0 {
		crashFile := local[len(local)-1].File
		inChain := map[string]bool{}
		for _, f := range local {
			inChain[f.File] = true
		}
		for _, u := range a.graph.Upstream(crashFile, 2) {
			if len(upstream) >= MaxUpstreamFiles {
				break
			}
			if inChain[u] {
				continue
			}
			upstream = append(upstream, u)
		}
	}

	return Result{Chain: chain, Upstream: upstream}
}

func filterExternal(frames []model.Frame) []model.Frame {
	out := make([]model.Frame, 0, len(frames))
	for _, f := range frames {
		if !f.External {
			out = append(out, f)
		}
	}
	return out
}

// trimMiddle keeps the outermost and crash-site ends of frames, dropping
// entries from the middle if frames is longer than max.
func trimMiddle(frames []model.Frame, max int) []model.Frame {
	if len(frames) <= max || max < 2 {
		return frames
	}
	headLen := max / 2
	tailLen := max - headLen
	out := make([]model.Frame, 0, max)
	out = append(out, frames[:headLen]...)
	out = append(out, frames[len(frames)-tailLen:]...)
	return out
}
