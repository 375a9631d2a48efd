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

package imports

import (
	"sort"
	"sync"

	"github.com/kraklabs/autodebug/pkg/model"
)

const defaultDepth = 2

// LanguageDetector returns the language of a project-relative file path,
// so the graph can pick the right import grammar when it lazily resolves
// a file it has not visited yet.
type LanguageDetector func(path string) model.Language

// Graph is a lazily-resolved dependency graph: edges are only computed
// for a file the first time it is visited by upstream/downstream, and the
// result is cached for the rest of the graph's lifetime.
type Graph struct {
	root     string
	detect   LanguageDetector
	mu       sync.Mutex
	resolved map[string][]model.Import // file -> its resolved imports
}

// NewGraph builds an (initially empty) lazy dependency graph rooted at
// root. detect maps a project-relative path to its Language.
func NewGraph(root string, detect LanguageDetector) *Graph {
	return &Graph{root: root, detect: detect, resolved: map[string][]model.Import{}}
}

// importsOf returns file's resolved imports, resolving and caching them
// on first access.
func (g *Graph) importsOf(file string) []model.Import {
	g.mu.Lock()
	if cached, ok := g.resolved[file]; ok {
		g.mu.Unlock()
		return cached
	}
	g.mu.Unlock()

	lang := g.detect(file)
	resolved, err := ResolveFile(g.root, file, lang)
	if err != nil {
		resolved = nil
	}

	g.mu.Lock()
	g.resolved[file] = resolved
	g.mu.Unlock()
	return resolved
}

// Upstream returns the files file imports (directly and transitively, up
// to depth), breadth-first, ordered by BFS distance then path. depth <= 0
// defaults to 2.
func (g *Graph) Upstream(file string, depth int) []string {
	if depth <= 0 {
		depth = defaultDepth
	}
	return g.bfs(file, depth, func(f string) []string {
		var next []string
		for _, imp := range g.importsOf(f) {
			if imp.Resolved != "" {
				next = append(next, imp.Resolved)
			}
		}
		return next
	})
}

// Downstream returns the files that import file, to the given depth. This
// requires the caller to have already resolved the candidate file set
// (typically a ProjectDescriptor's SourceFiles) via Preload, since reverse
// edges aren't knowable without scanning every other file once.
func (g *Graph) Downstream(file string, depth int) []string {
	if depth <= 0 {
		depth = defaultDepth
	}
	reverse := g.reverseIndex()
	return g.bfs(file, depth, func(f string) []string {
		return reverse[f]
	})
}

// Preload resolves every file's imports up front, needed before calling
// Downstream (reverse edges otherwise can't be known).
func (g *Graph) Preload(files []string) {
	for _, f := range files {
		g.importsOf(f)
	}
}

func (g *Graph) reverseIndex() map[string][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	rev := map[string][]string{}
	for file, imps := range g.resolved {
		for _, imp := range imps {
			if imp.Resolved != "" {
				rev[imp.Resolved] = append(rev[imp.Resolved], file)
			}
		}
	}
	return rev
}

func (g *Graph) bfs(start string, depth int, neighbors func(string) []string) []string {
	type item struct {
		path string
		dist int
	}
	visited := map[string]bool{start: true}
	queue := []item{{start, 0}}
	var order []item

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.dist >= depth {
			continue
		}
		for _, n := range neighbors(cur.path) {
			if visited[n] {
				continue
			}
			visited[n] = true
			order = append(order, item{n, cur.dist + 1})
			queue = append(queue, item{n, cur.dist + 1})
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].dist != order[j].dist {
			return order[i].dist < order[j].dist
		}
		return order[i].path < order[j].path
	})

	out := make([]string, len(order))
	for i, it := range order {
		out[i] = it.path
	}
	return out
}
