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
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/autodebug/pkg/model"
)

// nodeKind maps a grammar's node type name to the Symbol kind it
// represents, with the field name holding the declaration's identifier.
type nodeKind struct {
	kind     model.SymbolKind
	nameNode string
}

var nodeKindsByLanguage = map[model.Language]map[string]nodeKind{
	model.LangGo: {
		"function_declaration": {model.SymbolFunction, "name"},
		"method_declaration":    {model.SymbolMethod, "name"},
		"type_declaration":      {model.SymbolStruct, ""},
	},
	model.LangJavaScript: {
		"function_declaration":    {model.SymbolFunction, "name"},
		"method_definition":       {model.SymbolMethod, "name"},
		"class_declaration":       {model.SymbolClass, "name"},
		"arrow_function":          {model.SymbolFunction, ""},
		"function":                {model.SymbolFunction, "name"},
	},
	model.LangTypeScript: {
		"function_declaration": {model.SymbolFunction, "name"},
		"method_definition":    {model.SymbolMethod, "name"},
		"class_declaration":    {model.SymbolClass, "name"},
		"interface_declaration": {model.SymbolInterface, "name"},
		"enum_declaration":      {model.SymbolEnum, "name"},
	},
	model.LangRust: {
		"function_item": {model.SymbolFunction, "name"},
		"impl_item":     {model.SymbolImpl, "type"},
		"struct_item":   {model.SymbolStruct, "name"},
		"enum_item":     {model.SymbolEnum, "name"},
		"trait_item":    {model.SymbolInterface, "name"},
	},
	model.LangJava: {
		"method_declaration":      {model.SymbolMethod, "name"},
		"constructor_declaration": {model.SymbolConstructor, "name"},
		"class_declaration":       {model.SymbolClass, "name"},
		"interface_declaration":   {model.SymbolInterface, "name"},
		"enum_declaration":        {model.SymbolEnum, "name"},
	},
}

// treeSitterParser walks a tree-sitter parse tree collecting symbols for
// every node type registered in nodeKindsByLanguage. The grammar is
// loaded once per language and cached process-wide.
type treeSitterParser struct {
	lang     model.Language
	once     sync.Once
	grammar  *sitter.Language
	kindsMap map[string]nodeKind
}

func newTreeSitterParser(lang model.Language) *treeSitterParser {
	return &treeSitterParser{lang: lang, kindsMap: nodeKindsByLanguage[lang]}
}

func (p *treeSitterParser) grammarFor() *sitter.Language {
	p.once.Do(func() {
		switch p.lang {
		case model.LangGo:
			p.grammar = golang.GetLanguage()
		case model.LangJavaScript:
			p.grammar = javascript.GetLanguage()
		case model.LangTypeScript:
			p.grammar = typescript.GetLanguage()
		case model.LangRust:
			p.grammar = rust.GetLanguage()
		case model.LangJava:
			p.grammar = java.GetLanguage()
		}
	})
	return p.grammar
}

func (p *treeSitterParser) Parse(path string, source []byte) ([]model.Symbol, error) {
	grammar := p.grammarFor()
	if grammar == nil {
		return nil, fmt.Errorf("no tree-sitter grammar registered for %s", p.lang)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	var syms []model.Symbol
	p.walk(tree.RootNode(), path, source, &syms)
	return syms, nil
}

func (p *treeSitterParser) walk(n *sitter.Node, path string, source []byte, out *[]model.Symbol) {
	if n == nil {
		return
	}
	if info, ok := p.kindsMap[n.Type()]; ok {
		name := "<anonymous>"
		if info.nameNode != "" {
			if nameNode := n.ChildByFieldName(info.nameNode); nameNode != nil {
				name = nameNode.Content(source)
			}
		}
		*out = append(*out, model.Symbol{
			File:      path,
			Kind:      info.kind,
			Name:      name,
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
			Source:    n.Content(source),
		})
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		p.walk(n.Child(i), path, source, out)
	}
}
