// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package callchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/autodebug/pkg/model"
)

func TestAssemble_SingleFrame(t *testing.T) {
	root := t.TempDir()
	src := "package main\n\nfunc processData(items []int) int {\n\treturn items[0] / 0\n}\n"
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(root, func(string) model.Language { return model.LangGo })
	res := a.Assemble([]model.Frame{{File: "main.go", Line: 4, Symbol: "processData"}}, model.LangGo)

	if len(res.Chain) != 1 {
		t.Fatalf("chain = %+v", res.Chain)
	}
	if res.Chain[0].Symbol == nil || res.Chain[0].Symbol.Name != "processData" {
		t.Errorf("symbol = %+v", res.Chain[0].Symbol)
	}
}

func TestTrimMiddle_PreservesEnds(t *testing.T) {
	frames := make([]model.Frame, 20)
	for i := range frames {
		frames[i] = model.Frame{File: "f.go", Line: i}
	}
	trimmed := trimMiddle(frames, MaxChainLength)
	if len(trimmed) != MaxChainLength {
		t.Fatalf("len = %d, want %d", len(trimmed), MaxChainLength)
	}
	if trimmed[0].Line != 0 {
		t.Errorf("first = %d, want 0 (outermost)", trimmed[0].Line)
	}
	if trimmed[len(trimmed)-1].Line != 19 {
		t.Errorf("last = %d, want 19 (crash site)", trimmed[len(trimmed)-1].Line)
	}
}

func TestFilterExternal(t *testing.T) {
	frames := []model.Frame{{File: "a.go"}, {File: "node:internal", External: true}, {File: "b.go"}}
	out := filterExternal(frames)
	if len(out) != 2 {
		t.Fatalf("got %d frames, want 2", len(out))
	}
}
