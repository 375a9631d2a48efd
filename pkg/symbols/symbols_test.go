// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package symbols

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/autodebug/pkg/model"
)

func TestExtract_Go(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	src := "package main\n\nfunc processData(items []int) int {\n\treturn items[0] / 0\n}\n\nfunc main() {\n\tprocessData(nil)\n}\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	sym, diag := Extract(path, 4, model.LangGo)
	if diag != "" {
		t.Fatalf("unexpected diagnostic: %s", diag)
	}
	if sym.Name != "processData" {
		t.Errorf("Name = %q, want processData", sym.Name)
	}
	if sym.Kind != model.SymbolFunction {
		t.Errorf("Kind = %q", sym.Kind)
	}
}

func TestExtract_Python(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	lines := make([]string, 0, 48)
	lines = append(lines, "def helper():", "    pass", "", "def process_data(items):")
	for i := 0; i < 8; i++ {
		lines = append(lines, "    x = 1")
	}
	lines = append(lines, "    return items[0] / 0", "")
	src := ""
	for _, l := range lines {
		src += l + "\n"
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	targetLine := 4 + 8 + 1 // the "return items[0] / 0" line
	sym, _ := Extract(path, targetLine, model.LangPython)
	if sym == nil || sym.Name != "process_data" {
		t.Fatalf("got %+v", sym)
	}
}

func TestExtract_FallbackSyntheticSymbol(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weird.py")
	if err := os.WriteFile(path, []byte("x=1\ny=2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sym, _ := Extract(path, 1, model.LangPython)
	if sym == nil || sym.Kind != model.SymbolOther {
		t.Fatalf("expected fallback symbol, got %+v", sym)
	}
}
