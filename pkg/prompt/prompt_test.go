// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
	"testing"

	"github.com/kraklabs/autodebug/pkg/callchain"
	"github.com/kraklabs/autodebug/pkg/model"
)

func TestBuild_IncludesAllSections(t *testing.T) {
	desc := &model.ProjectDescriptor{ProjectType: "go", EntryPoints: []string{"main.go"}}
	result := callchain.Result{
		Chain: []model.CallChainEntry{{Frame: model.Frame{File: "main.go", Line: 10, Symbol: "main"}}},
	}
	out := Build("panic: boom", desc, result, nil, DefaultBudgets())

	for _, section := range []string{"ERROR LOG", "PROJECT DESCRIPTOR", "CALL CHAIN", "UPSTREAM CONTEXT", "INSTRUCTIONS"} {
		if !strings.Contains(out, section) {
			t.Errorf("missing section %q", section)
		}
	}
}

func TestTruncate(t *testing.T) {
	out := truncate(strings.Repeat("a\n", 1000), 10)
	if len(out) <= 10 || !strings.Contains(out, "truncated") {
		t.Errorf("truncate output = %q", out)
	}
}

func TestNormalize_ExtractsJSONWithCommentary(t *testing.T) {
	raw := "Sure, here is the fix:\n```json\n{\"filepath\": \"/abs/app/main.py\", \"full_code_block\": \"x = 1\", \"explanation\": \"fixed it\"}\n```\nLet me know if you need more."
	fix, err := Normalize(raw, "/abs")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if fix.Filepath != "app/main.py" {
		t.Errorf("Filepath = %q", fix.Filepath)
	}
	if fix.AdditionalFixes == nil {
		t.Error("expected AdditionalFixes to be coerced to empty slice, got nil")
	}
}

func TestNormalize_NoJSONObject(t *testing.T) {
	if _, err := Normalize("no json here", ""); err == nil {
		t.Fatal("expected error for missing JSON object")
	}
}

func TestNormalize_UnbalancedJSON(t *testing.T) {
	if _, err := Normalize(`{"filepath": "a.py"`, ""); err == nil {
		t.Fatal("expected error for unbalanced JSON")
	}
}

func TestNormalize_BracesInsideStringIgnored(t *testing.T) {
	raw := `{"filepath": "a.py", "full_code_block": "d = {1: 2}", "explanation": "ok"}`
	fix, err := Normalize(raw, "")
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if fix.FullCodeBlock != "d = {1: 2}" {
		t.Errorf("FullCodeBlock = %q", fix.FullCodeBlock)
	}
}
