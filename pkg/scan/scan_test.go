// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan_DetectsGoProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module example.com/app\n")
	writeFile(t, filepath.Join(root, "main.go"), "package main\nfunc main() {}\n")
	writeFile(t, filepath.Join(root, "vendor", "skip.go"), "package vendor\n")

	desc, err := Scan(root)
	if err != nil {
		t.Fatal(err)
	}
	if desc.ProjectType != "go" {
		t.Errorf("ProjectType = %q, want go", desc.ProjectType)
	}
	if len(desc.EntryPoints) != 1 || desc.EntryPoints[0] != "main.go" {
		t.Errorf("EntryPoints = %v", desc.EntryPoints)
	}
	for _, f := range desc.SourceFiles {
		if filepath.Dir(f) == "vendor" {
			t.Errorf("vendor file not excluded: %s", f)
		}
	}
}

func TestValidateLocalPath_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := ValidateLocalPath(root, "../../etc/passwd"); err == nil {
		t.Fatal("expected path_escape error")
	} else if !IsPathEscape(err) {
		t.Errorf("expected IsPathEscape(err) true, got err=%v", err)
	}
}

func TestValidateLocalPath_AllowsInside(t *testing.T) {
	root := t.TempDir()
	if _, err := ValidateLocalPath(root, "src/app.py"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKeywords(t *testing.T) {
	kws := Keywords(`KeyError: 'user_id' not found in request at /api/users`)
	if len(kws) == 0 {
		t.Fatal("expected keywords")
	}
	found := map[string]bool{}
	for _, k := range kws {
		found[k] = true
	}
	if !found["user_id"] {
		t.Errorf("expected quoted literal user_id, got %v", kws)
	}
}

func TestCategory(t *testing.T) {
	if got := Category("connection to database failed: timeout"); got != "database" {
		t.Errorf("Category = %q, want database", got)
	}
	if got := Category("something totally unrelated happened"); got != "other" {
		t.Errorf("Category = %q, want other", got)
	}
}

func TestCandidates_ScoresPathAndContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "users.py"), "def get_user_id(): pass\n")
	writeFile(t, filepath.Join(root, "unrelated.py"), "def noop(): pass\n")

	cands := Candidates(root, []string{"users.py", "unrelated.py"}, []string{"user_id"})
	if len(cands) != 1 || cands[0].Path != "users.py" {
		t.Errorf("Candidates = %+v", cands)
	}
}
