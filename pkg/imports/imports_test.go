// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package imports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/autodebug/pkg/model"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtract_Python(t *testing.T) {
	stmts := Extract("import os\nfrom app.db import get_user\nfrom . import utils\n", model.LangPython)
	if len(stmts) != 3 {
		t.Fatalf("got %v", stmts)
	}
}

func TestResolvePython_Certain(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "app", "db.py"), "def get_user(): pass\n")
	write(t, filepath.Join(root, "main.py"), "from app.db import get_user\n")

	imp := Resolve(root, "main.py", "app.db", model.LangPython)
	if imp.Confidence != model.ConfidenceCertain {
		t.Fatalf("confidence = %v, resolved = %v", imp.Confidence, imp.Resolved)
	}
	if imp.Resolved != "app/db.py" {
		t.Errorf("resolved = %q", imp.Resolved)
	}
}

func TestResolveJS_RelativeWithExtensionProbe(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "src", "users.js"), "module.exports = {}\n")
	write(t, filepath.Join(root, "src", "server.js"), "require('./users')\n")

	imp := Resolve(root, "src/server.js", "./users", model.LangJavaScript)
	if imp.Confidence != model.ConfidenceCertain || imp.Resolved != "src/users.js" {
		t.Errorf("got %+v", imp)
	}
}

func TestResolveJS_BareSpecifierUnresolved(t *testing.T) {
	root := t.TempDir()
	imp := Resolve(root, "src/server.js", "express", model.LangJavaScript)
	if imp.Confidence != model.ConfidenceUnresolved {
		t.Errorf("expected unresolved, got %+v", imp)
	}
}

func TestResolveGo_StdlibUnresolved(t *testing.T) {
	root := t.TempDir()
	imp := Resolve(root, "main.go", "fmt", model.LangGo)
	if imp.Confidence != model.ConfidenceUnresolved {
		t.Errorf("expected unresolved for stdlib, got %+v", imp)
	}
}

func TestGraph_UpstreamBFS(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "app", "db.py"), "CONN = None\n")
	write(t, filepath.Join(root, "app", "service.py"), "from app.db import CONN\n")
	write(t, filepath.Join(root, "main.py"), "from app.service import CONN\n")

	g := NewGraph(root, func(string) model.Language { return model.LangPython })
	up := g.Upstream("main.py", 2)
	if len(up) != 2 {
		t.Fatalf("upstream = %v", up)
	}
	if up[0] != "app/service.py" {
		t.Errorf("expected nearest neighbor first, got %v", up)
	}
}
