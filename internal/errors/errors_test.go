// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err:  &UserError{Message: "cannot write file", Err: fmt.Errorf("permission denied")},
			want: "cannot write file: permission denied",
		},
		{
			name: "without underlying error",
			err:  &UserError{Message: "invalid language"},
			want: "invalid language",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserError_Unwrap(t *testing.T) {
	underlying := fmt.Errorf("boom")
	wrapped := &UserError{Message: "m", Err: underlying}
	if wrapped.Unwrap() != underlying {
		t.Error("Unwrap() should return the wrapped error")
	}
	bare := &UserError{Message: "m"}
	if bare.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no error is wrapped")
	}
}

func TestExitCodes(t *testing.T) {
	if ExitSuccess != 0 || ExitAnalysis != 1 || ExitUsage != 2 {
		t.Fatalf("exit codes changed: success=%d analysis=%d usage=%d", ExitSuccess, ExitAnalysis, ExitUsage)
	}
}

func TestConstructors(t *testing.T) {
	underlying := fmt.Errorf("root cause")

	tests := []struct {
		name         string
		err          *UserError
		wantKind     Kind
		wantExitCode int
		wantHasErr   bool
	}{
		{"log_empty", NewLogEmpty("m", "c", "f"), KindLogEmpty, ExitUsage, false},
		{"language_unknown", NewLanguageUnknown("m", "c", "f"), KindLanguageUnknown, ExitAnalysis, false},
		{"parse_failed", NewParseFailed("m", "c", "f", underlying), KindParseFailed, ExitAnalysis, true},
		{"path_escape", NewPathEscape("m", "c", "f"), KindPathEscape, ExitAnalysis, false},
		{"size_cap_exceeded", NewSizeCapExceeded("m", "c", "f"), KindSizeCapExceeded, ExitAnalysis, false},
		{"upstream_rate_limited", NewUpstreamRateLimited("m", "c", "f", underlying), KindUpstreamRateLimited, ExitAnalysis, true},
		{"upstream_exhausted", NewUpstreamExhausted("m", "c", "f", underlying), KindUpstreamExhausted, ExitAnalysis, true},
		{"model_output_invalid", NewModelOutputInvalid("m", "c", "f", underlying), KindModelOutputInvalid, ExitAnalysis, true},
		{"write_failed", NewWriteFailed("m", "c", "f", underlying), KindWriteFailed, ExitAnalysis, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.wantKind)
			}
			if tt.err.Message != "m" || tt.err.Cause != "c" || tt.err.Fix != "f" {
				t.Errorf("fields not set correctly: %+v", tt.err)
			}
			if tt.err.ExitCode != tt.wantExitCode {
				t.Errorf("ExitCode = %d, want %d", tt.err.ExitCode, tt.wantExitCode)
			}
			if (tt.err.Err != nil) != tt.wantHasErr {
				t.Errorf("has underlying error = %v, want %v", tt.err.Err != nil, tt.wantHasErr)
			}
		})
	}
}

func TestErrorChain(t *testing.T) {
	sentinel := fmt.Errorf("sentinel error")
	wrapped := fmt.Errorf("wrapped: %w", sentinel)
	userErr := NewWriteFailed("write failed", "cause", "fix", wrapped)

	if !errors.Is(userErr, sentinel) {
		t.Error("errors.Is should find sentinel error in chain")
	}

	var target *UserError
	if !errors.As(userErr, &target) {
		t.Fatal("errors.As should extract UserError")
	}
	if target.Kind != KindWriteFailed {
		t.Errorf("Kind = %q, want %q", target.Kind, KindWriteFailed)
	}
}

func TestUserError_Format(t *testing.T) {
	err := &UserError{
		Kind:    KindPathEscape,
		Message: "patch rejected",
		Cause:   "target path leaves project root",
		Fix:     "use a project-relative path",
	}
	got := err.Format(true)
	for _, want := range []string{"Error: patch rejected", "Cause: target path leaves project root", "Fix:   use a project-relative path"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() missing %q, got %s", want, got)
		}
	}
}

func TestUserError_Format_NoColor(t *testing.T) {
	old := os.Getenv("NO_COLOR")
	defer func() {
		if old != "" {
			os.Setenv("NO_COLOR", old)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()

	os.Setenv("NO_COLOR", "1")
	err := &UserError{Message: "m", Cause: "c", Fix: "f"}
	out := err.Format(false)
	if strings.Contains(out, "\x1b[") {
		t.Error("Format() output contains ANSI codes despite NO_COLOR being set")
	}
}

func TestUserError_ToJSON(t *testing.T) {
	err := NewUpstreamExhausted("no model succeeded", "all keys quarantined", "add a key", nil)
	j := err.ToJSON()
	if j.Kind != "upstream_exhausted" || j.Error != "no model succeeded" || j.ExitCode != ExitAnalysis {
		t.Errorf("ToJSON() = %+v", j)
	}
}

func TestFatalError_Nil(t *testing.T) {
	FatalError(nil, false) // must not panic or exit
}
