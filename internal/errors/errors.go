// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the autodebug CLI and HTTP API.
//
// It defines UserError, a type that carries structured error information including what
// went wrong, why it happened, and how to fix it, plus a Kind tag drawn from the error
// taxonomy of the investigation pipeline (log_empty, language_unknown, parse_failed,
// path_escape, size_cap_exceeded, upstream_rate_limited, upstream_exhausted,
// model_output_invalid, write_failed).
//
// # Usage Example
//
//	err := errors.NewUpstreamExhausted(
//	    "no model produced a response",
//	    "all configured (key, model) pairs failed",
//	    "add another GEMINI_API_KEY or widen ROMA_MODELS",
//	    underlyingErr,
//	)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes, per the CLI's external contract: 0 success, 1 analysis error, 2 usage error.
const (
	ExitSuccess  = 0
	ExitAnalysis = 1
	ExitUsage    = 2
)

// Kind tags a UserError with one of the taxonomy entries of the error handling design.
type Kind string

const (
	KindLogEmpty            Kind = "log_empty"
	KindLanguageUnknown     Kind = "language_unknown"
	KindParseFailed         Kind = "parse_failed"
	KindPathEscape          Kind = "path_escape"
	KindSizeCapExceeded     Kind = "size_cap_exceeded"
	KindUpstreamRateLimited Kind = "upstream_rate_limited"
	KindUpstreamExhausted   Kind = "upstream_exhausted"
	KindModelOutputInvalid  Kind = "model_output_invalid"
	KindWriteFailed         Kind = "write_failed"
)

// exitCodeForKind maps each taxonomy kind to the CLI's two-tier exit code scheme.
// log_empty and usage-shaped mistakes are ExitUsage; everything that happened while
// actually running an analysis is ExitAnalysis.
func exitCodeForKind(k Kind) int {
	switch k {
	case KindLogEmpty:
		return ExitUsage
	default:
		return ExitAnalysis
	}
}

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing error description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
//
// UserError also carries a Kind (the taxonomy tag callers can switch on), an exit code
// for CLI exit behavior, and optionally wraps an underlying error.
type UserError struct {
	Kind     Kind
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newKindError(k Kind, msg, cause, fix string, err error) *UserError {
	return &UserError{
		Kind:     k,
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: exitCodeForKind(k),
		Err:      err,
	}
}

// NewLogEmpty reports a zero-length log after trimming. Caller should re-prompt.
func NewLogEmpty(msg, cause, fix string) *UserError {
	return newKindError(KindLogEmpty, msg, cause, fix, nil)
}

// NewLanguageUnknown reports that no traceback pattern matched and no hint was given.
// Not fatal: callers fall through to the project-scan path.
func NewLanguageUnknown(msg, cause, fix string) *UserError {
	return newKindError(KindLanguageUnknown, msg, cause, fix, nil)
}

// NewParseFailed reports a tree-sitter/AST error on a single file. Recorded in
// diagnostics; the symbol fallback is used and the pipeline continues.
func NewParseFailed(msg, cause, fix string, err error) *UserError {
	return newKindError(KindParseFailed, msg, cause, fix, err)
}

// NewPathEscape reports a proposed patch path that leaves the project root.
func NewPathEscape(msg, cause, fix string) *UserError {
	return newKindError(KindPathEscape, msg, cause, fix, nil)
}

// NewSizeCapExceeded reports a log or patch body above its configured cap.
func NewSizeCapExceeded(msg, cause, fix string) *UserError {
	return newKindError(KindSizeCapExceeded, msg, cause, fix, nil)
}

// NewUpstreamRateLimited reports an LLM quota/429 response.
func NewUpstreamRateLimited(msg, cause, fix string, err error) *UserError {
	return newKindError(KindUpstreamRateLimited, msg, cause, fix, err)
}

// NewUpstreamExhausted reports that every (key, model) pair failed. Fatal for the request.
func NewUpstreamExhausted(msg, cause, fix string, err error) *UserError {
	return newKindError(KindUpstreamExhausted, msg, cause, fix, err)
}

// NewModelOutputInvalid reports a non-JSON or shape-mismatched LLM response after the
// one permitted auto-retry. Fatal for the request.
func NewModelOutputInvalid(msg, cause, fix string, err error) *UserError {
	return newKindError(KindModelOutputInvalid, msg, cause, fix, err)
}

// NewWriteFailed reports an I/O error during patch application.
func NewWriteFailed(msg, cause, fix string, err error) *UserError {
	return newKindError(KindWriteFailed, msg, cause, fix, err)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display. Color output respects
// NO_COLOR and can be explicitly disabled with the noColor parameter.
//
// Note: this method temporarily modifies the global color.NoColor state and restores it
// after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON is the machine-readable rendering of a UserError.
type ErrorJSON struct {
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Kind:     string(e.Kind),
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code. Never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitAnalysis)
}
