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

// Package httpapi exposes the investigation pipeline over HTTP:
// POST /analyze, GET /health, GET /info, and GET /metrics.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kraklabs/autodebug/internal/config"
	autoerrors "github.com/kraklabs/autodebug/internal/errors"
	"github.com/kraklabs/autodebug/internal/investigate"
	"github.com/kraklabs/autodebug/internal/metrics"
	"github.com/kraklabs/autodebug/internal/output"
	"github.com/kraklabs/autodebug/pkg/model"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Pipeline    *investigate.Pipeline
	Config      config.Config
	Version     string
	ProjectRoot string
	Logger      *slog.Logger

	originRegexOnce compiledOriginRegex
}

type compiledOriginRegex struct {
	done bool
	re   *regexp.Regexp
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.withMiddleware(s.handleAnalyze))
	mux.HandleFunc("/health", s.withMiddleware(s.handleHealth))
	mux.HandleFunc("/info", s.withMiddleware(s.handleInfo))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if s.Config.APIKey != "" && r.Header.Get("X-ROMA-API-KEY") != s.Config.APIKey {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range s.Config.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if re := s.originRegex(); !allowed && re != nil && re.MatchString(origin) {
		allowed = true
	}
	if allowed {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-ROMA-API-KEY")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	}
}

// originRegex lazily compiles ROMA_ALLOWED_ORIGIN_REGEX once per server.
func (s *Server) originRegex() *regexp.Regexp {
	if s.originRegexOnce.done {
		return s.originRegexOnce.re
	}
	s.originRegexOnce.done = true
	if s.Config.AllowedOriginRegex != "" {
		if re, err := regexp.Compile(s.Config.AllowedOriginRegex); err == nil {
			s.originRegexOnce.re = re
		} else {
			s.Logger.Warn("httpapi.bad_origin_regex", "error", err)
		}
	}
	return s.originRegexOnce.re
}

type analyzeRequest struct {
	Log         string `json:"log"`
	Context     string `json:"context,omitempty"`
	ProjectRoot string `json:"project_root,omitempty"`
	Language    string `json:"language,omitempty"`
}

type analyzeResponse struct {
	Explanation          string              `json:"explanation"`
	Code                 string              `json:"code"`
	Filepath             *string             `json:"filepath"`
	Diff                 *string             `json:"diff"`
	RootCauseFile        *string             `json:"root_cause_file"`
	RootCauseExplanation *string             `json:"root_cause_explanation"`
	AdditionalFixes      []model.FixProposal `json:"additional_fixes"`
	FilesRead            []string            `json:"files_read"`
	FilesReadSources     map[string]string   `json:"files_read_sources"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(s.Config.MaxLogBytes)+4096)).Decode(&req); err != nil {
		_ = output.JSONErrorTo(w, autoerrors.NewLogEmpty("invalid request body", err.Error(), "send valid JSON"))
		return
	}
	if len(req.Log) > s.Config.MaxLogBytes {
		cause := fmt.Sprintf("log is %d bytes, cap is %d", len(req.Log), s.Config.MaxLogBytes)
		_ = output.JSONErrorTo(w, autoerrors.NewSizeCapExceeded("error log exceeds the configured size cap", cause, "shorten the log or raise ROMA_MAX_LOG_BYTES"))
		return
	}

	projectRoot := s.ProjectRoot
	if s.Config.AllowProjectRoot && req.ProjectRoot != "" {
		projectRoot = req.ProjectRoot
	}

	start := time.Now()
	result, err := s.Pipeline.Run(r.Context(), investigate.Request{
		Log:          req.Log,
		Context:      req.Context,
		ProjectRoot:  projectRoot,
		LanguageHint: model.Language(req.Language),
	}, nil)
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(outcomeFor(err)).Inc()
		writeUserError(w, err)
		return
	}
	metrics.AnalysesTotal.WithLabelValues("success").Inc()

	writeAnalyzeResponse(w, result)
}

func writeAnalyzeResponse(w http.ResponseWriter, result *investigate.Result) {
	proposal := result.PatchSet.Proposal
	resp := analyzeResponse{
		Explanation:      proposal.Explanation,
		Code:             proposal.FullCodeBlock,
		AdditionalFixes:  proposal.AdditionalFixes,
		FilesReadSources: map[string]string{},
	}
	if proposal.Filepath != "" {
		resp.Filepath = &proposal.Filepath
	}
	if diff, ok := result.PatchSet.Diffs[proposal.Filepath]; ok && diff != "" {
		resp.Diff = &diff
	}
	if proposal.RootCauseFile != "" {
		resp.RootCauseFile = &proposal.RootCauseFile
		resp.RootCauseExplanation = &proposal.RootCauseExplanation
	}
	for _, fr := range result.PatchSet.FilesRead {
		resp.FilesRead = append(resp.FilesRead, fr.Path)
		resp.FilesReadSources[fr.Path] = fr.Source
	}

	_ = output.JSONTo(w, resp)
}

func writeUserError(w http.ResponseWriter, err error) {
	var ue *autoerrors.UserError
	if as, ok := err.(*autoerrors.UserError); ok {
		ue = as
	} else {
		ue = autoerrors.NewWriteFailed("investigation failed", err.Error(), "retry the request", err)
	}
	w.Header().Set("Content-Type", "application/json")
	switch ue.ExitCode {
	case autoerrors.ExitUsage:
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	_ = json.NewEncoder(w).Encode(ue.ToJSON())
}

func outcomeFor(err error) string {
	if ue, ok := err.(*autoerrors.UserError); ok {
		return string(ue.Kind)
	}
	return "error"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = output.JSONTo(w, map[string]any{
		"status":             "ok",
		"version":            s.Version,
		"api_key_configured": len(s.Config.GeminiAPIKeys) > 0,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	_ = output.JSONTo(w, map[string]any{
		"version":             s.Version,
		"supported_languages": []string{"python", "javascript", "typescript", "go", "rust", "java"},
		"capabilities": map[string]bool{
			"multi_language":     true,
			"deep_debugging":     true,
			"root_cause_analysis": true,
			"multiple_fixes":     true,
		},
	})
}

