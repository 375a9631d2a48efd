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

// Package investigate wires the traceback parser, symbol extractor,
// import resolver, call-chain assembler, project scanner, prompt
// builder, and LLM client into one ordered pipeline: traceback ->
// extraction -> resolution -> graph -> prompt -> LLM -> diff.
package investigate

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/autodebug/internal/errors"
	"github.com/kraklabs/autodebug/internal/metrics"
	"github.com/kraklabs/autodebug/pkg/callchain"
	"github.com/kraklabs/autodebug/pkg/diffapply"
	"github.com/kraklabs/autodebug/pkg/llm"
	"github.com/kraklabs/autodebug/pkg/model"
	"github.com/kraklabs/autodebug/pkg/prompt"
	"github.com/kraklabs/autodebug/pkg/scan"
	"github.com/kraklabs/autodebug/pkg/traceback"
)

// ProgressFunc receives a human-readable name for the pipeline step about
// to run, so callers can render progress.
type ProgressFunc func(step string)

// Request is one investigation's input.
type Request struct {
	Log         string
	Context     string
	ProjectRoot string
	LanguageHint model.Language
}

// Result is what an investigation produces, ready to render to the CLI
// or HTTP API.
type Result struct {
	PatchSet *model.PatchSet
	Language model.Language
}

// Pipeline runs investigations against one LLM client.
type Pipeline struct {
	Client *llm.Client
}

func detectLanguageFromExt(path string) model.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return model.LangPython
	case ".js", ".jsx", ".mjs", ".cjs":
		return model.LangJavaScript
	case ".ts", ".tsx":
		return model.LangTypeScript
	case ".go":
		return model.LangGo
	case ".rs":
		return model.LangRust
	case ".java":
		return model.LangJava
	default:
		return model.LangUnknown
	}
}

// Run executes one full investigation.
func (p *Pipeline) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	report := progress
	if report == nil {
		report = func(string) {}
	}

	logText := strings.TrimSpace(req.Log)
	if logText == "" {
		return nil, errors.NewLogEmpty("error log is empty", "no input provided",
			"paste a traceback or error message and try again")
	}

	report("parsing traceback")
	lang, frames := traceback.Detect(req.Log, req.LanguageHint)
	if lang == model.LangUnknown && req.LanguageHint != "" {
		lang = req.LanguageHint
	}

	var filesRead []model.FileRead
	var desc *model.ProjectDescriptor
	var chainResult callchain.Result

	if len(frames) == 0 {
		report("scanning project")
		var err error
		desc, err = scan.Scan(req.ProjectRoot)
		if err != nil {
			return nil, errors.NewParseFailed("project scan failed", req.ProjectRoot,
				"verify the project root exists and is readable", err)
		}
		for _, ep := range desc.EntryPoints {
			filesRead = append(filesRead, model.FileRead{Path: ep, Source: "scan"})
		}
		errMsg := traceback.ErrorMessage(req.Log)
		if errMsg == "" {
			errMsg = req.Log
		}
		keywords := scan.Keywords(errMsg)
		for _, c := range scan.Candidates(req.ProjectRoot, desc.SourceFiles, keywords) {
			filesRead = append(filesRead, model.FileRead{Path: c.Path, Source: "scan"})
		}
	} else {
		report("extracting symbols")
		report("resolving imports")
		report("assembling call chain")

		detect := func(path string) model.Language {
			if d := detectLanguageFromExt(path); d != model.LangUnknown {
				return d
			}
			return lang
		}
		assembler := callchain.NewAssembler(req.ProjectRoot, detect)
		chainResult = assembler.Assemble(frames, lang)

		for _, entry := range chainResult.Chain {
			filesRead = append(filesRead, model.FileRead{Path: entry.Frame.File, Source: "traceback"})
			for _, imp := range entry.Imports {
				if imp.Resolved != "" {
					filesRead = append(filesRead, model.FileRead{Path: imp.Resolved, Source: "import"})
				}
			}
		}
		for _, u := range chainResult.Upstream {
			filesRead = append(filesRead, model.FileRead{Path: u, Source: "import"})
		}
	}

	upstreamContent := map[string]string{}
	for _, u := range chainResult.Upstream {
		if data, err := os.ReadFile(filepath.Join(req.ProjectRoot, u)); err == nil {
			upstreamContent[u] = string(data)
		}
	}

	fullPrompt := prompt.Build(req.Log, desc, chainResult, upstreamContent, prompt.DefaultBudgets())
	if req.Context != "" {
		fullPrompt = "ADDITIONAL CONTEXT FROM CALLER\n" + req.Context + "\n\n" + fullPrompt
	}

	report("querying model")
	proposal, err := p.complete(ctx, fullPrompt, req.ProjectRoot)
	if err != nil {
		return nil, err
	}

	report("computing diff")
	patchSet, err := diffapply.BuildPatchSet(req.ProjectRoot, *proposal)
	if err != nil {
		return nil, errors.NewWriteFailed("failed to compute diff", req.ProjectRoot,
			"check file permissions under the project root", err)
	}
	patchSet.FilesRead = filesRead

	return &Result{PatchSet: patchSet, Language: lang}, nil
}

func (p *Pipeline) complete(ctx context.Context, fullPrompt, projectRoot string) (*model.FixProposal, error) {
	raw, err := p.Client.Complete(ctx, fullPrompt)
	recordLLMOutcomes(p.Client.LastOutcomes())
	if err != nil {
		if llm.IsUpstreamExhausted(err) {
			return nil, errors.NewUpstreamExhausted("all configured models and API keys failed",
				err.Error(), "check API key validity and quota, or configure additional keys", err)
		}
		return nil, errors.NewUpstreamRateLimited("the model provider rejected the request",
			err.Error(), "wait and retry, or configure additional API keys", err)
	}

	proposal, err := prompt.Normalize(raw, projectRoot)
	if err != nil {
		retryPrompt := fullPrompt + "\n\n" + prompt.CorrectiveMessage
		raw2, retryErr := p.Client.Complete(ctx, retryPrompt)
		if retryErr != nil {
			return nil, errors.NewModelOutputInvalid("model did not return valid JSON",
				err.Error(), "retry the investigation", err)
		}
		proposal, err = prompt.Normalize(raw2, projectRoot)
		if err != nil {
			return nil, errors.NewModelOutputInvalid("model did not return valid JSON after retry",
				err.Error(), "retry the investigation", err)
		}
	}
	return proposal, nil
}

// recordLLMOutcomes reports each model/key attempt from the most recent
// Complete call to Prometheus, tallying quarantines separately.
func recordLLMOutcomes(outcomes []llm.KeyOutcome) {
	for _, o := range outcomes {
		result := "error"
		if o.Err == nil {
			result = "success"
		}
		metrics.LLMCallsTotal.WithLabelValues(o.Model, result).Inc()
		if o.Quarantined {
			metrics.KeysQuarantinedTotal.Inc()
		}
	}
}
