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

// Command autodebug reads an error log, investigates the project it
// points at, and proposes (and optionally applies) a fix.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/autodebug/internal/config"
	"github.com/kraklabs/autodebug/internal/errors"
	"github.com/kraklabs/autodebug/internal/investigate"
	"github.com/kraklabs/autodebug/internal/metrics"
	"github.com/kraklabs/autodebug/internal/output"
	"github.com/kraklabs/autodebug/internal/progress"
	"github.com/kraklabs/autodebug/internal/ui"
	"github.com/kraklabs/autodebug/pkg/llm"
	"github.com/kraklabs/autodebug/pkg/model"
)

var version = "dev"

func main() {
	var (
		languageFlag = flag.String("language", "", "override language detection (python,javascript,typescript,go,rust,java)")
		noApply      = flag.Bool("no-apply", false, "print the fix, never write it")
		serve        = flag.Bool("serve", false, "start the HTTP server")
		port         = flag.Int("port", 8080, "HTTP server port (with --serve)")
		jsonOut      = flag.Bool("json", false, "machine-readable JSON output")
		noColor      = flag.Bool("no-color", false, "disable colored output")
		showVersion  = flag.Bool("version", false, "print version and exit")
		projectRoot  = flag.String("project-root", ".", "project root to investigate against")
		metricsAddr  = flag.String("metrics-addr", "", "expose Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	ui.InitColors(*noColor)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *showVersion {
		fmt.Println(version)
		os.Exit(errors.ExitSuccess)
	}

	if *metricsAddr != "" {
		go func() {
			if err := metrics.Serve(context.Background(), *metricsAddr); err != nil {
				logger.Warn("metrics.serve_failed", "error", err)
			}
		}()
	}

	if *serve {
		runServe(logger, *projectRoot, *port)
		return
	}

	runAnalyze(logger, *projectRoot, *languageFlag, *noApply, *jsonOut, flag.Arg(0))
}

func runAnalyze(logger *slog.Logger, projectRoot, languageFlag string, noApply, jsonOut bool, path string) {
	logText, err := readLog(path)
	if err != nil {
		errors.FatalError(errors.NewLogEmpty("could not read error log", err.Error(), "check the file path"), jsonOut)
	}

	cfg, err := config.Load(logger, projectRoot)
	if err != nil {
		errors.FatalError(errors.NewWriteFailed("failed to load configuration", projectRoot, "check .autodebug/config.yaml", err), jsonOut)
	}

	client, err := llm.NewClient(cfg.GeminiAPIKeys, cfg.Models)
	if err != nil {
		errors.FatalError(errors.NewUpstreamExhausted("no usable LLM credentials", err.Error(),
			"set GEMINI_API_KEY and retry", err), jsonOut)
	}

	pipeline := &investigate.Pipeline{Client: client}
	reporter := progress.New(os.Stderr, jsonOut)

	ctx := context.Background()
	result, err := pipeline.Run(ctx, investigate.Request{
		Log:          logText,
		ProjectRoot:  projectRoot,
		LanguageHint: model.Language(languageFlag),
	}, reporter.Step)
	reporter.Done()
	if err != nil {
		errors.FatalError(err, jsonOut)
	}

	renderFix(result, jsonOut)

	if noApply {
		return
	}
	if !jsonOut && !confirmApply() {
		os.Exit(errors.ExitSuccess)
	}
	if err := applyFix(projectRoot, result); err != nil {
		errors.FatalError(err, jsonOut)
	}
}

func readLog(path string) (string, error) {
	if path == "" {
		var sb strings.Builder
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				break
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		return sb.String(), scanner.Err()
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func confirmApply() bool {
	fmt.Print("Apply this fix? [Y/n] ")
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "" || line == "y" || line == "yes"
}

// jsonResult is the machine-readable shape printed for --json.
type jsonResult struct {
	Language  string            `json:"language"`
	Proposal  model.FixProposal `json:"proposal"`
	Diffs     map[string]string `json:"diffs"`
	FilesRead []model.FileRead  `json:"files_read"`
}

func renderFix(result *investigate.Result, jsonOut bool) {
	proposal := result.PatchSet.Proposal
	if jsonOut {
		_ = output.JSON(jsonResult{
			Language:  string(result.Language),
			Proposal:  proposal,
			Diffs:     result.PatchSet.Diffs,
			FilesRead: result.PatchSet.FilesRead,
		})
		return
	}
	ui.Header("Investigation Summary")
	fmt.Printf("Language: %s\n", result.Language)
	fmt.Printf("File: %s\n\n", proposal.Filepath)
	fmt.Println(proposal.Explanation)
	if diff, ok := result.PatchSet.Diffs[proposal.Filepath]; ok && diff != "" {
		fmt.Println()
		fmt.Println(diff)
	}
	if proposal.RootCauseFile != "" {
		fmt.Printf("\nRoot cause: %s\n%s\n", proposal.RootCauseFile, proposal.RootCauseExplanation)
	}
}

func applyFix(projectRoot string, result *investigate.Result) error {
	applyResult, err := applyPatchSet(projectRoot, result)
	if err != nil {
		return err
	}
	for path, reason := range applyResult.Errors {
		ui.Warning(fmt.Sprintf("skipped %s: %s", path, reason))
	}
	ui.Success(fmt.Sprintf("applied fix to %d file(s)", len(applyResult.Applied)))
	return nil
}
