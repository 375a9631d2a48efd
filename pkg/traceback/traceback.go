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

// Package traceback detects the source language of a raw error log and
// extracts its stack frames, normalized to oldest-caller-first order.
//
// Parsing never fails outright: an unrecognized log yields (unknown, nil)
// rather than an error, since the caller falls back to the project scanner
// in that case.
package traceback

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kraklabs/autodebug/pkg/model"
)

var (
	pyFrameRe = regexp.MustCompile(`^\s*File "([^"]+)", line (\d+), in (\S+)`)
	pyErrRe   = regexp.MustCompile(`^([A-Za-z_][\w.]*(?:Error|Exception|Warning)):\s*(.*)$`)

	javaFrameRe = regexp.MustCompile(`^\s*at\s+([\w$.]+)\.(\w+)\(([^():]+):(\d+)\)`)

	jsFrameRe = regexp.MustCompile(`^\s*at\s+(?:(async\s+)?([^(]+?)\s+\()?([^():]+):(\d+):(\d+)\)?`)

	goFrameRe = regexp.MustCompile(`^\t([^\s:]+\.go):(\d+)(?:\s+\+0x[0-9a-f]+)?`)
	goSymRe   = regexp.MustCompile(`^([\w./]+(?:\.\w+)*)\(`)

	rustPanicRe = regexp.MustCompile(`panicked at '?.*?'?,\s*([^\s:]+\.rs):(\d+):(\d+)`)
	rustFrameRe = regexp.MustCompile(`^\s*\d+:\s+0x[0-9a-f]+\s+-\s+(.+)$`)
	rustAtRe    = regexp.MustCompile(`^\s*at\s+([^\s:]+\.rs):(\d+)(?::(\d+))?`)
)

// Detect identifies the log's language and extracts its frames.
//
// If hint is non-empty and that language's probe matches at least once,
// the hint wins outright; otherwise the first family with a match, tried
// in priority order python, java, javascript/typescript, go, rust, wins.
func Detect(logText string, hint model.Language) (model.Language, []model.Frame) {
	if hint != "" && hint != model.LangUnknown {
		if frames := parseFor(hint, logText); len(frames) > 0 {
			return hint, frames
		}
	}

	order := []model.Language{model.LangPython, model.LangJava, model.LangJavaScript, model.LangGo, model.LangRust}
	for _, lang := range order {
		if frames := parseFor(lang, logText); len(frames) > 0 {
			return lang, frames
		}
	}
	return model.LangUnknown, nil
}

func parseFor(lang model.Language, text string) []model.Frame {
	switch lang {
	case model.LangPython:
		return parsePython(text)
	case model.LangJava:
		return parseJava(text)
	case model.LangJavaScript, model.LangTypeScript:
		return parseJS(text)
	case model.LangGo:
		return parseGo(text)
	case model.LangRust:
		return parseRust(text)
	default:
		return nil
	}
}

// ErrorMessage extracts the final "LastType: message" line of a Python
// traceback, which is not itself a Frame.
func ErrorMessage(logText string) string {
	lines := strings.Split(logText, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if m := pyErrRe.FindStringSubmatch(lines[i]); m != nil {
			return m[1] + ": " + m[2]
		}
	}
	return ""
}

func parsePython(text string) []model.Frame {
	lines := strings.Split(text, "\n")
	var frames []model.Frame
	for _, line := range lines {
		m := pyFrameRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		frames = append(frames, model.Frame{
			File:   m[1],
			Line:   lineNo,
			Symbol: m[3],
			Raw:    strings.TrimSpace(line),
		})
	}
	// Python tracebacks print outermost call first already.
	return frames
}

func parseJava(text string) []model.Frame {
	lines := strings.Split(text, "\n")
	var frames []model.Frame
	for _, line := range lines {
		m := javaFrameRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[4])
		frames = append(frames, model.Frame{
			File:   m[3],
			Line:   lineNo,
			Symbol: m[1] + "." + m[2],
			Raw:    strings.TrimSpace(line),
		})
	}
	return reverse(frames)
}

func parseJS(text string) []model.Frame {
	lines := strings.Split(text, "\n")
	var frames []model.Frame
	for _, line := range lines {
		m := jsFrameRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[4])
		col, _ := strconv.Atoi(m[5])
		symbol := strings.TrimSpace(m[2])
		external := strings.Contains(m[3], "node:internal") || strings.Contains(m[3], "node_modules")
		frames = append(frames, model.Frame{
			File:     m[3],
			Line:     lineNo,
			Column:   col,
			Symbol:   symbol,
			Raw:      strings.TrimSpace(line),
			External: external,
		})
	}
	return reverse(frames)
}

func parseGo(text string) []model.Frame {
	lines := strings.Split(text, "\n")
	var frames []model.Frame
	var pendingSymbol string
	for _, line := range lines {
		if m := goFrameRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			frames = append(frames, model.Frame{
				File:   m[1],
				Line:   lineNo,
				Symbol: pendingSymbol,
				Raw:    strings.TrimSpace(line),
			})
			pendingSymbol = ""
			continue
		}
		if m := goSymRe.FindStringSubmatch(line); m != nil {
			pendingSymbol = m[1]
		}
	}
	return reverse(frames)
}

func parseRust(text string) []model.Frame {
	lines := strings.Split(text, "\n")
	var frames []model.Frame
	for _, line := range lines {
		if m := rustPanicRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			frames = append(frames, model.Frame{File: m[1], Line: lineNo, Raw: strings.TrimSpace(line)})
			continue
		}
		if m := rustAtRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			frames = append(frames, model.Frame{File: m[1], Line: lineNo, Raw: strings.TrimSpace(line)})
		}
	}
	return reverse(frames)
}

func reverse(frames []model.Frame) []model.Frame {
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}
