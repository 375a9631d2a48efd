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

// Package progress renders the investigation pipeline's step-by-step
// progress to the terminal, falling back to plain log lines when the
// output writer is not a TTY.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Steps are the pipeline stages surfaced to the user during an
// investigation. A run reports either "scanning project" or the three
// call-chain steps before it, not both.
var Steps = []string{
	"parsing traceback",
	"extracting symbols",
	"resolving imports",
	"assembling call chain",
	"scanning project",
	"querying model",
	"computing diff",
}

// Reporter drives a terminal progress bar (or plain step lines when not
// attached to a TTY) across the pipeline's fixed step list.
type Reporter struct {
	bar  *progressbar.ProgressBar
	tty  bool
	out  io.Writer
	step int
}

// New creates a Reporter writing to out. quiet suppresses all output.
func New(out io.Writer, quiet bool) *Reporter {
	if quiet {
		return &Reporter{out: io.Discard}
	}

	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	r := &Reporter{out: out, tty: tty}
	if tty {
		r.bar = progressbar.NewOptions(len(Steps),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("investigating"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

// Step advances to the next named step, rendering either a bar tick or a
// plain log line.
func (r *Reporter) Step(name string) {
	r.step++
	if r.bar != nil {
		_ = r.bar.Add(1)
		r.bar.Describe(name)
		return
	}
	fmt.Fprintf(r.out, "[%d/%d] %s\n", r.step, len(Steps), name)
}

// Done finalizes the bar, if any.
func (r *Reporter) Done() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}
