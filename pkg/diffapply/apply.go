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

package diffapply

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/autodebug/pkg/model"
	"github.com/kraklabs/autodebug/pkg/scan"
)

// MaxPatchBytes caps full_code_block, the content a single patch may
// write.
const MaxPatchBytes = 200 * 1024

// BuildPatchSet reads each patch's current file content, computes a
// unified diff, and returns a PatchSet ready for Apply. It does not write
// anything.
func BuildPatchSet(root string, proposal model.FixProposal) (*model.PatchSet, error) {
	ps := &model.PatchSet{
		Proposal: proposal,
		Diffs:    map[string]string{},
		Errors:   map[string]string{},
	}

	all := append([]model.FixProposal{proposal}, proposal.AdditionalFixes...)
	for _, fix := range all {
		before := ""
		absPath, err := scan.ValidateLocalPath(root, fix.Filepath)
		if err != nil {
			ps.Errors[fix.Filepath] = err.Error()
			continue
		}
		if data, readErr := os.ReadFile(absPath); readErr == nil {
			before = string(data)
		}
		ps.Diffs[fix.Filepath] = UnifiedDiff(fix.Filepath, before, fix.FullCodeBlock)
	}
	return ps, nil
}

// ApplyResult reports what happened to each fix in a batch: which files
// were written, and which were rejected before ever being written
// (path escapes, oversized patches) without aborting the rest of the
// batch.
type ApplyResult struct {
	Applied []string
	Errors  map[string]string // filepath -> rejection reason
}

// Apply writes every fix in the proposal (primary first, then
// additional_fixes in order) to disk: containment-checked, size-capped,
// backed up, and written atomically. A fix that fails containment or the
// size cap is recorded in Errors and skipped; the rest of the batch still
// runs. Only a genuine I/O failure during backup, directory creation,
// write, or rename stops the batch early — previously written files are
// NOT rolled back, and the error is returned alongside the partial
// ApplyResult.
func Apply(root string, proposal model.FixProposal) (*ApplyResult, error) {
	result := &ApplyResult{Errors: map[string]string{}}

	all := append([]model.FixProposal{proposal}, proposal.AdditionalFixes...)
	for _, fix := range all {
		writeErr := applyOne(root, fix)
		if writeErr == nil {
			result.Applied = append(result.Applied, fix.Filepath)
			continue
		}
		if scan.IsPathEscape(writeErr) || IsSizeCapExceeded(writeErr) {
			result.Errors[fix.Filepath] = writeErr.Error()
			continue
		}
		return result, writeErr
	}
	return result, nil
}

func applyOne(root string, fix model.FixProposal) error {
	if len(fix.FullCodeBlock) > MaxPatchBytes {
		return sizeCapError(fix.Filepath)
	}

	absPath, err := scan.ValidateLocalPath(root, fix.Filepath)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(absPath); statErr == nil {
		if bakErr := copyFile(absPath, absPath+".bak"); bakErr != nil {
			return fmt.Errorf("backup %s: %w", fix.Filepath, bakErr)
		}
	}

	if mkErr := os.MkdirAll(filepath.Dir(absPath), 0o755); mkErr != nil {
		return fmt.Errorf("create directory for %s: %w", fix.Filepath, mkErr)
	}

	tmpPath := absPath + ".tmp"
	if writeErr := os.WriteFile(tmpPath, []byte(fix.FullCodeBlock), 0o644); writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", fix.Filepath, writeErr)
	}
	if renameErr := os.Rename(tmpPath, absPath); renameErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize write to %s: %w", fix.Filepath, renameErr)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

type sizeCapErr struct{ path string }

func (e *sizeCapErr) Error() string {
	return fmt.Sprintf("%s exceeds max patch size of %d bytes", e.path, MaxPatchBytes)
}

func sizeCapError(path string) error { return &sizeCapErr{path: path} }

// IsSizeCapExceeded reports whether err was produced by applyOne's size
// check, so callers can map it to the size_cap_exceeded taxonomy entry.
func IsSizeCapExceeded(err error) bool {
	_, ok := err.(*sizeCapErr)
	return ok
}
