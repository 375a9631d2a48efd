// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"github.com/kraklabs/autodebug/internal/investigate"
	"github.com/kraklabs/autodebug/internal/metrics"
	"github.com/kraklabs/autodebug/pkg/diffapply"
)

func applyPatchSet(projectRoot string, result *investigate.Result) (*diffapply.ApplyResult, error) {
	applyResult, err := diffapply.Apply(projectRoot, result.PatchSet.Proposal)
	metrics.PatchesAppliedTotal.Add(float64(len(applyResult.Applied)))
	return applyResult, err
}
