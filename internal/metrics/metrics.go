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

// Package metrics exposes Prometheus counters and histograms for the
// investigation pipeline, served on an optional /metrics endpoint.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AnalysesTotal counts completed analyses by outcome kind (success or
	// an error taxonomy kind).
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autodebug_analyses_total",
		Help: "Total number of investigations run, labeled by outcome.",
	}, []string{"outcome"})

	// AnalysisDuration records end-to-end investigation latency.
	AnalysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "autodebug_analysis_duration_seconds",
		Help:    "Investigation wall-clock duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// LLMCallsTotal counts model calls by model name and result.
	LLMCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autodebug_llm_calls_total",
		Help: "Total LLM calls, labeled by model and result.",
	}, []string{"model", "result"})

	// KeysQuarantinedTotal counts (key, model) pairs quarantined.
	KeysQuarantinedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autodebug_keys_quarantined_total",
		Help: "Total number of (api key, model) pairs quarantined for quota or auth errors.",
	})

	// PatchesAppliedTotal counts files written by the safe applier.
	PatchesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autodebug_patches_applied_total",
		Help: "Total number of files written by the safe patch applier.",
	})
)

func init() {
	prometheus.MustRegister(AnalysesTotal, AnalysisDuration, LLMCallsTotal, KeysQuarantinedTotal, PatchesAppliedTotal)
}

// Serve starts a blocking HTTP server exposing /metrics on addr. Call it
// in its own goroutine; it returns when ctx is done or ListenAndServe
// fails.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		return err
	}
}
