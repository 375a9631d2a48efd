// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultModelPriority is the model fallback order used when no override is configured.
var DefaultModelPriority = []string{"gemini-3-flash-preview", "gemini-2.5-flash", "gemini-2.5-flash-lite"}

const (
	callTimeout     = 60 * time.Second
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxDelay   = 8 * time.Second
	retryMaxAttempt = 3
)

// quarantine tracks (key index, model) pairs that have failed with a permanent-looking
// error. Quarantine is monotonic: once set, a pair is never retried within the process.
type quarantine struct {
	mu  sync.Mutex
	set map[string]bool
}

func newQuarantine() *quarantine {
	return &quarantine{set: make(map[string]bool)}
}

func quarantineKey(keyIndex int, model string) string {
	return strconv.Itoa(keyIndex) + "\x00" + model
}

func (q *quarantine) isQuarantined(keyIndex int, model string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.set[quarantineKey(keyIndex, model)]
}

func (q *quarantine) add(keyIndex int, model string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.set[quarantineKey(keyIndex, model)] = true
}

// KeyOutcome records what happened to one key during a Complete call, used by callers
// (and tests) that want to assert on rotation/quarantine behavior (scenario 5, §8).
type KeyOutcome struct {
	KeyIndex    int
	Model       string
	Quarantined bool
	Err         error
}

// Client orchestrates Gemini calls across a prioritized model list and a pool of API
// keys, rotating keys round-robin and quarantining any (key, model) pair that fails
// with a quota or auth error, per the LLM Client component's contract.
type Client struct {
	models     []string
	providers  []Provider // one per key, index-aligned with keys
	keyIndices []int      // identity index of each provider's key, stable across rotation
	quarantine *quarantine

	mu   sync.Mutex
	next int // round-robin cursor

	outcomes []KeyOutcome // most recent Complete call's per-attempt record
}

// NewClient builds a Client from an ordered list of API keys and an ordered model
// priority list. Each key is wrapped in a real Gemini provider; tests that need other
// providers build the Client with NewClientWithProviders instead.
func NewClient(apiKeys []string, models []string) (*Client, error) {
	if len(models) == 0 {
		models = DefaultModelPriority
	}
	providers := make([]Provider, 0, len(apiKeys))
	indices := make([]int, 0, len(apiKeys))
	for i, key := range apiKeys {
		p, err := newGeminiProviderForKey(key, models[0])
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
		indices = append(indices, i)
	}
	return &Client{
		models:     models,
		providers:  providers,
		keyIndices: indices,
		quarantine: newQuarantine(),
	}, nil
}

// NewClientWithProviders builds a Client directly from pre-constructed providers
// (index-aligned with keyIndices), bypassing Gemini client construction. Used by tests
// to inject MockProvider instances that simulate 429s on a specific key.
func NewClientWithProviders(providers []Provider, models []string) *Client {
	indices := make([]int, len(providers))
	for i := range providers {
		indices[i] = i
	}
	if len(models) == 0 {
		models = DefaultModelPriority
	}
	return &Client{models: models, providers: providers, keyIndices: indices, quarantine: newQuarantine()}
}

// LastOutcomes returns the per-attempt record of the most recent Complete call.
func (c *Client) LastOutcomes() []KeyOutcome {
	return c.outcomes
}

// Complete renders prompt through the model-priority list and key pool, returning the
// first successful completion's text. It implements the rotation/quarantine/retry
// contract of the LLM Client component.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	c.outcomes = nil

	if len(c.providers) == 0 {
		return "", errUpstreamExhausted("no API keys configured")
	}

	for _, model := range c.models {
		text, ok, err := c.tryModel(ctx, model, prompt)
		if ok {
			return text, nil
		}
		if err != nil && isFatalContextError(err) {
			return "", err
		}
		// All keys quarantined (or failed) for this model; fall through to the next.
	}

	return "", errUpstreamExhausted("all (key, model) pairs failed")
}

// tryModel attempts every non-quarantined key for one model, round-robin, with retry
// and backoff per key. Returns ok=true with the text on the first success.
func (c *Client) tryModel(ctx context.Context, model string, prompt string) (string, bool, error) {
	n := len(c.providers)
	start := c.nextIndex()

	var lastErr error
	tried := 0
	for i := 0; i < n; i++ {
		slot := (start + i) % n
		keyIdx := c.keyIndices[slot]

		if c.quarantine.isQuarantined(keyIdx, model) {
			continue
		}
		tried++

		text, err := c.callWithRetry(ctx, c.providers[slot], model, prompt)
		if err == nil {
			c.outcomes = append(c.outcomes, KeyOutcome{KeyIndex: keyIdx, Model: model})
			return text, true, nil
		}
		lastErr = err
		c.outcomes = append(c.outcomes, KeyOutcome{KeyIndex: keyIdx, Model: model, Err: err})

		if isQuotaOrAuthError(err) {
			c.quarantine.add(keyIdx, model)
			if len(c.outcomes) > 0 {
				c.outcomes[len(c.outcomes)-1].Quarantined = true
			}
		}
	}

	if tried == 0 {
		return "", false, nil // every key already quarantined for this model
	}
	return "", false, lastErr
}

// callWithRetry retries transient failures (5xx, timeouts) with exponential backoff
// (base 500ms, factor 2, cap 8s, max 3 attempts) before giving up on this key.
func (c *Client) callWithRetry(ctx context.Context, p Provider, model, prompt string) (string, error) {
	delay := retryBaseDelay
	var lastErr error

	for attempt := 0; attempt < retryMaxAttempt; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		resp, err := p.Generate(callCtx, GenerateRequest{
			Prompt:      prompt,
			Model:       model,
			Temperature: 0.2,
			MaxTokens:   8192,
			Options:     map[string]any{"response_mime_type": "application/json"},
		})
		cancel()

		if err == nil {
			return resp.Text, nil
		}
		lastErr = err

		if isQuotaOrAuthError(err) || !isTransientError(err) {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return "", lastErr
}

func (c *Client) nextIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.next
	c.next = (c.next + 1) % max(1, len(c.providers))
	return i
}

func isQuotaOrAuthError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToUpper(err.Error())
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "QUOTA", "401", "403", "PERMISSION_DENIED", "UNAUTHENTICATED"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToUpper(err.Error())
	for _, marker := range []string{"500", "502", "503", "504", "UNAVAILABLE", "DEADLINE_EXCEEDED", "DEADLINE EXCEEDED", "INTERNAL"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func isFatalContextError(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

// errUpstreamExhausted is a small local helper so this package does not import
// internal/errors (no pkg/ package imports internal/); callers at the boundary
// translate this into errors.NewUpstreamExhausted.
type exhaustedError struct{ msg string }

func (e *exhaustedError) Error() string { return e.msg }

func errUpstreamExhausted(msg string) error { return &exhaustedError{msg: msg} }

// IsUpstreamExhausted reports whether err was returned because every (key, model)
// pair failed, letting callers map it to the upstream_exhausted taxonomy entry.
func IsUpstreamExhausted(err error) bool {
	_, ok := err.(*exhaustedError)
	return ok
}
