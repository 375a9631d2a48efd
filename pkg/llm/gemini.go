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
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

// geminiProvider wraps a single Gemini API key. The key-rotation and
// model-priority logic that sits above this lives in client.go; this type
// only knows how to talk to one (key, model) pair.
type geminiProvider struct {
	client       *genai.Client
	apiKey       string
	defaultModel string
}

func newGeminiProvider(cfg ProviderConfig) (*geminiProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: no API key configured (set GEMINI_API_KEY)")
	}

	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.5-flash"
	}

	return newGeminiProviderForKey(apiKey, model)
}

func newGeminiProviderForKey(apiKey, model string) (*geminiProvider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &geminiProvider{client: client, apiKey: apiKey, defaultModel: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Models(ctx context.Context) ([]string, error) {
	return []string{"gemini-3-flash-preview", "gemini-2.5-flash", "gemini-2.5-flash-lite"}, nil
}

func (p *geminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if mime, ok := req.Options["response_mime_type"].(string); ok && mime != "" {
		genCfg.ResponseMIMEType = mime
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	var usagePrompt, usageOutput, usageTotal int
	if resp.UsageMetadata != nil {
		usagePrompt = int(resp.UsageMetadata.PromptTokenCount)
		usageOutput = int(resp.UsageMetadata.CandidatesTokenCount)
		usageTotal = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &GenerateResponse{
		Text:         text,
		Model:        model,
		PromptTokens: usagePrompt,
		OutputTokens: usageOutput,
		TotalTokens:  usageTotal,
		Duration:     time.Since(start),
		Done:         true,
	}, nil
}

func (p *geminiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var systemPrompt string
	var lastUser string
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemPrompt = m.Content
			continue
		}
		lastUser = m.Content
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(lastUser), genCfg)
	if err != nil {
		return nil, err
	}

	return &ChatResponse{
		Message:  Message{Role: "assistant", Content: resp.Text()},
		Model:    model,
		Duration: time.Since(start),
		Done:     true,
	}, nil
}
