// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("codebrief.llm")

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	TopP             *float32 `json:"topP,omitempty"`
	TopK             *int     `json:"topK,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	StopSequences    []string `json:"stopSequences,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// GeminiClient calls the Generative Language REST API (generateContent).
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewGeminiClient(cfg Config) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	baseURL := defaultGeminiBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	slog.Info("Initializing Gemini client", "model", model)
	return &GeminiClient{
		httpClient: &http.Client{Timeout: cfg.timeout()},
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// Generate implements the LLMClient interface
func (g *GeminiClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return g.Chat(ctx, []Message{{Role: "user", Content: prompt}}, params)
}

// Chat implements the LLMClient interface
func (g *GeminiClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "GeminiClient.Chat")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	systemPrompt, turns := splitSystem(messages)
	payload := geminiRequest{
		Contents: make([]geminiContent, 0, len(turns)),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			TopK:            params.TopK,
			MaxOutputTokens: params.MaxTokens,
			StopSequences:   params.Stop,
		},
	}
	if params.JSONOutput {
		payload.GenerationConfig.ResponseMimeType = "application/json"
	}
	if systemPrompt != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	for _, m := range turns {
		role := "user"
		if strings.EqualFold(m.Role, "assistant") {
			role = "model"
		}
		payload.Contents = append(payload.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request to Gemini: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request to Gemini: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("Generating text via Gemini", "model", g.model)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		// url.Error embeds the request URL, which carries the key.
		return "", fmt.Errorf("Gemini API call failed: %w", redactKey(err, g.apiKey))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body from Gemini: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("Gemini returned status %d: %s", resp.StatusCode, snippet(respBody))
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse Gemini response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("Gemini API error: %s - %s", parsed.Error.Status, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("Gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("Gemini returned an empty candidate (finish reason %s)", parsed.Candidates[0].FinishReason)
	}
	return text.String(), nil
}

type redactedError struct {
	msg   string
	inner error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.inner }

func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	return &redactedError{
		msg:   strings.ReplaceAll(err.Error(), url.QueryEscape(key), "REDACTED"),
		inner: err,
	}
}
