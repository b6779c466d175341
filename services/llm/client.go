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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotConfigured is returned by NewClient when the selected backend has no
// credential (or, for ollama, no base URL).
var ErrNotConfigured = errors.New("llm backend not configured")

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
	// JSONOutput asks backends that support it to constrain the reply to a
	// JSON document.
	JSONOutput bool `json:"json_output"`
}

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}

// Backend names an LLM provider.
type Backend string

const (
	BackendGemini    Backend = "gemini"
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
	BackendOllama    Backend = "ollama"
)

// Config selects and configures one backend.
//
// # Fields
//
//   - Backend: Provider name. Defaults to gemini.
//   - APIKey: Provider credential. Not used by ollama.
//   - Model: Model id. Each backend has its own default.
//   - BaseURL: Endpoint override (required for ollama, used by tests).
//   - Timeout: HTTP client timeout. Defaults to 60s.
type Config struct {
	Backend Backend
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

const defaultHTTPTimeout = 60 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultHTTPTimeout
}

// NewClient builds the client for cfg.Backend.
//
// # Outputs
//
//   - LLMClient: Ready client.
//   - error: ErrNotConfigured (wrapped) when the backend lacks its
//     credential; an error for unknown backends.
func NewClient(cfg Config) (LLMClient, error) {
	backend := Backend(strings.ToLower(strings.TrimSpace(string(cfg.Backend))))
	if backend == "" {
		backend = BackendGemini
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	switch backend {
	case BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrNotConfigured)
		}
		return NewGeminiClient(cfg), nil
	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
		}
		return NewOpenAIClient(cfg), nil
	case BackendAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrNotConfigured)
		}
		return NewAnthropicClient(cfg), nil
	case BackendOllama:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: LLM_BASE_URL is not set", ErrNotConfigured)
		}
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

// splitSystem separates system turns from the conversation. Multiple system
// turns are joined with a blank line.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.EqualFold(m.Role, "system") {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// snippet shortens upstream bodies for error messages.
func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
