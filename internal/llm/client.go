// Package llm talks to a chat-completion endpoint. It carries the two
// prompts the document service needs: raw OCR text to structured JSON, and
// a natural-language question to SQL.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotConfigured = errors.New("language model endpoint is not configured")
	ErrNoChoices     = errors.New("no choices in completion response")
)

// Config points at a full chat-completions URL, for example an Azure OpenAI
// deployment URL including api-version.
type Config struct {
	Endpoint  string
	APIKey    string
	KeyHeader string
}

// Completion is a single system-prompt request.
type Completion struct {
	System      string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient uses httpClient as given; a nil client means http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.KeyHeader) == "" {
		cfg.KeyHeader = "api-key"
	}
	return &Client{cfg: cfg, http: httpClient, log: logger}
}

func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.Endpoint) != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts one request and returns the first choice's content as-is.
// There is no retry.
func (c *Client) Complete(ctx context.Context, op string, req Completion) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	rid := uuid.New().String()
	start := time.Now()

	body, err := json.Marshal(chatRequest{
		Messages:    []chatMessage{{Role: "system", Content: req.System}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		if strings.EqualFold(c.cfg.KeyHeader, "Authorization") {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		} else {
			httpReq.Header.Set(c.cfg.KeyHeader, c.cfg.APIKey)
		}
	}

	c.log.Info().Str("req_id", rid).Str("op", op).Int("prompt_len", len(req.System)).Msg("llm.http.request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Error().Str("req_id", rid).Err(err).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.http.send_error")
		return "", fmt.Errorf("send completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	c.log.Info().Str("req_id", rid).Int("status", resp.StatusCode).Int("bytes", len(raw)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.http.response")

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("completion endpoint returned status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		c.log.Error().Str("req_id", rid).Err(err).Int("raw_bytes", len(raw)).Msg("llm.http.decode_error")
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		c.log.Error().Str("req_id", rid).Str("raw", truncate(string(raw), 512)).Msg("llm.http.no_choices")
		return "", ErrNoChoices
	}
	return decoded.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
