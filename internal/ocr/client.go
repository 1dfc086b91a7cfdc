// Package ocr extracts text from uploaded documents through the Azure
// Document Intelligence REST API.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrEmptyDocument = errors.New("uploaded document is empty")
	ErrNotConfigured = errors.New("document intelligence endpoint is not configured")
	ErrAnalyzeFailed = errors.New("document analysis failed")
)

type Config struct {
	Endpoint     string
	APIKey       string
	Model        string
	APIVersion   string
	PollInterval time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Model == "" {
		cfg.Model = "prebuilt-invoice"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-11-30"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &Client{cfg: cfg, http: httpClient, log: logger}
}

func (c *Client) Configured() bool {
	return c.cfg.Endpoint != ""
}

type analyzeStatus struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		Content string `json:"content"`
	} `json:"analyzeResult"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ExtractText submits the bytes to the configured pre-built model and waits
// for the analysis to finish, returning the recognized text content.
func (c *Client) ExtractText(ctx context.Context, r io.Reader) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}

	rid := uuid.New().String()
	start := time.Now()
	c.log.Info().Str("req_id", rid).Str("model", c.cfg.Model).Int("bytes", len(data)).Msg("ocr.analyze.start")

	operation, err := c.submit(ctx, data)
	if err != nil {
		c.log.Error().Str("req_id", rid).Err(err).Msg("ocr.analyze.submit_failed")
		return "", err
	}

	content, polls, err := c.await(ctx, operation)
	if err != nil {
		c.log.Error().Str("req_id", rid).Err(err).Int("polls", polls).
			Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("ocr.analyze.failed")
		return "", err
	}
	c.log.Info().Str("req_id", rid).Int("polls", polls).Int("content_len", len(content)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("ocr.analyze.ok")
	return content, nil
}

func (c *Client) submit(ctx context.Context, data []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIVersion))

	body, err := json.Marshal(map[string]string{"base64Source": base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return "", fmt.Errorf("encode analyze request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send analyze request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("analyze returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	operation := resp.Header.Get("Operation-Location")
	if operation == "" {
		return "", fmt.Errorf("%w: response has no Operation-Location", ErrAnalyzeFailed)
	}
	return operation, nil
}

func (c *Client) await(ctx context.Context, operation string) (string, int, error) {
	polls := 0
	for {
		polls++
		status, err := c.poll(ctx, operation)
		if err != nil {
			return "", polls, err
		}
		switch strings.ToLower(status.Status) {
		case "succeeded":
			return status.AnalyzeResult.Content, polls, nil
		case "failed", "canceled":
			if status.Error != nil {
				return "", polls, fmt.Errorf("%w: %s: %s", ErrAnalyzeFailed, status.Error.Code, status.Error.Message)
			}
			return "", polls, fmt.Errorf("%w: status %s", ErrAnalyzeFailed, status.Status)
		}

		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", polls, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) poll(ctx context.Context, operation string) (analyzeStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operation, nil)
	if err != nil {
		return analyzeStatus{}, fmt.Errorf("build poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return analyzeStatus{}, fmt.Errorf("poll analyze result: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return analyzeStatus{}, fmt.Errorf("poll returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var status analyzeStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return analyzeStatus{}, fmt.Errorf("decode analyze result: %w", err)
	}
	return status, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.APIKey)
	}
}
