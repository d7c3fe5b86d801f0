// Package api is the typed HTTP client for the meme generation backend.
// Transport failures map to per-operation sentinel errors; logical
// failures (success=false) surface the server message verbatim.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ShowBamboo/ai-meme-generator/pkg/models"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 120 * time.Second
)

var (
	ErrGenerateFailed     = errors.New("generation request failed")
	ErrHistoryFailed      = errors.New("history request failed")
	ErrDeleteFailed       = errors.New("history delete failed")
	ErrOptimizeFailed     = errors.New("prompt optimization failed")
	ErrCaptionFailed      = errors.New("caption request failed")
	ErrUpscaleFailed      = errors.New("upscale request failed")
	ErrProvidersFailed    = errors.New("provider status request failed")
	ErrTemplatesFailed    = errors.New("template list request failed")
	ErrTemplateSyncFailed = errors.New("template sync failed")
)

type Config struct {
	BaseURL    string
	TimeoutSec int
	Verbose    bool
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	verbose    bool
}

func New(cfg *Config) *Client {
	baseURL := defaultBaseURL
	if cfg != nil && cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	timeout := defaultTimeout
	if cfg != nil && cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	verbose := cfg != nil && cfg.Verbose

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		verbose:    verbose,
	}
}

// BaseURL returns the backend root, used to resolve relative image URLs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns a server-relative image path (e.g. /static/uploads/x.png)
// into an absolute URL against the backend.
func (c *Client) ResolveURL(raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// Generate runs a generation request and resolves the response into the
// canonical multi-variant result. A success=false response surfaces the
// server error verbatim.
func (c *Client) Generate(ctx context.Context, req *models.GenerateRequest) (*models.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &resp, ErrGenerateFailed); err != nil {
		return nil, err
	}

	if !resp.Success {
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return nil, ErrGenerateFailed
	}

	images := resp.Images
	if len(images) == 0 {
		// Legacy single-image response: fold the top-level fields into
		// a one-element variant list.
		if resp.ImageURL == "" {
			return nil, models.ErrNoImages
		}
		images = []models.Variant{{
			ID:        resp.ID,
			ImageURL:  resp.ImageURL,
			CreatedAt: resp.CreatedAt,
			Provider:  resp.Provider,
			IsMock:    resp.IsMock,
		}}
	}

	return models.NewGenerationResult(resp.ID, resp.OptimizedPrompt, resp.CreatedAt, images)
}

func (c *Client) History(ctx context.Context) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &records, ErrHistoryFailed); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+url.PathEscape(id), nil, nil, ErrDeleteFailed)
}

func (c *Client) OptimizePrompt(ctx context.Context, prompt string, style models.Style, styleStrength int, memeMode bool) (string, error) {
	req := &optimizeRequest{Prompt: prompt, Style: style, StyleStrength: styleStrength, MemeMode: memeMode}
	var resp optimizeResponse
	if err := c.do(ctx, http.MethodPost, "/api/optimize-prompt", req, &resp, ErrOptimizeFailed); err != nil {
		return "", err
	}
	return resp.OptimizedPrompt, nil
}

func (c *Client) Caption(ctx context.Context, prompt string, style models.Style, memeMode bool) (string, error) {
	req := &captionRequest{Prompt: prompt, Style: style, MemeMode: memeMode}
	var resp captionResponse
	if err := c.do(ctx, http.MethodPost, "/api/caption", req, &resp, ErrCaptionFailed); err != nil {
		return "", err
	}
	return resp.Caption, nil
}

func (c *Client) CaptionBatch(ctx context.Context, prompt string, style models.Style, memeMode bool, count int) ([]string, error) {
	req := &captionRequest{Prompt: prompt, Style: style, MemeMode: memeMode, Count: count}
	var resp captionBatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/caption/batch", req, &resp, ErrCaptionFailed); err != nil {
		return nil, err
	}
	return resp.Captions, nil
}

func (c *Client) Upscale(ctx context.Context, imageURL string) (string, error) {
	req := &upscaleRequest{ImageURL: imageURL}
	var resp upscaleResponse
	if err := c.do(ctx, http.MethodPost, "/api/upscale", req, &resp, ErrUpscaleFailed); err != nil {
		return "", err
	}
	return resp.ImageURL, nil
}

func (c *Client) Providers(ctx context.Context) ([]models.ProviderStatus, error) {
	var resp providersResponse
	if err := c.do(ctx, http.MethodGet, "/api/providers", nil, &resp, ErrProvidersFailed); err != nil {
		return nil, err
	}
	return resp.Providers, nil
}

func (c *Client) Templates(ctx context.Context) ([]models.Template, error) {
	var resp templatesResponse
	if err := c.do(ctx, http.MethodGet, "/api/templates", nil, &resp, ErrTemplatesFailed); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

func (c *Client) SyncTemplates(ctx context.Context, req models.SyncTemplatesRequest) (*models.SyncTemplatesResult, error) {
	var resp models.SyncTemplatesResult
	if err := c.do(ctx, http.MethodPost, "/api/templates/sync", &req, &resp, ErrTemplateSyncFailed); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do runs one JSON round trip. A non-2xx status maps to opErr, carrying the
// backend detail message when one is present.
func (c *Client) do(ctx context.Context, method, path string, in, out any, opErr error) error {
	var body io.Reader
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
		body = bytes.NewReader(data)
	}

	reqURL := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	c.logRequest(method, reqURL, payload)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", opErr, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", opErr, err)
	}

	c.logResponse(resp.StatusCode, respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if detail := errorDetail(respBody); detail != "" {
			return fmt.Errorf("%w: %s", opErr, detail)
		}
		return fmt.Errorf("%w: status %d", opErr, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", opErr, err)
	}
	return nil
}

// errorDetail extracts the backend's {"detail": ...} error body, if any.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Detail
}

func (c *Client) logRequest(method, url string, body []byte) {
	if !c.verbose {
		return
	}
	fmt.Fprintln(os.Stderr, "--- REQUEST ---")
	fmt.Fprintf(os.Stderr, "%s %s\n", method, url)
	if len(body) > 0 {
		fmt.Fprintf(os.Stderr, "  %s\n", string(body))
	}
	fmt.Fprintln(os.Stderr, "---------------")
}

func (c *Client) logResponse(statusCode int, body []byte) {
	if !c.verbose {
		return
	}
	fmt.Fprintln(os.Stderr, "--- RESPONSE ---")
	fmt.Fprintf(os.Stderr, "Status: %d\n", statusCode)
	if len(body) > 0 {
		fmt.Fprintf(os.Stderr, "  %s\n", string(body))
	}
	fmt.Fprintln(os.Stderr, "----------------")
}
