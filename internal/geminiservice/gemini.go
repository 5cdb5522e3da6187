package geminiservice

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// --- Gemini API Configuration ---
const (
	DefaultEndpoint    = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultModel       = "gemini-2.5-flash"
	initialBackoff     = 500 * time.Millisecond
	structuredMimeType = "application/json"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("gemini: api key not configured")

	// ErrKeyRevoked stops the attempt schedule: retrying a leaked key is pointless.
	ErrKeyRevoked = errors.New("gemini: api key reported as leaked")

	// ErrEmptyResponse is returned when a 200 response carries no text part.
	ErrEmptyResponse = errors.New("gemini: no content found in response")
)

// attempt is one step of the retry schedule. Later steps get more time and, when
// allowed, a relaxed TLS transport for networks that re-sign certificates.
type attempt struct {
	timeout time.Duration
	relaxed bool
	label   string
}

// --- Structs for Gemini API Request/Response ---

type GeminiPayload struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

type GenerationConfig struct {
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"topP"`
	TopK             int           `json:"topK"`
	MaxOutputTokens  int           `json:"maxOutputTokens"`
	ResponseMimeType string        `json:"responseMimeType"`
	ResponseSchema   *GeminiSchema `json:"responseSchema,omitempty"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Config configures the REST client.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string

	// AllowInsecureTLS lets the final attempt skip certificate verification.
	AllowInsecureTLS bool
}

// Client calls the Gemini generateContent REST endpoint.
type Client struct {
	cfg      Config
	log      zerolog.Logger
	verified *http.Client
	relaxed  *http.Client
	schedule []attempt
	backoff  time.Duration
}

// NewClient builds a client. Proxy settings come from HTTPS_PROXY / HTTP_PROXY.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	cfg.Model = strings.TrimPrefix(cfg.Model, "models/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	newHTTP := func(insecure bool) *http.Client {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.Proxy = http.ProxyFromEnvironment
		// #nosec G402 -- only reachable when AllowInsecureTLS is set explicitly.
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure}
		return &http.Client{Transport: tr}
	}

	return &Client{
		cfg:      cfg,
		log:      log.With().Str("component", "gemini").Logger(),
		verified: newHTTP(false),
		relaxed:  newHTTP(true),
		schedule: []attempt{
			{timeout: 15 * time.Second, label: "quick verified"},
			{timeout: 30 * time.Second, label: "extended verified"},
			{timeout: 45 * time.Second, relaxed: cfg.AllowInsecureTLS, label: "extended final"},
		},
		backoff: initialBackoff,
	}
}

// Available reports whether a key is configured.
func (c *Client) Available() bool { return c.cfg.APIKey != "" }

// Model returns the resolved model name.
func (c *Client) Model() string { return c.cfg.Model }

// Generate sends prompt and returns the raw text of the first candidate. It makes
// at most len(schedule) attempts, each under its own timeout and the caller's ctx.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", ErrNotConfigured
	}

	payload := GeminiPayload{
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: SystemPrompt}},
		},
		Contents: []GeminiContent{
			{Parts: []GeminiPart{{Text: prompt}}},
		},
		GenerationConfig: &GenerationConfig{
			Temperature:      0.4,
			TopP:             0.8,
			TopK:             40,
			MaxOutputTokens:  2048,
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   InsightsSchema,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.cfg.Endpoint, c.cfg.Model, c.cfg.APIKey)

	var lastErr error
	for i, a := range c.schedule {
		if i > 0 {
			wait := c.backoff * time.Duration(math.Pow(2, float64(i-1)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		c.log.Info().Int("attempt", i+1).Str("mode", a.label).Bool("relaxed_tls", a.relaxed).Msg("Calling Gemini API")

		text, err := c.do(ctx, a, url, payloadBytes)
		if err == nil {
			c.log.Info().Int("attempt", i+1).Msg("Gemini API call succeeded")
			return text, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", i+1).Msg("Gemini attempt failed")

		if errors.Is(err, ErrKeyRevoked) || ctx.Err() != nil {
			break
		}
	}

	return "", fmt.Errorf("failed to call Gemini API after %d attempts: %w", len(c.schedule), lastErr)
}

func (c *Client) do(ctx context.Context, a attempt, url string, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.verified
	if a.relaxed {
		client = c.relaxed
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		lower := strings.ToLower(string(msg))
		if resp.StatusCode == http.StatusForbidden && (strings.Contains(lower, "leaked") || strings.Contains(lower, "reported")) {
			return "", fmt.Errorf("%w: %s", ErrKeyRevoked, msg)
		}
		return "", fmt.Errorf("API returned non-200 status: %s, Body: %s", resp.Status, msg)
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		if text := geminiResp.Candidates[0].Content.Parts[0].Text; text != "" {
			return text, nil
		}
	}
	return "", ErrEmptyResponse
}
