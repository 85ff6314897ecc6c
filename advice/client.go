package advice

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

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mdblp/health-tracker/common"
	"github.com/mdblp/health-tracker/schema"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"
	maxRetries      = 3
	initialBackoff  = 1 * time.Second
	requestTimeout  = 30 * time.Second
	cacheSize       = 128
)

const systemPrompt = "You are a friendly health assistant. Give two or three short, general wellness tips " +
	"based on the readings below. Do not diagnose and remind the user to follow their doctor's advice."

var ErrNotConfigured = errors.New("advice service is not configured")

// Request holds the records the advice is based on
type Request struct {
	BloodPressure *schema.BloodPressure
	BloodSugar    *schema.BloodSugar
	Medications   []schema.Medication
}

// Prompt renders the user part of the prompt; it is also the cache key
func (r Request) Prompt() string {
	var b strings.Builder
	if r.BloodPressure != nil {
		fmt.Fprintf(&b, "Latest blood pressure: %d/%d mmHg.\n", r.BloodPressure.Systolic, r.BloodPressure.Diastolic)
	} else {
		b.WriteString("No blood pressure reading.\n")
	}
	if r.BloodSugar != nil {
		fmt.Fprintf(&b, "Latest blood sugar: %d mg/dL.\n", r.BloodSugar.Level)
	} else {
		b.WriteString("No blood sugar reading.\n")
	}
	if len(r.Medications) == 0 {
		b.WriteString("No medications.\n")
	}
	for _, m := range r.Medications {
		fmt.Fprintf(&b, "Medication: %s, %s.\n", m.Name, m.Dosage)
	}
	return b.String()
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPayload struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBackoff sets the wait before the first retry, doubled on each attempt
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// Client calls the Gemini generateContent API
type Client struct {
	logger     zerolog.Logger
	apiKey     string
	endpoint   string
	httpClient *http.Client
	backoff    time.Duration
	limiter    *rate.Limiter
	cache      *lru.Cache[string, string]
}

// NewClient accepts an empty apiKey: every call then fails with an advice error
func NewClient(logger zerolog.Logger, apiKey string, opts ...Option) (*Client, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		logger:     logger.With().Str("component", "advice").Logger(),
		apiKey:     apiKey,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: requestTimeout},
		backoff:    initialBackoff,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 3),
		cache:      cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Advise returns a short text for req. Every failure is an advice_error.
func (c *Client) Advise(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", common.NewError(common.CodeAdvice, "Advice is not configured", ErrNotConfigured)
	}
	prompt := req.Prompt()
	if text, ok := c.cache.Get(prompt); ok {
		return text, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", common.NewError(common.CodeAdvice, "Advice is unavailable right now", err)
	}
	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Error().Err(err).Msg("advice request failed")
		return "", common.NewError(common.CodeAdvice, "Could not get advice", err)
	}
	c.cache.Add(prompt, text)
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(geminiPayload{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	wait := c.backoff
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			wait *= 2
		}
		text, retry, err := c.attempt(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", i+1).Msg("advice attempt failed")
		if !retry {
			return "", err
		}
	}
	return "", fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// attempt returns whether a failure is worth retrying
func (c *Client) attempt(ctx context.Context, payload []byte) (string, bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("api returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", false, errors.New("no content in response")
	}
	var b strings.Builder
	for _, p := range decoded.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", false, errors.New("empty advice")
	}
	return text, false, nil
}
