// Package advisor is a thin client for the text-generation service that
// backs the in-game coach. The capability is opaque: prompt in, text out.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

type GenerateConfig struct {
	Temperature float64
	MaxTokens   int
}

type Client struct {
	http    *resty.Client
	log     *slog.Logger
	limiter *rate.Limiter
	model   string
}

type generateRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type generateResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New builds a client against baseURL. outboundRPS caps calls to the
// upstream regardless of how many players hit the coach at once.
func New(baseURL, apiKey, model string, outboundRPS float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second)
	if apiKey != "" {
		httpClient.SetAuthToken(apiKey)
	}
	return &Client{
		http:    httpClient,
		log:     logger,
		limiter: rate.NewLimiter(rate.Limit(outboundRPS), 1),
		model:   model,
	}
}

func (c *Client) Generate(ctx context.Context, prompt string, cfg GenerateConfig) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:       c.model,
			Prompt:      prompt,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/completions")
	if err != nil {
		return "", fmt.Errorf("advisor request: %w", err)
	}
	if resp.IsError() {
		msg := out.Error.Message
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("advisor upstream: %s", msg)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("advisor upstream returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Text), nil
}
