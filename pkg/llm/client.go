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

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/dailyplan/pkg/config"
)

// ErrNoContent is returned when a successful response carries no plan text.
var ErrNoContent = errors.New("response has no message content")

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	url        string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewClient(cfg *config.Config, log zerolog.Logger) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.LLM.APIKey, TokenType: "Bearer"})
	return &Client{
		url:        cfg.LLM.URL,
		model:      cfg.LLM.Model,
		timeout:    cfg.LLM.Timeout,
		httpClient: &http.Client{Transport: &oauth2.Transport{Source: src}},
		log:        log.With().Str("component", "llm").Logger(),
	}
}

// GeneratePlan sends messages once and returns the first choice's content.
func (c *Client) GeneratePlan(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer googleapi.CloseBody(res)

	if err := googleapi.CheckResponse(res); err != nil {
		return "", fmt.Errorf("generation service error: %w", err)
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", ErrNoContent
	}
	content := *parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrNoContent
	}

	c.log.Debug().
		Str("model", c.model).
		Dur("elapsed", time.Since(start)).
		Int("chars", len([]rune(content))).
		Msg("generated plan")
	return content, nil
}
