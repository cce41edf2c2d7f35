// Package suggest wraps an external text generator that proposes message
// starters for senders. It is stateless: nothing here is persisted.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Suggestions are returned by the generator as a single string with this
// separator between entries.
const separator = "||"

const prompt = "Create a list of three open-ended and engaging questions " +
	"formatted as a single string. Each question should be separated by '||'. " +
	"These questions are for an anonymous social messaging platform and should " +
	"be suitable for a diverse audience. Avoid personal or sensitive topics, " +
	"focusing instead on universal themes that encourage friendly interaction."

// defaultSuggestions is served when no generator is configured or the
// upstream call fails.
var defaultSuggestions = []string{
	"What's your favorite movie?",
	"Do you have any pets?",
	"What's your dream job?",
}

// Config holds the generator endpoint settings.
type Config struct {
	// Endpoint is an OpenAI-compatible completions URL. Empty disables the
	// external call and serves the canned list.
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Service calls the external generator with a bounded timeout.
type Service struct {
	config Config
	client *http.Client
}

// NewService creates a new suggestion service.
func NewService(config Config) *Service {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Service{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Suggest returns a short list of message starters. Without a configured
// endpoint the canned defaults are returned with no network call.
func (s *Service) Suggest(ctx context.Context) ([]string, error) {
	if s.config.Endpoint == "" {
		return defaultSuggestions, nil
	}

	completion, err := s.complete(ctx)
	if err != nil {
		return nil, err
	}

	suggestions := Parse(completion)
	if len(suggestions) == 0 {
		return defaultSuggestions, nil
	}
	return suggestions, nil
}

// Parse splits a generator completion into individual suggestions.
func Parse(completion string) []string {
	var out []string
	for _, part := range strings.Split(completion, separator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Defaults returns the canned starter list.
func Defaults() []string {
	return defaultSuggestions
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (s *Service) complete(ctx context.Context) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       s.config.Model,
		Prompt:      prompt,
		MaxTokens:   400,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("suggestion upstream returned status %d", resp.StatusCode)
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("suggestion upstream returned no choices")
	}
	return cr.Choices[0].Text, nil
}
