package clients

import (
	"context"
	"fmt"
	"strings"
)

const (
	GitHubModelsBaseURL      = "https://models.inference.ai.azure.com"
	DefaultGitHubModelsModel = "gpt-4o-mini"
)

type GitHubModelsClient struct {
	*BaseClient
	model       string
	temperature float64
	maxTokens   int
}

func NewGitHubModelsClient(token, model string) *GitHubModelsClient {
	if model == "" {
		model = DefaultGitHubModelsModel
	}
	client := &GitHubModelsClient{
		BaseClient:  NewBaseClient(GitHubModelsBaseURL),
		model:       model,
		temperature: 1,
		maxTokens:   150,
	}
	client.SetHeader("Authorization", "Bearer "+token)
	return client
}

// WithBaseURL points the client at another host, for tests.
func (c *GitHubModelsClient) WithBaseURL(baseURL string) *GitHubModelsClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete runs one chat completion and returns the first choice.
func (c *GitHubModelsClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})

	var resp chatResponse
	if err := c.PostJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("github models chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
