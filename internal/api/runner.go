package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Runner executes single prompt/response exchanges against the API and
// records token usage on the client's tracker.
type Runner struct {
	client    *Client
	maxTokens int64
}

// NewRunner creates a runner over an existing client.
func NewRunner(client *Client) *Runner {
	return &Runner{
		client:    client,
		maxTokens: 8192,
	}
}

// Run sends a single user prompt and returns the text response.
func (r *Runner) Run(ctx context.Context, prompt string) (string, error) {
	return r.RunWithSystem(ctx, "", prompt)
}

// RunWithSystem sends a prompt with an optional system prompt.
func (r *Runner) RunWithSystem(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     r.client.Model(),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	msg, err := r.client.sdk().Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	r.client.Tracker().Add(msg.Usage.InputTokens, msg.Usage.OutputTokens)

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	response := sb.String()
	if response == "" {
		return "", fmt.Errorf("API returned empty response")
	}
	return response, nil
}

// RunJSON sends a prompt and extracts the JSON object from the
// response, tolerating prose or markdown fences around it.
func (r *Runner) RunJSON(ctx context.Context, system, prompt string) (string, error) {
	response, err := r.RunWithSystem(ctx, system, prompt)
	if err != nil {
		return "", err
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in response: %s", truncate(response, 200))
	}
	return response[start : end+1], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
