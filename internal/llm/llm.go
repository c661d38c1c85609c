package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic API for issue drafting and enrichment.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildEnrichPrompt constructs the system and user prompts for issue enrichment.
func buildEnrichPrompt(title, description string) (system string, user string) {
	system = `You write issue descriptions for a sprint-based issue tracker. Given an issue's title and optional existing description, return a single plain-text description:

- 1-4 sentences summarizing what the issue is about and what done looks like
- If a description is already provided, improve it for clarity without inventing requirements
- If no description exists, infer as much as possible from the title alone

Rules:
- Return the description text only, no JSON, no markdown fencing, no preamble`

	var sb strings.Builder
	sb.WriteString("Issue title: ")
	sb.WriteString(title)
	sb.WriteString("\n")
	if description != "" {
		sb.WriteString("\nExisting description: ")
		sb.WriteString(description)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// EnrichIssue asks the LLM for an improved issue description.
func (c *Client) EnrichIssue(ctx context.Context, title, description string) (string, error) {
	systemPrompt, userPrompt := buildEnrichPrompt(title, description)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 1024)
	if err != nil {
		return "", err
	}
	return text, nil
}

// SuggestedIssue holds a single issue drafted from a sprint goal.
type SuggestedIssue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// buildSuggestPrompt constructs the system and user prompts for sprint planning.
func buildSuggestPrompt(goal string) (system string, user string) {
	system = `You break a sprint goal into concrete issues for a sprint-based issue tracker. Return ONLY a JSON array of objects with these fields:
- "title": concise issue title
- "description": brief description of the work (can be empty string if the title is self-explanatory)
- "priority": one of "LOW", "MEDIUM", "HIGH", "URGENT"

Rules:
- 3 to 8 issues, each independently workable
- Default priority to "MEDIUM" unless the goal suggests otherwise
- Return valid JSON only, no markdown fencing or explanation`

	user = "Break down this sprint goal into issues:\n\n" + goal
	return
}

// SuggestIssues asks the LLM to break a sprint goal into draft issues.
func (c *Client) SuggestIssues(ctx context.Context, goal string) ([]SuggestedIssue, error) {
	systemPrompt, userPrompt := buildSuggestPrompt(goal)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 4096)
	if err != nil {
		return nil, err
	}

	var issues []SuggestedIssue
	if err := json.Unmarshal([]byte(text), &issues); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return issues, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}

	return stripFencing(text), nil
}

// stripFencing removes markdown code fencing if present.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
