package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examhall/internal/llm/prompts"
	"github.com/pavelanni/examhall/internal/model"
)

// draftResponse is the JSON object the model is asked to return.
type draftResponse struct {
	Questions []draftQuestion `json:"questions"`
}

type draftQuestion struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex *int     `json:"correct_option_index"`
	CorrectOption      string   `json:"correct_option"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) (*Client, error) {
	if err := prompts.Load(prompts.Files); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Ping checks that the API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM list models: %w", err)
	}
	return nil
}

// DraftQuestions asks the model for multiple-choice questions. Drafts that
// cannot be turned into a four-option question are dropped.
func (c *Client) DraftQuestions(ctx context.Context, req model.DraftRequest) ([]model.Question, error) {
	systemPrompt, err := prompts.BuildDraftPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Generate %d questions now.", req.Count)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return parseDrafts(raw)
}

// parseDrafts decodes the model output, tolerating markdown code fences.
func parseDrafts(raw string) ([]model.Question, error) {
	var resp draftResponse
	if err := json.Unmarshal([]byte(cleanJSONContent(raw)), &resp); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}

	questions := make([]model.Question, 0, len(resp.Questions))
	for i, d := range resp.Questions {
		q, ok := d.toQuestion()
		if !ok {
			slog.Warn("dropping malformed draft", "index", i, "text", d.Text, "options", len(d.Options))
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (d draftQuestion) toQuestion() (model.Question, bool) {
	q := model.Question{Text: strings.TrimSpace(d.Text)}
	if q.Text == "" || len(d.Options) != model.NumOptions {
		return model.Question{}, false
	}
	for i, o := range d.Options {
		q.Options[i] = strings.TrimSpace(o)
	}

	switch {
	case d.CorrectOptionIndex != nil:
		q.CorrectOptionIndex = *d.CorrectOptionIndex
	case len(d.CorrectOption) == 1:
		q.CorrectOptionIndex = int(strings.ToUpper(d.CorrectOption)[0] - 'A')
	default:
		return model.Question{}, false
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= model.NumOptions {
		return model.Question{}, false
	}
	return q, true
}

func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
