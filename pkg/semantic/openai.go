package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

const (
	// DefaultOpenAIModel is used when no model is configured.
	DefaultOpenAIModel = "gpt-4o-mini"

	classifierPrompt = "You are a zero-shot text classifier. Given a text and a list of candidate labels, " +
		"reply with a single JSON object whose keys are exactly the candidate labels and whose values are " +
		"probabilities between 0 and 1 that sum to 1. Do not add any other keys or commentary."
)

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API root, e.g. a local OpenAI-compatible server.
	BaseURL string
	Model   string
}

// OpenAIJudge classifies text through a chat completion endpoint.
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

// NewOpenAIJudge creates a judge for cfg.
func NewOpenAIJudge(cfg OpenAIConfig) *OpenAIJudge {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIJudge{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Classify implements scan.Judge
func (j *OpenAIJudge) Classify(ctx context.Context, text string, labels []string) (scan.Distribution, error) {
	if len(labels) == 0 {
		return nil, ErrEmptyDistribution
	}

	req := openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierPrompt},
			{Role: openai.ChatMessageRoleUser, Content: classifierInput(text, labels)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	scores, err := parseScores(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return normalize(scores, labels)
}

func classifierInput(text string, labels []string) string {
	var b strings.Builder
	b.WriteString("Candidate labels:\n")
	for _, l := range labels {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return b.String()
}

// parseScores accepts the JSON object in a reply, tolerating a fenced code
// block around it.
func parseScores(content string) (map[string]float64, error) {
	content = strings.TrimSpace(content)
	if i := strings.Index(content, "{"); i > 0 {
		content = content[i:]
	}
	if i := strings.LastIndex(content, "}"); i >= 0 && i < len(content)-1 {
		content = content[:i+1]
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(content), &scores); err != nil {
		return nil, fmt.Errorf("decode label scores: %w", err)
	}
	return scores, nil
}
