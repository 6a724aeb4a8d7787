// Package summarize turns pending articles into per-language summaries and
// fans the results out to delivery rows.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Summarizer produces a condensed digest text for one article in the given
// language.
type Summarizer interface {
	Summarize(ctx context.Context, articleURL, content, language string) (string, error)
}

// OpenAIClient implements Summarizer using the Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a summarizer client. baseURL is optional and allows
// OpenAI-compatible endpoints.
func NewOpenAI(apiKey, model, baseURL string) *OpenAIClient {
	var c *openai.Client
	if baseURL != "" {
		cc := openai.DefaultConfig(apiKey)
		cc.BaseURL = baseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(apiKey)
	}
	return &OpenAIClient{client: c, model: model}
}

// maxContentRunes caps the article text sent to the model.
const maxContentRunes = 6000

func (o *OpenAIClient) Summarize(ctx context.Context, articleURL, content, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("no content for %s", articleURL)
	}
	if runes := []rune(content); len(runes) > maxContentRunes {
		content = string(runes[:maxContentRunes])
	}

	sys := fmt.Sprintf(
		"You summarize news articles for a digest. Write in the language with ISO code %s. "+
			"Return 2-4 plain sentences covering the key facts. No headline, no links, no markdown.",
		language,
	)
	user := fmt.Sprintf("URL: %s\n\n%s", articleURL, content)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
