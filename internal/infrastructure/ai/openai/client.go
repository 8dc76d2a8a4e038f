// Package openai adapts the OpenAI API to the model ports. Prompts come
// fully composed from the application layer; the adapters only shape the
// request and hand back raw text.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/chat"
	"github.com/nutrisnap/v2/internal/infrastructure/config"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// Client bundles the model adapters behind a single OpenAI connection.
type Client struct {
	api    *openai.Client
	cfg    config.AIConfig
	logger *zap.Logger
}

// NewClient creates the OpenAI client from configuration.
func NewClient(cfg config.AIConfig, logger *zap.Logger) *Client {
	return &Client{
		api:    openai.NewClient(cfg.OpenAIKey),
		cfg:    cfg,
		logger: logger.Named("openai"),
	}
}

// AnalyzeImage sends the meal photo to the vision model and returns the
// raw textual response.
func (c *Client) AnalyzeImage(ctx context.Context, imageURL string, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.VisionModel,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("vision completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Complete produces a full assistant reply over the message window.
func (c *Client) Complete(ctx context.Context, system string, window []chat.Message) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		Messages:    chatMessages(system, window),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion over the message window.
func (c *Client) Stream(ctx context.Context, system string, window []chat.Message) (outbound.ChatStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: float32(c.cfg.Temperature),
		Messages:    chatMessages(system, window),
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("chat stream: %w", err)
	}
	return &chatStream{inner: stream}, nil
}

// GenerateSuggestions asks the suggestion model for meal ideas and
// returns the raw output; the caller parses it tolerantly.
func (c *Client) GenerateSuggestions(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.SuggestionModel,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: 0.8,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("suggestion completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("suggestion completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed turns text into an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding returned no data")
	}
	return resp.Data[0].Embedding, nil
}

func chatMessages(system string, window []chat.Message) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return messages
}

type chatStream struct {
	inner *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	resp, err := s.inner.Recv()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *chatStream) Close() error {
	return s.inner.Close()
}
