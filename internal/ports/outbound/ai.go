package outbound

import (
	"context"

	"github.com/nutrisnap/v2/internal/domain/chat"
)

// VisionModel analyzes a meal photo and returns the model's raw textual
// response. Prompt construction and response parsing live in the
// application layer; the adapter only moves bytes.
type VisionModel interface {
	AnalyzeImage(ctx context.Context, imageURL string, systemPrompt, userPrompt string) (string, error)
}

// ChatModel produces assistant replies over a bounded message window.
type ChatModel interface {
	Complete(ctx context.Context, system string, window []chat.Message) (string, error)

	// Stream starts a streaming completion. The caller must Close the
	// returned stream regardless of outcome.
	Stream(ctx context.Context, system string, window []chat.Message) (ChatStream, error)
}

// ChatStream yields completion deltas. Recv returns io.EOF when the
// model is done.
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

// EmbeddingModel turns text into a vector for nutrition index queries.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SuggestionModel generates meal suggestions from a composed prompt and
// returns the raw model output for tolerant parsing upstream.
type SuggestionModel interface {
	GenerateSuggestions(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
