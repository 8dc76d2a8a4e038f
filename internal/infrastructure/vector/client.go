// Package vector adapts the hosted nutrition vector index to the
// NutritionIndex port over its HTTP query API.
package vector

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/infrastructure/config"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// Client queries the nutrition index.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates the index client from configuration.
func NewClient(cfg config.VectorConfig, logger *zap.Logger) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Api-Key", cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &Client{http: http, logger: logger.Named("vector")}
}

type queryRequest struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string  `json:"id"`
		Score    float64 `json:"score"`
		Metadata struct {
			Name     string  `json:"name"`
			FdcID    string  `json:"fdc_id"`
			Calories float64 `json:"calories_per_100g"`
			Protein  float64 `json:"protein_per_100g"`
			Carbs    float64 `json:"carbs_per_100g"`
			Fat      float64 `json:"fat_per_100g"`
			Fiber    float64 `json:"fiber_per_100g"`
		} `json:"metadata"`
	} `json:"matches"`
}

// Search runs a nearest-neighbour query against one namespace.
func (c *Client) Search(ctx context.Context, namespace string, vector []float32, topK int) ([]outbound.VectorMatch, error) {
	var out queryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(queryRequest{
			Namespace:       namespace,
			Vector:          vector,
			TopK:            topK,
			IncludeMetadata: true,
		}).
		SetResult(&out).
		Post("/query")
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("vector query: status %d", resp.StatusCode())
	}

	matches := make([]outbound.VectorMatch, 0, len(out.Matches))
	for _, m := range out.Matches {
		matches = append(matches, outbound.VectorMatch{
			ID:    m.ID,
			Name:  m.Metadata.Name,
			FdcID: m.Metadata.FdcID,
			Score: m.Score,
			Per100g: outbound.Per100g{
				Calories: m.Metadata.Calories,
				Protein:  m.Metadata.Protein,
				Carbs:    m.Metadata.Carbs,
				Fat:      m.Metadata.Fat,
				Fiber:    m.Metadata.Fiber,
			},
		})
	}
	return matches, nil
}
