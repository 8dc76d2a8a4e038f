// Package nutrition maps natural-language ingredient queries to
// per-portion macros through external vector indices.
package nutrition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/meal"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// Similarity thresholds. A curated-index hit at or above scoreAccept is
// taken as-is; between scoreFloor and scoreAccept the broader corpus
// competes; below scoreFloor a hit never qualifies.
const (
	scoreAccept = 0.60
	scoreFloor  = 0.35

	lookupBudget   = 5 * time.Second
	searchCacheTTL = time.Hour
)

// Result is a qualified lookup hit scaled to the requested portion.
// Approximate marks portions scaled from an unrecognized unit; such
// results carry model provenance so the meal's confidence reflects the
// guessed portion size.
type Result struct {
	MatchedName string
	FdcID       string
	Score       float64
	Provenance  meal.Provenance
	Approximate bool
	Calories    float64
	Protein     float64
	Carbs       float64
	Fat         float64
	Fiber       float64
}

// Service performs ingredient nutrition lookups.
type Service struct {
	embedder outbound.EmbeddingModel
	index    outbound.NutritionIndex
	cache    outbound.CacheStore
	logger   *zap.Logger
}

// NewService creates the lookup service.
func NewService(
	embedder outbound.EmbeddingModel,
	index outbound.NutritionIndex,
	cache outbound.CacheStore,
	logger *zap.Logger,
) *Service {
	return &Service{
		embedder: embedder,
		index:    index,
		cache:    cache,
		logger:   logger.Named("nutrition"),
	}
}

// Lookup resolves a query to per-portion macros, or nil when no index
// entry qualifies. The whole call runs under a 5 second budget; on
// expiry the result is nil, never an error, so callers keep their model
// estimate.
func (s *Service) Lookup(ctx context.Context, query string, quantity float64, unit string) *Result {
	ctx, cancel := context.WithTimeout(ctx, lookupBudget)
	defer cancel()

	match, provenance := s.bestMatch(ctx, query)
	if match == nil {
		return nil
	}

	grams, approximate := PortionGrams(quantity, unit)
	if approximate {
		provenance = meal.ProvenanceModel
	}
	scale := grams / 100
	return &Result{
		MatchedName: match.Name,
		FdcID:       match.FdcID,
		Score:       match.Score,
		Provenance:  provenance,
		Approximate: approximate,
		Calories:    match.Per100g.Calories * scale,
		Protein:     match.Per100g.Protein * scale,
		Carbs:       match.Per100g.Carbs * scale,
		Fat:         match.Per100g.Fat * scale,
		Fiber:       match.Per100g.Fiber * scale,
	}
}

// bestMatch runs the two-index cascade and returns the winning per-100g
// record with its provenance.
func (s *Service) bestMatch(ctx context.Context, query string) (*outbound.VectorMatch, meal.Provenance) {
	if cached := s.cachedMatch(ctx, query); cached != nil {
		return &cached.Match, cached.Provenance
	}

	vector, err := s.embedder.Embed(ctx, strings.ToLower(strings.TrimSpace(query)))
	if err != nil {
		s.logger.Debug("embedding failed, keeping model estimate",
			zap.String("query", query), zap.Error(err))
		return nil, meal.ProvenanceModel
	}

	curated := s.topOne(ctx, outbound.NamespaceIngredients, vector)

	switch {
	case curated != nil && curated.Score >= scoreAccept:
		s.storeMatch(ctx, query, curated, meal.ProvenanceIndex)
		return curated, meal.ProvenanceIndex

	case curated != nil && curated.Score >= scoreFloor:
		usda := s.topOne(ctx, outbound.NamespaceUSDA, vector)
		if usda != nil && usda.Score > curated.Score {
			s.storeMatch(ctx, query, usda, meal.ProvenanceUSDA)
			return usda, meal.ProvenanceUSDA
		}
		s.storeMatch(ctx, query, curated, meal.ProvenanceIndex)
		return curated, meal.ProvenanceIndex

	default:
		usda := s.topOne(ctx, outbound.NamespaceUSDA, vector)
		if usda != nil && usda.Score >= scoreFloor {
			s.storeMatch(ctx, query, usda, meal.ProvenanceUSDA)
			return usda, meal.ProvenanceUSDA
		}
		return nil, meal.ProvenanceModel
	}
}

func (s *Service) topOne(ctx context.Context, namespace string, vector []float32) *outbound.VectorMatch {
	matches, err := s.index.Search(ctx, namespace, vector, 1)
	if err != nil {
		s.logger.Debug("index query failed",
			zap.String("namespace", namespace), zap.Error(err))
		return nil
	}
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

type cachedSearch struct {
	Match      outbound.VectorMatch `json:"match"`
	Provenance meal.Provenance      `json:"provenance"`
}

func (s *Service) cachedMatch(ctx context.Context, query string) *cachedSearch {
	data, err := s.cache.Get(ctx, searchCacheKey(query))
	if err != nil {
		return nil
	}
	var cached cachedSearch
	if json.Unmarshal(data, &cached) != nil {
		return nil
	}
	return &cached
}

func (s *Service) storeMatch(ctx context.Context, query string, match *outbound.VectorMatch, provenance meal.Provenance) {
	data, err := json.Marshal(cachedSearch{Match: *match, Provenance: provenance})
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, searchCacheKey(query), data, searchCacheTTL)
}

func searchCacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return "food:search:" + hex.EncodeToString(sum[:8])
}
