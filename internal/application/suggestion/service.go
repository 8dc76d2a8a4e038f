package suggestion

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	mealapp "github.com/nutrisnap/v2/internal/application/meal"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/domain/suggestion"
	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	apperrors "github.com/nutrisnap/v2/pkg/errors"
	"github.com/nutrisnap/v2/pkg/jsonrepair"
)

const (
	suggestionCount   = 3
	generationTimeout = 45 * time.Second
)

// Service orchestrates suggestion sessions.
type Service struct {
	store    outbound.SuggestionSessionStore
	model    outbound.SuggestionModel
	users    outbound.UserRepository
	meals    *mealapp.Service
	metrics  outbound.Metrics
	ids      outbound.IDGenerator
	clock    outbound.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the suggestion application service.
func NewService(
	store outbound.SuggestionSessionStore,
	model outbound.SuggestionModel,
	users outbound.UserRepository,
	meals *mealapp.Service,
	metrics outbound.Metrics,
	ids outbound.IDGenerator,
	clock outbound.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:    store,
		model:    model,
		users:    users,
		meals:    meals,
		metrics:  metrics,
		ids:      ids,
		clock:    clock,
		validate: validator.New(),
		logger:   logger.Named("suggestion"),
	}
}

// Register wires the service's handlers into the bus.
func (s *Service) Register(b *bus.Bus) {
	bus.RegisterCommand(b, s.handleGenerate)
	bus.RegisterCommand(b, s.handleRegenerate)
	bus.RegisterCommand(b, s.handleAccept)
	bus.RegisterCommand(b, s.handleReject)
	bus.RegisterCommand(b, s.handleDiscard)
	bus.RegisterQuery(b, s.handleGetSession)
	bus.RegisterQuery(b, s.handleGetHistory)

	b.Subscribe(suggestion.RejectedEvent{}.EventName(), s.OnSuggestionRejected)
}

func (s *Service) handleGenerate(ctx context.Context, uow bus.UnitOfWork, cmd GenerateSuggestionsCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}

	u, err := s.users.FindByID(ctx, cmd.UserID)
	if errors.Is(err, outbound.ErrNotFound) {
		return nil, apperrors.NewNotFound("user", cmd.UserID.String())
	}
	if err != nil {
		return nil, err
	}

	language := cmd.Language
	if language == "" {
		language = u.Language()
	}

	session := suggestion.NewSession(s.ids.New(), cmd.UserID, language, s.clock.Now())
	batch := s.produce(ctx, u.Profile(), cmd.UserID, language, session.Seen, nil)
	if err := session.AddActive(batch...); err != nil {
		return nil, apperrors.NewInternal(err.Error())
	}
	if err := s.store.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) handleRegenerate(ctx context.Context, uow bus.UnitOfWork, cmd RegenerateSuggestionsCommand) (any, error) {
	existing, err := s.loadSession(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	// The active set is about to rotate into seen, so exclude it from
	// generation up front.
	seen := make(map[string]bool, len(existing.Seen)+len(existing.Active))
	var avoid []string
	for fp := range existing.Seen {
		seen[fp] = true
	}
	avoid = append(avoid, existing.SeenNames()...)
	for _, sug := range existing.Active {
		seen[sug.Fingerprint] = true
		avoid = append(avoid, sug.Name)
	}

	batch := s.produce(ctx, u.Profile(), cmd.UserID, existing.Language, seen, avoid)

	updated, err := s.store.Mutate(ctx, cmd.UserID, func(sess *suggestion.Session) error {
		if sess.ID != cmd.SessionID {
			return outbound.ErrSessionNotFound
		}
		sess.Rotate(s.clock.Now())
		fresh := make([]suggestion.Suggestion, 0, len(batch))
		for _, sug := range batch {
			if !sess.Seen[sug.Fingerprint] && len(fresh) < suggestionCount {
				fresh = append(fresh, sug)
			}
		}
		return sess.AddActive(fresh...)
	})
	if err != nil {
		return nil, mapSessionErr(err)
	}
	return updated, nil
}

func (s *Service) handleAccept(ctx context.Context, uow bus.UnitOfWork, cmd AcceptSuggestionCommand) (any, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, apperrors.NewInvalidInput(err.Error())
	}

	var accepted suggestion.Suggestion
	updated, err := s.store.Mutate(ctx, cmd.UserID, func(sess *suggestion.Session) error {
		if sess.ID != cmd.SessionID {
			return outbound.ErrSessionNotFound
		}
		a, err := sess.Accept(cmd.SuggestionID, cmd.Multiplier, s.clock.Now())
		if err != nil {
			return err
		}
		accepted = a
		return nil
	})
	if err != nil {
		return nil, mapSessionErr(err)
	}

	mealType := cmd.MealType
	if mealType == "" {
		mealType = "lunch"
	}
	scaled := accepted.MacroEstimate.Scale(cmd.Multiplier)
	created, err := s.meals.CreateManual(ctx, uow, mealapp.CreateManualMealCommand{
		UserID:   cmd.UserID,
		DishName: accepted.Name,
		MealType: mealType,
		Items: []mealapp.ManualItemInput{{
			Name:     accepted.Name,
			Quantity: float64(cmd.Multiplier),
			Unit:     accepted.PortionType,
			Calories: scaled.Calories,
			Protein:  scaled.Protein,
			Carbs:    scaled.Carbs,
			Fat:      scaled.Fat,
		}},
		Fingerprint: accepted.Fingerprint,
		Multiplier:  cmd.Multiplier,
	})
	if err != nil {
		return nil, err
	}

	return AcceptResult{Session: updated, Meal: created.(mealapp.MealDTO)}, nil
}

// AcceptResult pairs the updated session with the materialized meal.
type AcceptResult struct {
	Session *suggestion.Session `json:"session"`
	Meal    mealapp.MealDTO     `json:"meal"`
}

func (s *Service) handleReject(ctx context.Context, uow bus.UnitOfWork, cmd RejectSuggestionCommand) (any, error) {
	var rejected suggestion.Suggestion
	updated, err := s.store.Mutate(ctx, cmd.UserID, func(sess *suggestion.Session) error {
		if sess.ID != cmd.SessionID {
			return outbound.ErrSessionNotFound
		}
		r, err := sess.Reject(cmd.SuggestionID, cmd.Reason, s.clock.Now())
		if err != nil {
			return err
		}
		rejected = r
		return nil
	})
	if err != nil {
		return nil, mapSessionErr(err)
	}

	uow.Collect(suggestion.RejectedEvent{
		SessionID:   cmd.SessionID,
		UserID:      cmd.UserID,
		Fingerprint: rejected.Fingerprint,
		Reason:      cmd.Reason,
		At:          s.clock.Now(),
	})
	return updated, nil
}

func (s *Service) handleDiscard(ctx context.Context, uow bus.UnitOfWork, cmd DiscardSessionCommand) (any, error) {
	existing, err := s.store.Get(ctx, cmd.UserID)
	if errors.Is(err, outbound.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing.ID != cmd.SessionID {
		return nil, apperrors.NewNotFound("suggestion session", cmd.SessionID.String())
	}
	return nil, s.store.Delete(ctx, cmd.UserID)
}

func (s *Service) handleGetSession(ctx context.Context, q GetSessionQuery) (any, error) {
	return s.loadSession(ctx, q.UserID, q.SessionID)
}

func (s *Service) handleGetHistory(ctx context.Context, q GetSessionHistoryQuery) (any, error) {
	session, err := s.loadSession(ctx, q.UserID, q.SessionID)
	if err != nil {
		return nil, err
	}
	return session.History, nil
}

// OnSuggestionRejected records rejections for future model tuning.
func (s *Service) OnSuggestionRejected(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(suggestion.RejectedEvent)
	if !ok {
		return nil
	}
	s.logger.Info("suggestion rejected",
		zap.String("user_id", e.UserID.String()),
		zap.String("fingerprint", e.Fingerprint),
		zap.String("reason", e.Reason))
	return nil
}

func (s *Service) loadSession(ctx context.Context, userID, sessionID uuid.UUID) (*suggestion.Session, error) {
	session, err := s.store.Get(ctx, userID)
	if errors.Is(err, outbound.ErrSessionNotFound) {
		return nil, apperrors.NewNotFound("suggestion session", sessionID.String())
	}
	if err != nil {
		return nil, err
	}
	if session.ID != sessionID {
		return nil, apperrors.NewNotFound("suggestion session", sessionID.String())
	}
	return session, nil
}

// produce returns up to three unseen suggestions: model output first,
// topped up from the fallback library on shortfall, timeout, or parse
// failure.
func (s *Service) produce(ctx context.Context, profile *user.Profile, userID uuid.UUID, language string, seen map[string]bool, avoid []string) []suggestion.Suggestion {
	gctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	picked := make([]suggestion.Suggestion, 0, suggestionCount)
	batchSeen := make(map[string]bool, len(seen))
	for fp := range seen {
		batchSeen[fp] = true
	}

	system, userPrompt := BuildPrompt(profile, language, suggestionCount, avoid)
	raw, err := s.model.GenerateSuggestions(gctx, system, userPrompt)
	if err != nil {
		s.logger.Warn("suggestion generation failed, using fallback library", zap.Error(err))
	} else {
		for _, item := range parseSuggestions(raw) {
			fp := suggestion.Fingerprint(item.Name, item.Ingredients)
			if batchSeen[fp] || len(picked) >= suggestionCount {
				continue
			}
			batchSeen[fp] = true
			picked = append(picked, suggestion.Suggestion{
				ID:          s.ids.New(),
				Fingerprint: fp,
				Name:        item.Name,
				Description: item.Description,
				Ingredients: item.Ingredients,
				MacroEstimate: suggestion.MacroEstimate{
					Calories: item.Calories,
					Protein:  item.Protein,
					Carbs:    item.Carbs,
					Fat:      item.Fat,
				},
				PortionType: item.PortionType,
				Source:      suggestion.SourceModel,
			})
			s.metrics.SuggestionServed(string(suggestion.SourceModel))
		}
	}

	if len(picked) < suggestionCount {
		for _, sug := range SelectFallback(profile, userID, batchSeen, suggestionCount-len(picked)) {
			batchSeen[sug.Fingerprint] = true
			picked = append(picked, sug)
			s.metrics.SuggestionServed(string(suggestion.SourceFallback))
		}
	}
	return picked
}

type suggestionItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Calories    float64  `json:"calories"`
	Protein     float64  `json:"protein"`
	Carbs       float64  `json:"carbs"`
	Fat         float64  `json:"fat"`
	PortionType string   `json:"portion_type"`
}

// parseSuggestions tolerantly decodes the model response. Items with no
// name are dropped.
func parseSuggestions(raw string) []suggestionItem {
	var payload struct {
		Suggestions []suggestionItem `json:"suggestions"`
	}
	if err := jsonrepair.Decode(raw, &payload); err != nil {
		return nil
	}
	out := payload.Suggestions[:0]
	for _, item := range payload.Suggestions {
		if item.Name != "" {
			out = append(out, item)
		}
	}
	return out
}

func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, outbound.ErrSessionNotFound):
		return apperrors.NewNotFound("suggestion session", "")
	case errors.Is(err, outbound.ErrCasConflict):
		return apperrors.NewConflict("suggestion session")
	case errors.Is(err, suggestion.ErrSuggestionNotFound):
		return apperrors.NewNotFound("suggestion", "")
	case errors.Is(err, suggestion.ErrInvalidMultiplier):
		return apperrors.NewInvalidInput("multiplier must be an integer between 1 and 4")
	case errors.Is(err, suggestion.ErrActiveLimitExceeded), errors.Is(err, suggestion.ErrSeenFingerprint):
		return apperrors.NewConflict("suggestion session")
	default:
		return err
	}
}
