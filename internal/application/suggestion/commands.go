// Package suggestion provides the application layer for AI meal
// suggestions: generation, regeneration, accept/reject with portion
// multipliers, and the Redis-backed session lifecycle.
package suggestion

import (
	"github.com/google/uuid"
)

// GenerateSuggestionsCommand starts a fresh session for the user,
// replacing any existing one.
type GenerateSuggestionsCommand struct {
	UserID   uuid.UUID `validate:"required"`
	Language string
}

func (GenerateSuggestionsCommand) CommandName() string { return "suggestion.generate" }
func (c GenerateSuggestionsCommand) ActorID() uuid.UUID { return c.UserID }

// RegenerateSuggestionsCommand rotates the active set and tops the
// session back up to three unseen suggestions.
type RegenerateSuggestionsCommand struct {
	UserID    uuid.UUID `validate:"required"`
	SessionID uuid.UUID `validate:"required"`
}

func (RegenerateSuggestionsCommand) CommandName() string { return "suggestion.regenerate" }
func (c RegenerateSuggestionsCommand) ActorID() uuid.UUID { return c.UserID }

// AcceptSuggestionCommand accepts one active suggestion and materializes
// it as a READY meal scaled by the portion multiplier.
type AcceptSuggestionCommand struct {
	UserID       uuid.UUID `validate:"required"`
	SessionID    uuid.UUID `validate:"required"`
	SuggestionID uuid.UUID `validate:"required"`
	Multiplier   int       `validate:"required"`
	MealType     string
}

func (AcceptSuggestionCommand) CommandName() string { return "suggestion.accept" }
func (c AcceptSuggestionCommand) ActorID() uuid.UUID { return c.UserID }

// RejectSuggestionCommand retires one active suggestion with an
// optional reason.
type RejectSuggestionCommand struct {
	UserID       uuid.UUID `validate:"required"`
	SessionID    uuid.UUID `validate:"required"`
	SuggestionID uuid.UUID `validate:"required"`
	Reason       string
}

func (RejectSuggestionCommand) CommandName() string { return "suggestion.reject" }
func (c RejectSuggestionCommand) ActorID() uuid.UUID { return c.UserID }

// DiscardSessionCommand drops the session outright.
type DiscardSessionCommand struct {
	UserID    uuid.UUID `validate:"required"`
	SessionID uuid.UUID `validate:"required"`
}

func (DiscardSessionCommand) CommandName() string { return "suggestion.discard" }
func (c DiscardSessionCommand) ActorID() uuid.UUID { return c.UserID }

// GetSessionQuery returns the live session.
type GetSessionQuery struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

func (GetSessionQuery) QueryName() string { return "suggestion.get_session" }
func (q GetSessionQuery) ActorID() uuid.UUID { return q.UserID }

// GetSessionHistoryQuery returns the retired suggestions with outcomes.
type GetSessionHistoryQuery struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
}

func (GetSessionHistoryQuery) QueryName() string { return "suggestion.get_history" }
func (q GetSessionHistoryQuery) ActorID() uuid.UUID { return q.UserID }
