package outbound

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall time so the dispatcher and session stores can be
// tested at fixed instants.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces aggregate ids.
type IDGenerator interface {
	New() uuid.UUID
}

// UUIDGenerator is the production IDGenerator.
type UUIDGenerator struct{}

func (UUIDGenerator) New() uuid.UUID { return uuid.New() }

// Metrics is the instrumentation sink. Adapters map these calls onto
// whatever backend is wired; a no-op implementation is valid.
type Metrics interface {
	HandlerExecuted(name, outcome string, duration time.Duration)
	AnalysisFinished(strategy, outcome string, duration time.Duration)
	SuggestionServed(source string)
	NotificationDispatched(category, outcome string)
	ChatStreamFinished(outcome string, duration time.Duration)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) HandlerExecuted(string, string, time.Duration)  {}
func (NopMetrics) AnalysisFinished(string, string, time.Duration) {}
func (NopMetrics) SuggestionServed(string)                        {}
func (NopMetrics) NotificationDispatched(string, string)          {}
func (NopMetrics) ChatStreamFinished(string, time.Duration)       {}
