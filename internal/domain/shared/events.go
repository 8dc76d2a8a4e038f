// Package shared holds domain building blocks used by every aggregate.
package shared

import "time"

// DomainEvent represents a past-tense fact that has occurred in the domain.
// Payloads are immutable records; subscribers must treat them as read-only.
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// AggregateRoot is the base type for aggregate roots. It accumulates
// domain events raised during a handler's execution; the bus drains them
// after the surrounding unit of work commits.
type AggregateRoot struct {
	events []DomainEvent
}

// AddEvent adds a domain event to be dispatched
func (a *AggregateRoot) AddEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// Events returns and clears pending domain events
func (a *AggregateRoot) Events() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

// ClearEvents clears all pending events
func (a *AggregateRoot) ClearEvents() {
	a.events = nil
}
