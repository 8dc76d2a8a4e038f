package bus

import (
	"context"

	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// UnitOfWork exposes transaction-scoped repositories to a command
// handler. Every repository call inside a handler runs on the same
// database transaction; events collected here are published only after
// that transaction commits.
type UnitOfWork interface {
	Meals() outbound.MealRepository
	Users() outbound.UserRepository
	Notifications() outbound.NotificationRepository
	Threads() outbound.ChatThreadRepository

	// Collect buffers domain events for post-commit publication.
	// Handlers drain aggregates into here before returning.
	Collect(events ...shared.DomainEvent)
}

// TxRunner opens a unit of work around fn. A non-nil error from fn
// rolls the transaction back and discards collected events.
type TxRunner interface {
	InTx(ctx context.Context, fn func(uow UnitOfWork) error) ([]shared.DomainEvent, error)
}
