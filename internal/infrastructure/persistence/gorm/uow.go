package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/domain/shared"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// TxRunner opens a database transaction per command and hands the
// handler transaction-scoped repositories. Events collected during the
// transaction are returned only on commit; a rollback discards them.
type TxRunner struct {
	db *gorm.DB
}

// NewTxRunner creates the transaction runner.
func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) InTx(ctx context.Context, fn func(uow bus.UnitOfWork) error) ([]shared.DomainEvent, error) {
	uow := &unitOfWork{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		uow.meals = NewMealRepository(tx)
		uow.users = NewUserRepository(tx)
		uow.notifications = NewNotificationRepository(tx)
		uow.threads = NewChatThreadRepository(tx)
		return fn(uow)
	})
	if err != nil {
		return nil, err
	}
	return uow.events, nil
}

type unitOfWork struct {
	meals         outbound.MealRepository
	users         outbound.UserRepository
	notifications outbound.NotificationRepository
	threads       outbound.ChatThreadRepository
	events        []shared.DomainEvent
}

func (u *unitOfWork) Meals() outbound.MealRepository                 { return u.meals }
func (u *unitOfWork) Users() outbound.UserRepository                 { return u.users }
func (u *unitOfWork) Notifications() outbound.NotificationRepository { return u.notifications }
func (u *unitOfWork) Threads() outbound.ChatThreadRepository         { return u.threads }

func (u *unitOfWork) Collect(events ...shared.DomainEvent) {
	u.events = append(u.events, events...)
}
