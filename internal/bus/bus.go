// Package bus is the in-process mediator. Commands run inside a unit of
// work; queries run outside one. Domain events raised by a command are
// published to subscribers only after its transaction commits.
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/nutrisnap/v2/pkg/errors"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// Command is a state-changing request. Names are dotted lowercase,
// e.g. "meal.upload_image".
type Command interface {
	CommandName() string
}

// Query is a read-only request.
type Query interface {
	QueryName() string
}

// UserScoped is implemented by requests carrying an acting user, so
// executions can be logged with a user id.
type UserScoped interface {
	ActorID() uuid.UUID
}

type commandHandler func(ctx context.Context, uow UnitOfWork, cmd Command) (any, error)
type queryHandler func(ctx context.Context, q Query) (any, error)

// Bus routes requests to their single handler.
type Bus struct {
	runner    TxRunner
	publisher *Publisher
	logger    *zap.Logger
	metrics   outbound.Metrics
	tracer    trace.Tracer

	mu       sync.Mutex
	frozen   bool
	commands map[reflect.Type]commandHandler
	queries  map[reflect.Type]queryHandler
}

// New creates a bus. Registration happens during container wiring and
// must finish with Freeze before the first dispatch.
func New(runner TxRunner, publisher *Publisher, logger *zap.Logger, metrics outbound.Metrics) *Bus {
	return &Bus{
		runner:    runner,
		publisher: publisher,
		logger:    logger.Named("bus"),
		metrics:   metrics,
		tracer:    otel.Tracer("nutrisnap/bus"),
		commands:  make(map[reflect.Type]commandHandler),
		queries:   make(map[reflect.Type]queryHandler),
	}
}

// RegisterCommand binds the handler for command type C. Registering the
// same type twice, or registering after Freeze, panics: both are wiring
// bugs that must fail at startup.
func RegisterCommand[C Command](b *Bus, handler func(ctx context.Context, uow UnitOfWork, cmd C) (any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(*new(C))
	if b.frozen {
		panic(fmt.Sprintf("bus: register %s after freeze", t))
	}
	if _, dup := b.commands[t]; dup {
		panic(fmt.Sprintf("bus: duplicate command handler for %s", t))
	}
	b.commands[t] = func(ctx context.Context, uow UnitOfWork, cmd Command) (any, error) {
		return handler(ctx, uow, cmd.(C))
	}
}

// RegisterQuery binds the handler for query type Q.
func RegisterQuery[Q Query](b *Bus, handler func(ctx context.Context, q Q) (any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(*new(Q))
	if b.frozen {
		panic(fmt.Sprintf("bus: register %s after freeze", t))
	}
	if _, dup := b.queries[t]; dup {
		panic(fmt.Sprintf("bus: duplicate query handler for %s", t))
	}
	b.queries[t] = func(ctx context.Context, q Query) (any, error) {
		return handler(ctx, q.(Q))
	}
}

// Subscribe registers an event subscriber by event name.
func (b *Bus) Subscribe(eventName string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		panic(fmt.Sprintf("bus: subscribe %q after freeze", eventName))
	}
	b.publisher.subscribe(eventName, sub)
}

// Freeze seals the routing tables. Called once after wiring.
func (b *Bus) Freeze() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen = true
}

// Send dispatches a command inside a unit of work. Collected events are
// handed to the publisher only when the transaction committed.
func (b *Bus) Send(ctx context.Context, cmd Command) (any, error) {
	handler, ok := b.commands[reflect.TypeOf(cmd)]
	if !ok {
		return nil, apperrors.NewInternal(fmt.Sprintf("no handler for command %s", cmd.CommandName()))
	}

	ctx, span := b.tracer.Start(ctx, "command "+cmd.CommandName())
	defer span.End()

	start := time.Now()
	var result any
	events, err := b.runner.InTx(ctx, func(uow UnitOfWork) error {
		var herr error
		result, herr = handler(ctx, uow, cmd)
		return herr
	})
	if err == nil {
		b.publisher.Publish(events...)
	}

	b.observe(span, "command", cmd.CommandName(), cmd, time.Since(start), err)
	return result, err
}

// Ask dispatches a query. No transaction, no events.
func (b *Bus) Ask(ctx context.Context, q Query) (any, error) {
	handler, ok := b.queries[reflect.TypeOf(q)]
	if !ok {
		return nil, apperrors.NewInternal(fmt.Sprintf("no handler for query %s", q.QueryName()))
	}

	ctx, span := b.tracer.Start(ctx, "query "+q.QueryName())
	defer span.End()

	start := time.Now()
	result, err := handler(ctx, q)
	b.observe(span, "query", q.QueryName(), q, time.Since(start), err)
	return result, err
}

// observe emits the per-execution structured log line and metrics.
// Executions over a second are logged at Warn.
func (b *Bus) observe(span trace.Span, kind, name string, req any, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	b.metrics.HandlerExecuted(name, outcome, duration)

	fields := []zap.Field{
		zap.String("request_id", span.SpanContext().TraceID().String()),
		zap.String("kind", kind),
		zap.String("name", name),
		zap.Int64("duration_ms", duration.Milliseconds()),
		zap.String("outcome", outcome),
	}
	if scoped, ok := req.(UserScoped); ok {
		fields = append(fields, zap.String("user_id", scoped.ActorID().String()))
	}
	if err != nil {
		fields = append(fields, zap.String("error_code", string(apperrors.GetCode(err))), zap.Error(err))
	}

	switch {
	case duration > time.Second:
		b.logger.Warn("request handled slowly", fields...)
	case err != nil:
		b.logger.Warn("request failed", fields...)
	default:
		b.logger.Info("request handled", fields...)
	}
}
