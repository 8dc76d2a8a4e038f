package bus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nutrisnap/v2/internal/domain/shared"
)

// Subscriber handles one domain event. Errors are logged and swallowed;
// a failing subscriber never affects the command that raised the event
// or its sibling subscribers.
type Subscriber func(ctx context.Context, event shared.DomainEvent) error

type delivery struct {
	event shared.DomainEvent
	sub   Subscriber
}

// Publisher fans committed events out to subscribers on a fixed worker
// pool, decoupling subscriber latency from request latency.
type Publisher struct {
	logger  *zap.Logger
	timeout time.Duration

	mu   sync.RWMutex
	subs map[string][]Subscriber

	tasks chan delivery
	wg    sync.WaitGroup
	once  sync.Once
}

// NewPublisher starts workers goroutines draining a queue of the given
// capacity. Each delivery runs under its own timeout, detached from the
// originating request context.
func NewPublisher(logger *zap.Logger, workers, queueSize int, timeout time.Duration) *Publisher {
	p := &Publisher{
		logger:  logger.Named("events"),
		timeout: timeout,
		subs:    make(map[string][]Subscriber),
		tasks:   make(chan delivery, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Publisher) subscribe(eventName string, sub Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[eventName] = append(p.subs[eventName], sub)
}

// Publish enqueues one delivery per (event, subscriber) pair. Blocks
// when the queue is full rather than dropping events.
func (p *Publisher) Publish(events ...shared.DomainEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, event := range events {
		for _, sub := range p.subs[event.EventName()] {
			p.tasks <- delivery{event: event, sub: sub}
		}
	}
}

// Close stops accepting work and waits for in-flight deliveries.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for d := range p.tasks {
		p.deliver(d)
	}
}

func (p *Publisher) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("subscriber panicked",
				zap.String("event", d.event.EventName()),
				zap.Any("panic", r))
		}
	}()

	if err := d.sub(ctx, d.event); err != nil {
		p.logger.Warn("subscriber failed",
			zap.String("event", d.event.EventName()),
			zap.Error(err))
	}
}
