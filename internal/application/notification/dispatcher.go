// Package notification runs the scheduled reminder dispatcher: a
// minute ticker that matches each user's timezone-local reminder
// configuration against the wall clock and fans deliveries out to
// their active devices.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nutrisnap/v2/internal/domain/user"
	"github.com/nutrisnap/v2/internal/ports/outbound"
)

// Config bounds the dispatcher's concurrency and pacing.
type Config struct {
	TickInterval time.Duration
	Workers      int
	QueueSize    int
	PushTimeout  time.Duration
	SendsPerSec  float64
}

// DefaultConfig returns production pacing.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Minute,
		Workers:      8,
		QueueSize:    256,
		PushTimeout:  10 * time.Second,
		SendsPerSec:  50,
	}
}

const lastFiredTTL = 48 * time.Hour

// scheduledCategories are the minute-of-day reminders; water is
// interval-based and handled separately.
var scheduledCategories = []user.NotificationCategory{
	user.CategoryBreakfast,
	user.CategoryLunch,
	user.CategoryDinner,
	user.CategorySleep,
}

var categoryMessages = map[user.NotificationCategory]outbound.PushMessage{
	user.CategoryBreakfast: {Title: "Breakfast time", Body: "Snap your breakfast to keep your streak going."},
	user.CategoryLunch:     {Title: "Lunch reminder", Body: "Don't forget to log your lunch."},
	user.CategoryDinner:    {Title: "Dinner reminder", Body: "Log your dinner before the day ends."},
	user.CategorySleep:     {Title: "Wind down", Body: "Time to get ready for bed."},
	user.CategoryWater:     {Title: "Hydration check", Body: "Have a glass of water."},
}

type delivery struct {
	userID   uuid.UUID
	category user.NotificationCategory
}

// Dispatcher owns the ticker loop and the delivery worker pool.
type Dispatcher struct {
	prefs   outbound.NotificationRepository
	cache   outbound.CacheStore
	push    outbound.PushSender
	metrics outbound.Metrics
	clock   outbound.Clock
	logger  *zap.Logger
	cfg     Config
	limiter *rate.Limiter

	// lastWater is a latency cache over the notif:last_water keys; it is
	// lost on restart and rebuilt from Redis on the next tick.
	mu        sync.Mutex
	lastWater map[uuid.UUID]time.Time

	queue chan delivery
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewDispatcher creates the dispatcher; Run starts it.
func NewDispatcher(
	prefs outbound.NotificationRepository,
	cache outbound.CacheStore,
	push outbound.PushSender,
	metrics outbound.Metrics,
	clock outbound.Clock,
	logger *zap.Logger,
	cfg Config,
) *Dispatcher {
	if cfg.TickInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Dispatcher{
		prefs:     prefs,
		cache:     cache,
		push:      push,
		metrics:   metrics,
		clock:     clock,
		logger:    logger.Named("notification"),
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SendsPerSec), int(cfg.SendsPerSec)),
		lastWater: make(map[uuid.UUID]time.Time),
		queue:     make(chan delivery, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Run blocks, ticking every minute until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.Close()
			return ctx.Err()
		case <-ticker.C:
			d.tick(ctx, d.clock.Now())
		}
	}
}

// Close stops accepting work and waits for in-flight deliveries. The
// queue channel is never closed; enqueue and the workers both observe
// done instead, so a tick racing shutdown cannot send on a closed
// channel.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.done)
		d.wg.Wait()
	})
}

// tick matches every enabled preference record against the current
// minute. A store read failure skips the tick; the next one retries.
func (d *Dispatcher) tick(ctx context.Context, now time.Time) {
	prefs, err := d.prefs.ListEnabledPrefs(ctx)
	if err != nil {
		d.logger.Warn("skipping tick, preference listing failed", zap.Error(err))
		return
	}

	for _, pref := range prefs {
		loc, err := time.LoadLocation(pref.Timezone)
		if err != nil {
			d.logger.Warn("invalid timezone in preferences",
				zap.String("user_id", pref.UserID.String()),
				zap.String("timezone", pref.Timezone))
			continue
		}
		local := now.In(loc)
		minute := local.Hour()*60 + local.Minute()

		for _, category := range scheduledCategories {
			if !pref.CategoryEnabled(category) {
				continue
			}
			target, ok := pref.MinuteFor(category)
			if !ok || minute < target || minute > target+1 {
				continue
			}
			if d.claimScheduled(ctx, pref.UserID, category, local) {
				d.enqueue(delivery{userID: pref.UserID, category: category})
			}
		}

		if pref.CategoryEnabled(user.CategoryWater) && d.claimWater(ctx, pref, now) {
			d.enqueue(delivery{userID: pref.UserID, category: user.CategoryWater})
		}
	}
}

// claimScheduled takes the once-per-local-day slot for a category. The
// SetNX key survives restarts, so a mid-tick crash cannot double-send.
func (d *Dispatcher) claimScheduled(ctx context.Context, userID uuid.UUID, category user.NotificationCategory, local time.Time) bool {
	key := fmt.Sprintf("notif:last_fired:%s:%s:%s", userID, category, local.Format("2006-01-02"))
	ok, err := d.cache.SetNX(ctx, key, []byte("1"), lastFiredTTL)
	if err != nil {
		d.logger.Warn("last-fired claim failed, holding delivery",
			zap.String("user_id", userID.String()),
			zap.String("category", string(category)),
			zap.Error(err))
		return false
	}
	return ok
}

// claimWater checks the per-user interval, consulting the in-memory
// map first and Redis when the map is cold.
func (d *Dispatcher) claimWater(ctx context.Context, pref user.NotificationPrefs, now time.Time) bool {
	interval := time.Duration(pref.WaterIntervalHours) * time.Hour

	d.mu.Lock()
	last, cached := d.lastWater[pref.UserID]
	d.mu.Unlock()
	if cached && now.Sub(last) < interval {
		return false
	}

	key := fmt.Sprintf("notif:last_water:%s", pref.UserID)
	if raw, err := d.cache.Get(ctx, key); err == nil {
		if ts, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
			last = time.Unix(ts, 0)
			d.mu.Lock()
			d.lastWater[pref.UserID] = last
			d.mu.Unlock()
			if now.Sub(last) < interval {
				return false
			}
		}
	} else if !errors.Is(err, outbound.ErrCacheMiss) {
		d.logger.Warn("water interval read failed, holding delivery",
			zap.String("user_id", pref.UserID.String()), zap.Error(err))
		return false
	}

	if err := d.cache.Set(ctx, key, []byte(strconv.FormatInt(now.Unix(), 10)), lastFiredTTL); err != nil {
		d.logger.Warn("water interval write failed, holding delivery",
			zap.String("user_id", pref.UserID.String()), zap.Error(err))
		return false
	}
	d.mu.Lock()
	d.lastWater[pref.UserID] = now
	d.mu.Unlock()
	return true
}

func (d *Dispatcher) enqueue(job delivery) {
	select {
	case <-d.done:
		return
	default:
	}
	select {
	case d.queue <- job:
	case <-d.done:
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case job := <-d.queue:
			d.deliver(ctx, job)
		}
	}
}

// deliver multicasts one reminder to every active device, deactivating
// tokens the provider reports as dead.
func (d *Dispatcher) deliver(ctx context.Context, job delivery) {
	tokens, err := d.prefs.ActiveTokens(ctx, job.userID)
	if err != nil {
		d.logger.Warn("token listing failed",
			zap.String("user_id", job.userID.String()), zap.Error(err))
		d.metrics.NotificationDispatched(string(job.category), "error")
		return
	}
	if len(tokens) == 0 {
		d.metrics.NotificationDispatched(string(job.category), "no_devices")
		return
	}

	msg := categoryMessages[job.category]
	msg.Data = map[string]string{"category": string(job.category)}

	targets := make([]string, 0, len(tokens))
	for _, token := range tokens {
		targets = append(targets, token.Token)
	}
	if err := d.limiter.WaitN(ctx, len(targets)); err != nil {
		return
	}

	// One timeout per multicast, not per device.
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.PushTimeout)
	results, err := d.push.SendMulticast(sendCtx, targets, msg)
	cancel()
	if err != nil {
		d.logger.Warn("push multicast failed",
			zap.String("user_id", job.userID.String()),
			zap.String("category", string(job.category)),
			zap.Error(err))
		d.metrics.NotificationDispatched(string(job.category), "error")
		return
	}

	outcome := "sent"
	for _, res := range results {
		switch {
		case errors.Is(res.Err, outbound.ErrInvalidPushToken):
			if derr := d.prefs.DeactivateToken(ctx, res.Token); derr != nil {
				d.logger.Warn("token deactivation failed", zap.Error(derr))
			}
		case res.Err != nil:
			outcome = "error"
			d.logger.Warn("push send failed",
				zap.String("user_id", job.userID.String()),
				zap.String("category", string(job.category)),
				zap.Error(res.Err))
		}
	}
	d.metrics.NotificationDispatched(string(job.category), outcome)
}
