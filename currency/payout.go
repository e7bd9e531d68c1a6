package currency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

// LiveFunc reports whether the stream is currently live.
type LiveFunc func(ctx context.Context) bool

// PersistFunc saves a ledger snapshot. Called only after a tick that updated
// at least one account.
type PersistFunc func(ctx context.Context, accounts []Account) error

// Scheduler credits currency to all known accounts on a fixed wall-clock
// cadence, independent of chat traffic. Each account tracks its own
// last-payout instant; a tick credits floor(elapsed/interval) whole intervals
// and advances that instant by exactly the intervals consumed, never to
// "now", so tick jitter can't drop remainders or drift the payout phase.
//
// Ticks run on a single goroutine and therefore never overlap. Stop cancels
// the loop and waits for an in-flight tick to finish; Start after Stop is
// valid (the accrual setting can be toggled at runtime).
type Scheduler struct {
	ledger   *Ledger
	settings func() Settings
	isLive   LiveFunc
	persist  PersistFunc

	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler wires a payout scheduler. tick <= 0 defaults to one minute.
// persist may be nil when snapshots are saved elsewhere.
func NewScheduler(ledger *Ledger, settings func() Settings, isLive LiveFunc, persist PersistFunc, tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Scheduler{
		ledger:   ledger,
		settings: settings,
		isLive:   isLive,
		persist:  persist,
		interval: tick,
		now:      time.Now,
	}
}

// Start launches the scheduler loop. No-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	slog.Info("payout scheduler starting", slog.Duration("tick", s.interval))
	go s.run(runCtx, done)
}

// Stop halts the scheduler and blocks until any in-flight tick has finished,
// so a tick can never write to the ledger mid-teardown. No-op when stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("payout scheduler stopped")
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes one payout pass. Exposed for the loop and for tests; errors
// are logged per account, never propagated, so a bad account can't abort the
// batch or crash the loop.
func (s *Scheduler) Tick(ctx context.Context) {
	telemetry.PayoutTicks.Inc()

	cfg := s.settings()
	if !cfg.AccrualEnabled {
		return
	}
	live := s.isLive(ctx)
	payout := cfg.OfflinePayout
	intervalMinutes := cfg.OfflineIntervalMinutes
	if live {
		payout = cfg.LivePayout
		intervalMinutes = cfg.OnlineIntervalMinutes
	}
	if intervalMinutes <= 0 {
		return
	}
	if payout <= 0 && cfg.RegularBonus <= 0 {
		return
	}

	now := s.now()
	intervalLen := time.Duration(intervalMinutes) * time.Minute
	updated := 0
	var credited float64

	s.ledger.mu.RLock()
	accounts := make([]*account, 0, len(s.ledger.accounts))
	for _, a := range s.ledger.accounts {
		accounts = append(accounts, a)
	}
	s.ledger.mu.RUnlock()

	for _, a := range accounts {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("payout account processing panicked", slog.Any("recover", r))
				}
			}()
			a.mu.Lock()
			defer a.mu.Unlock()
			intervals := int(now.Sub(a.data.LastPayout) / intervalLen)
			if intervals <= 0 {
				return
			}
			total := float64(intervals) * (payout + cfg.RegularBonus)
			if total <= 0 {
				return
			}
			a.data.Points += total
			if live || cfg.TrackOfflineHours {
				a.data.Hours += float64(intervals*intervalMinutes) / 60.0
			}
			// Advance by whole intervals consumed, preserving the remainder
			// for the next tick.
			a.data.LastPayout = a.data.LastPayout.Add(time.Duration(intervals) * intervalLen)
			a.data.LastSeen = now
			credited += total
			updated++
		}()
	}

	if updated == 0 {
		return
	}
	telemetry.PayoutAccountsCredited.Add(float64(updated))
	telemetry.PayoutAmountCredited.Add(credited)
	if cfg.ShowServiceMessages {
		slog.Info("payout tick credited accounts",
			slog.Int("accounts", updated),
			slog.Bool("live", live),
			slog.Float64("payout_per_interval", payout),
			slog.Int("interval_minutes", intervalMinutes))
	}
	if s.persist != nil {
		if err := s.persist(ctx, s.ledger.Snapshot()); err != nil {
			slog.Warn("payout persist failed", slog.Any("err", err))
		}
	}
}
