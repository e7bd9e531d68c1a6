// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesSeen           prometheus.Counter
	CommandsSucceeded      prometheus.Counter
	CommandsRejected       *prometheus.CounterVec
	SoundRequestsGranted   prometheus.Counter
	SoundRequestsDenied    prometheus.Counter
	SoundPlaybackFailures  prometheus.Counter
	PayoutTicks            prometheus.Counter
	PayoutAccountsCredited prometheus.Counter
	PayoutAmountCredited   prometheus.Counter
	RefundsIssued          prometheus.Counter

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	AccountsGauge  prometheus.Gauge
	SoundBusyGauge prometheus.Gauge // 1=playing, 0=idle
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_messages_seen_total", Help: "Inbound chat messages observed"})
		CommandsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "commands_succeeded_total", Help: "Command invocations that committed"})
		CommandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{Name: "commands_rejected_total", Help: "Command invocations rejected, by pipeline stage"}, []string{"stage"})
		SoundRequestsGranted = promauto.NewCounter(prometheus.CounterOpts{Name: "sound_requests_granted_total", Help: "Playback requests granted by the gate"})
		SoundRequestsDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "sound_requests_denied_total", Help: "Playback requests denied by the gate"})
		SoundPlaybackFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "sound_playback_failures_total", Help: "Playback attempts that errored after a grant"})
		PayoutTicks = promauto.NewCounter(prometheus.CounterOpts{Name: "payout_ticks_total", Help: "Payout scheduler ticks"})
		PayoutAccountsCredited = promauto.NewCounter(prometheus.CounterOpts{Name: "payout_accounts_credited_total", Help: "Accounts credited across all payout ticks"})
		PayoutAmountCredited = promauto.NewCounter(prometheus.CounterOpts{Name: "payout_amount_credited_total", Help: "Total currency credited by the payout scheduler"})
		RefundsIssued = promauto.NewCounter(prometheus.CounterOpts{Name: "refunds_issued_total", Help: "Command costs refunded after a denied side effect"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "command_execution_duration_seconds", Help: "Command pipeline duration seconds", Buckets: prometheus.DefBuckets})
		AccountsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "currency_accounts", Help: "Known currency accounts"})
		SoundBusyGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "sound_busy", Help: "Sound slot busy=1 idle=0"})
	})
}

// RecordRejection increments the rejection counter for a pipeline stage.
func RecordRejection(stage string) {
	if CommandsRejected != nil {
		CommandsRejected.WithLabelValues(stage).Inc()
	}
}

// SetAccounts records the current number of known accounts.
func SetAccounts(n int) {
	if AccountsGauge != nil {
		AccountsGauge.Set(float64(n))
	}
}

// SetSoundBusy sets the sound gauge to 1 if busy else 0.
func SetSoundBusy(busy bool) {
	if SoundBusyGauge != nil {
		if busy {
			SoundBusyGauge.Set(1)
		} else {
			SoundBusyGauge.Set(0)
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
