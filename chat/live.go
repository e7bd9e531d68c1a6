package chat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/onnwee/chat-tender/twitchapi"
)

// StreamsAPI is the slice of the Helix client the live poller needs.
type StreamsAPI interface {
	GetStreams(ctx context.Context, login string) ([]twitchapi.Stream, error)
}

// LiveStatus polls the channel's stream state and caches it. The payout
// scheduler reads IsLive on every tick; a poll failure keeps the last known
// state rather than flapping to offline.
type LiveStatus struct {
	api     StreamsAPI
	channel string
	live    atomic.Bool
}

// NewLiveStatus returns a status tracker for channel, initially offline.
func NewLiveStatus(api StreamsAPI, channel string) *LiveStatus {
	return &LiveStatus{api: api, channel: channel}
}

// IsLive reports the last polled stream state.
func (s *LiveStatus) IsLive() bool { return s.live.Load() }

// Run polls until the context is canceled. Intended to be started with go.
func (s *LiveStatus) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	slog.Info("live status poller starting", slog.String("channel", s.channel), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *LiveStatus) poll(ctx context.Context) {
	streams, err := s.api.GetStreams(ctx, s.channel)
	if err != nil {
		slog.Debug("live status poll failed", slog.Any("err", err))
		return
	}
	live := len(streams) > 0
	if s.live.Swap(live) != live {
		slog.Info("stream state changed", slog.String("channel", s.channel), slog.Bool("live", live))
	}
}
