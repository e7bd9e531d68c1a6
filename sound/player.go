package sound

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/hajimehoshi/oto/v2"

	"github.com/onnwee/chat-tender/telemetry"
)

// Player decodes and plays MP3 sound files. It is the playback collaborator
// behind the gate: a granted request is handed to Start, which plays
// asynchronously and calls gate.NotifyEnded when the audio finishes or fails.
// Starting a new sound interrupts the current one (the gate has already
// granted preemption by the time Start is called).
type Player struct {
	gate *Gate

	mu            sync.Mutex
	cancelCurrent context.CancelFunc
}

// NewPlayer returns a player bound to the gate it reports completion to.
func NewPlayer(gate *Gate) *Player {
	return &Player{gate: gate}
}

// Start begins asynchronous playback of path at volume 0-100, stopping any
// sound already in flight. It returns once playback has been handed off.
func (p *Player) Start(ctx context.Context, path string, volume int) {
	p.mu.Lock()
	if p.cancelCurrent != nil {
		p.cancelCurrent()
	}
	playCtx, cancel := context.WithCancel(ctx)
	p.cancelCurrent = cancel
	p.mu.Unlock()

	go func() {
		defer p.gate.NotifyEnded()
		if err := play(playCtx, path, volume); err != nil && playCtx.Err() == nil {
			slog.Warn("sound playback failed", slog.String("file", path), slog.Any("err", err))
			telemetry.SoundPlaybackFailures.Inc()
		}
	}()
}

// Stop interrupts the current sound, if any, and clears the gate.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.cancelCurrent != nil {
		p.cancelCurrent()
		p.cancelCurrent = nil
	}
	p.mu.Unlock()
	p.gate.ForceStop()
}

func play(ctx context.Context, path string, volume int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sound file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close sound file", slog.Any("err", err))
		}
	}()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("mp3 decoder: %w", err)
	}

	otoCtx, ready, err := oto.NewContext(decoder.SampleRate(), 2, 2)
	if err != nil {
		return fmt.Errorf("oto context: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(decoder)
	defer func() {
		if err := player.Close(); err != nil {
			slog.Warn("failed to close audio player", slog.Any("err", err))
		}
	}()
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	player.SetVolume(float64(volume) / 100)
	player.Play()

	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
