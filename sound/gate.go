// Package sound arbitrates the single audio slot and plays command sounds.
// The system can only produce one audible stream at a time, so the gate is a
// process-wide single-slot flag with a configurable interruption policy, not
// a per-command resource.
package sound

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/onnwee/chat-tender/telemetry"
)

// Result is the outcome of a playback request.
type Result struct {
	Granted bool
	Reason  string
	// Refund tells the caller to return an already-deducted command cost.
	// Configuration errors (empty/missing file) do not refund; contention
	// denials do.
	Refund bool
	// ShowMessage mirrors the configured block-message flag on contention
	// denials.
	ShowMessage bool
}

// Gate is the single-slot playback arbiter. Busy is set on a granted request
// and cleared by NotifyEnded/ForceStop from the playback side.
type Gate struct {
	mu   sync.Mutex
	busy bool

	allowInterruption bool
	showBlockMessage  bool

	// soundDir anchors relative resource names. Empty means resources are
	// used as given.
	soundDir string

	// resolve reports whether a resource reference points at a playable
	// file. Overridable in tests.
	resolve func(string) bool
}

// NewGate returns a gate with the given interruption policy.
func NewGate(allowInterruption, showBlockMessage bool) *Gate {
	return &Gate{
		allowInterruption: allowInterruption,
		showBlockMessage:  showBlockMessage,
		resolve:           fileExists,
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// SetSoundDir sets the directory relative resource names resolve against.
func (g *Gate) SetSoundDir(dir string) { g.soundDir = dir }

// Path returns the filesystem path for a resource reference, anchoring
// relative names under the configured sound directory.
func (g *Gate) Path(resource string) string {
	if g.soundDir == "" || filepath.IsAbs(resource) {
		return resource
	}
	return filepath.Join(g.soundDir, resource)
}

// SetPolicy updates the interruption policy at runtime.
func (g *Gate) SetPolicy(allowInterruption, showBlockMessage bool) {
	g.mu.Lock()
	g.allowInterruption = allowInterruption
	g.showBlockMessage = showBlockMessage
	g.mu.Unlock()
}

// Busy reports whether a sound is in flight.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Request asks for the playback slot. A grant marks the gate busy; the caller
// is responsible for starting playback and eventually calling NotifyEnded.
// When busy and interruption is allowed, the new request preempts — the gate
// stays busy and the caller is expected to stop the current sound. When busy
// and interruption is disallowed, the request is denied with Refund set.
//
// An empty or unresolvable resource is a configuration error: denied
// immediately, no refund.
func (g *Gate) Request(resource string, volume int) Result {
	if strings.TrimSpace(resource) == "" {
		return Result{Reason: "sound file path is empty"}
	}
	if !g.resolve(g.Path(resource)) {
		return Result{Reason: fmt.Sprintf("sound file does not exist: %s", resource)}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy && !g.allowInterruption {
		return Result{
			Reason:      "another sound is currently playing",
			Refund:      true,
			ShowMessage: g.showBlockMessage,
		}
	}
	g.busy = true
	telemetry.SetSoundBusy(true)
	return Result{Granted: true}
}

// NotifyEnded clears the busy flag after playback finishes or fails.
// Idempotent.
func (g *Gate) NotifyEnded() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
	telemetry.SetSoundBusy(false)
}

// ForceStop clears the busy flag unconditionally. Idempotent.
func (g *Gate) ForceStop() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
	telemetry.SetSoundBusy(false)
}
