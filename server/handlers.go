// Package server exposes the HTTP admin API handlers.
package server

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/chat-tender/command"
	"github.com/onnwee/chat-tender/currency"
)

const (
	// Maximum number of OAuth states to keep in memory
	maxOAuthStates = 10000
)

// Deps wires the running bot's state into the HTTP handlers.
type Deps struct {
	DB       *sql.DB
	Registry *command.Registry
	Ledger   *currency.Ledger

	// Settings returns the current currency settings snapshot.
	Settings func() currency.Settings
	// ApplySettings persists new settings and restarts the payout scheduler.
	ApplySettings func(ctx context.Context, s currency.Settings) error

	IsLive           func() bool
	SoundBusy        func() bool
	SchedulerRunning func() bool

	// ResetCooldowns clears cooldown state for a command after an edit or
	// delete; nil when no chat engine is running.
	ResetCooldowns func(key string)

	// OAuth is the Twitch authorization-code config; nil disables /auth routes.
	OAuth *oauth2.Config
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	deps       Deps
	ctx        context.Context
	stateStore map[string]time.Time
	stateMu    sync.RWMutex
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, deps Deps) *Handlers {
	return &Handlers{
		deps:       deps,
		ctx:        ctx,
		stateStore: make(map[string]time.Time),
	}
}

// cleanExpiredStates removes expired OAuth states from the store.
// This should be called with stateMu locked.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, expiry := range h.stateStore {
		if now.After(expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState adds a new OAuth state to the store with cleanup if needed.
func (h *Handlers) addOAuthState(state string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	// Clean expired states periodically to prevent unbounded growth
	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}

	// If we're still over the limit after cleanup, refuse to add more
	if len(h.stateStore) >= maxOAuthStates {
		// Don't add the state - this will cause the OAuth flow to fail
		// which is better than a memory exhaustion attack
		return
	}

	h.stateStore[state] = expiry
}

// consumeOAuthState validates and removes a state token, reporting whether it
// was present and unexpired.
func (h *Handlers) consumeOAuthState(state string) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	exp, ok := h.stateStore[state]
	if !ok {
		return false
	}
	delete(h.stateStore, state)
	return time.Now().Before(exp)
}
