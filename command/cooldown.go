package command

import (
	"math"
	"strings"
	"sync"
	"time"
)

// CooldownScope identifies which cooldown table blocked an invocation.
type CooldownScope int

const (
	ScopeGlobal CooldownScope = iota
	ScopeUser
)

func (s CooldownScope) String() string {
	if s == ScopeUser {
		return "user"
	}
	return "global"
}

// CooldownResult is the answer to "may this command run now".
type CooldownResult struct {
	Blocked bool
	Scope   CooldownScope
	// Remaining is whole seconds until the cooldown expires, rounded up.
	Remaining int
}

// CooldownTracker keeps last-execution instants per command and per
// command+user. Both tables live in flat maps with composite keys under a
// single mutex; the critical sections are map lookups only, so one lock gives
// key-level atomicity without serializing anything slow.
//
// State is advanced only via Commit, which callers invoke after the whole
// execution pipeline succeeds. A check that is later rejected downstream
// (insufficient funds, blocked sound) must therefore never move a timestamp.
// Tables are in-memory only and reset on process restart.
type CooldownTracker struct {
	mu   sync.Mutex
	last map[string]time.Time

	now func() time.Time
}

// NewCooldownTracker returns an empty tracker using wall-clock time.
func NewCooldownTracker() *CooldownTracker {
	return &CooldownTracker{last: make(map[string]time.Time), now: time.Now}
}

// userKey builds the composite per-command-per-user key. NUL can't appear in
// a command key or login name, so the composite is collision-free.
func userKey(commandKey, username string) string {
	return commandKey + "\x00" + strings.ToLower(username)
}

// Check reports whether the command may run now for the given user. The
// global table is consulted first, then the per-user table. A cooldown of 0
// never blocks.
func (t *CooldownTracker) Check(commandKey, username string, globalSeconds, userSeconds int) CooldownResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	if globalSeconds > 0 {
		if last, ok := t.last[commandKey]; ok {
			if rem := remaining(now, last, globalSeconds); rem > 0 {
				return CooldownResult{Blocked: true, Scope: ScopeGlobal, Remaining: rem}
			}
		}
	}
	if userSeconds > 0 {
		if last, ok := t.last[userKey(commandKey, username)]; ok {
			if rem := remaining(now, last, userSeconds); rem > 0 {
				return CooldownResult{Blocked: true, Scope: ScopeUser, Remaining: rem}
			}
		}
	}
	return CooldownResult{}
}

// Commit records a successful execution instant in both tables.
func (t *CooldownTracker) Commit(commandKey, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.last[commandKey] = now
	t.last[userKey(commandKey, username)] = now
}

// Reset clears both tables. Used when a definition's cooldown is edited.
func (t *CooldownTracker) Reset(commandKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, commandKey)
	prefix := commandKey + "\x00"
	for k := range t.last {
		if strings.HasPrefix(k, prefix) {
			delete(t.last, k)
		}
	}
}

func remaining(now, last time.Time, cooldownSeconds int) int {
	elapsed := now.Sub(last).Seconds()
	rem := float64(cooldownSeconds) - elapsed
	if rem <= 0 {
		return 0
	}
	return int(math.Ceil(rem))
}
