// Package currency tracks the virtual currency: an in-memory ledger of
// accounts keyed by normalized username, and the payout scheduler that
// credits active users on a timed cadence. The ledger is the source of truth
// between explicit saves; the db package persists snapshots.
package currency

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Account is a currency account snapshot. Balance never goes negative from a
// debit; debits are refused, not clamped.
type Account struct {
	Username   string    `json:"username"`
	Points     float64   `json:"points"`
	Hours      float64   `json:"hours"`
	LastSeen   time.Time `json:"last_seen"`
	LastPayout time.Time `json:"last_payout"`
}

// account pairs the data with its own mutex so operations on different
// accounts never block each other.
type account struct {
	mu   sync.Mutex
	data Account
}

// Ledger is a thread-safe map of accounts. The outer RWMutex guards only map
// shape (insert/replace); per-account mutation happens under the account's
// mutex.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account

	now func() time.Time
}

// NewLedger returns an empty ledger using wall-clock time.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[string]*account), now: time.Now}
}

// Normalize reduces a username to its account identity: trimmed, leading @
// stripped, lowercased.
func Normalize(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// get returns the live account for username, or nil if absent.
func (l *Ledger) get(username string) *account {
	key := Normalize(username)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[key]
}

// getOrCreate returns the live account for username, creating it with a zero
// balance and both instants set to now. Idempotent under concurrency.
func (l *Ledger) getOrCreate(username string) *account {
	key := Normalize(username)
	l.mu.RLock()
	a := l.accounts[key]
	l.mu.RUnlock()
	if a != nil {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a = l.accounts[key]; a != nil {
		return a
	}
	now := l.now()
	a = &account{data: Account{Username: key, LastSeen: now, LastPayout: now}}
	l.accounts[key] = a
	return a
}

// GetOrCreate returns a snapshot of the account, creating it if absent.
func (l *Ledger) GetOrCreate(username string) Account {
	a := l.getOrCreate(username)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data
}

// Get returns a snapshot of the account and whether it exists. Never creates.
func (l *Ledger) Get(username string) (Account, bool) {
	a := l.get(username)
	if a == nil {
		return Account{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data, true
}

// Balance returns the account balance, or 0 for an unknown user. Read-only.
func (l *Ledger) Balance(username string) float64 {
	a := l.get(username)
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Points
}

// Credit adds amount (>= 0) to the account, creating it if absent, and
// returns the new balance. The balance is floored at zero so a bad caller
// can't drive it negative.
func (l *Ledger) Credit(username string, amount float64) float64 {
	a := l.getOrCreate(username)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.Points += amount
	if a.data.Points < 0 {
		a.data.Points = 0
	}
	a.data.LastSeen = l.now()
	return a.data.Points
}

// Debit subtracts amount from the account. It refuses (returns false, no
// mutation) when the account is missing or the balance is insufficient.
func (l *Ledger) Debit(username string, amount float64) bool {
	a := l.get(username)
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data.Points < amount {
		return false
	}
	a.data.Points -= amount
	a.data.LastSeen = l.now()
	return true
}

// Remove subtracts amount clamping the balance at zero, creating the account
// if absent, and returns the new balance. Used by the moderator revoke
// builtin, which clamps instead of refusing.
func (l *Ledger) Remove(username string, amount float64) float64 {
	a := l.getOrCreate(username)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.Points -= amount
	if a.data.Points < 0 {
		a.data.Points = 0
	}
	a.data.LastSeen = l.now()
	return a.data.Points
}

// Touch updates the account's last-seen instant, creating it if absent.
// Called for every chat message and every viewer-list refresh.
func (l *Ledger) Touch(username string) {
	if Normalize(username) == "" {
		return
	}
	a := l.getOrCreate(username)
	a.mu.Lock()
	a.data.LastSeen = l.now()
	a.mu.Unlock()
}

// Len returns the number of known accounts.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.accounts)
}

// Snapshot returns copies of all accounts sorted by username, for saving or
// listing.
func (l *Ledger) Snapshot() []Account {
	l.mu.RLock()
	live := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		live = append(live, a)
	}
	l.mu.RUnlock()
	out := make([]Account, 0, len(live))
	for _, a := range live {
		a.mu.Lock()
		out = append(out, a.data)
		a.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Replace swaps the ledger contents for the given accounts (bulk load).
func (l *Ledger) Replace(accounts []Account) {
	next := make(map[string]*account, len(accounts))
	for _, data := range accounts {
		data.Username = Normalize(data.Username)
		if data.Username == "" {
			continue
		}
		next[data.Username] = &account{data: data}
	}
	l.mu.Lock()
	l.accounts = next
	l.mu.Unlock()
}
