package currency

import "sync"

// Settings are the global currency tunables. Read-mostly; the db package owns
// persistence and the admin API owns edits. Toggling AccrualEnabled at
// runtime restarts the payout scheduler.
type Settings struct {
	AccrualEnabled      bool `json:"accrual_enabled"`
	ShowServiceMessages bool `json:"show_service_messages"`

	// Command is the chat trigger for the balance builtin, e.g. "!points".
	Command string `json:"command"`
	// Name is the currency's display name used in chat replies.
	Name string `json:"name"`

	// Per-user base payout per elapsed interval, by stream state.
	LivePayout    float64 `json:"live_payout"`
	OfflinePayout float64 `json:"offline_payout"`

	// Accrual interval lengths in minutes, by stream state.
	OnlineIntervalMinutes  int `json:"online_interval_minutes"`
	OfflineIntervalMinutes int `json:"offline_interval_minutes"`

	// RegularBonus is a flat extra credited per interval on top of the base
	// payout.
	RegularBonus float64 `json:"regular_bonus"`

	// TrackOfflineHours counts offline intervals toward accumulated hours.
	TrackOfflineHours bool `json:"track_offline_hours"`
}

// SettingsStore holds the live Settings snapshot shared between the
// dispatcher, the payout scheduler, and the admin API.
type SettingsStore struct {
	mu sync.RWMutex
	s  Settings
}

// NewSettingsStore seeds the store with the given settings.
func NewSettingsStore(s Settings) *SettingsStore {
	return &SettingsStore{s: s}
}

// Get returns the current snapshot.
func (st *SettingsStore) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Set replaces the snapshot.
func (st *SettingsStore) Set(s Settings) {
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
}

// DefaultSettings mirror a fresh installation: accrual on, 1 point per 5
// minutes live, nothing offline.
func DefaultSettings() Settings {
	return Settings{
		AccrualEnabled:         true,
		Command:                "!points",
		Name:                   "Points",
		LivePayout:             1,
		OfflinePayout:          0,
		OnlineIntervalMinutes:  5,
		OfflineIntervalMinutes: 15,
	}
}
