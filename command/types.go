// Package command implements the chat-command engine: definitions, permission
// resolution, cooldown tracking, and the execution pipeline that turns an
// inbound chat message into an authorized, rate-limited, cost-accounted action.
package command

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Level is a user or command permission level. Higher levels include lower ones.
type Level int

const (
	Everyone Level = iota
	Moderator
	Admin
)

// String returns the canonical name used in persistence and the admin API.
func (l Level) String() string {
	switch l {
	case Moderator:
		return "moderator"
	case Admin:
		return "admin"
	default:
		return "everyone"
	}
}

// ParseLevel maps a stored name back to a Level. Unknown values resolve to
// Everyone rather than failing, matching how definitions are loaded.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moderator", "mod":
		return Moderator
	case "admin", "broadcaster":
		return Admin
	default:
		return Everyone
	}
}

// Definition is a user-defined chat command. Definitions are created and
// edited through the admin API and persisted by the db package; the only
// field that changes outside edits is Count, advanced in the Registry on
// successful execution.
type Definition struct {
	// Command is the literal trigger text as entered, e.g. "!hello".
	Command string `json:"command"`

	Permission Level  `json:"permission"`
	Info       string `json:"info,omitempty"`
	Group      string `json:"group,omitempty"`

	// Response is an optional chat reply template; see Substitute for the
	// supported $variables.
	Response string `json:"response,omitempty"`

	// CooldownSeconds is the command-global cooldown; UserCooldownSeconds is
	// per invoking user. Zero means never blocked.
	CooldownSeconds     int `json:"cooldown"`
	UserCooldownSeconds int `json:"user_cooldown"`

	// Cost in currency units, deducted before the side effect so a later
	// failure can refund it.
	Cost float64 `json:"cost"`

	Count   int  `json:"count"`
	Enabled bool `json:"enabled"`

	// SoundFile is an optional path to an audio resource; Volume is 0-100.
	SoundFile string `json:"sound_file,omitempty"`
	Volume    int    `json:"volume"`
}

// Key returns the definition's normalized identity.
func (d *Definition) Key() string { return NormalizeKey(d.Command) }

// NormalizeKey derives a command's canonical identity from its literal text:
// one leading trigger character stripped, trimmed, lowercased. Any single
// non-alphanumeric lead rune counts as the trigger, so "!hello", "?hello",
// and "hello" all share one key regardless of the configured prefix.
func NormalizeKey(raw string) string {
	s := strings.TrimSpace(raw)
	if r, size := utf8.DecodeRuneInString(s); size > 0 && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
		s = s[size:]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
