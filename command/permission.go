package command

import "strings"

// ModeratorSet is a case-insensitive set of moderator login names.
type ModeratorSet map[string]struct{}

// NewModeratorSet builds a set from login names, ignoring blanks and leading @.
func NewModeratorSet(names ...string) ModeratorSet {
	set := make(ModeratorSet, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(n), "@"))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Contains reports membership, case-insensitively.
func (m ModeratorSet) Contains(name string) bool {
	_, ok := m[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))]
	return ok
}

// Resolve maps a username to its permission level: the broadcaster (channel
// owner) is Admin, members of the moderator set are Moderator, everyone else
// is Everyone. Pure; always returns a value.
func Resolve(username, channel string, mods ModeratorSet) Level {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if name != "" && name == strings.ToLower(strings.TrimSpace(channel)) {
		return Admin
	}
	if mods.Contains(name) {
		return Moderator
	}
	return Everyone
}
