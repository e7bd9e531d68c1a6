package command

import (
	"testing"
	"time"
)

func newTestTracker(start time.Time) (*CooldownTracker, *time.Time) {
	now := start
	tr := NewCooldownTracker()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestCooldownZeroNeverBlocks(t *testing.T) {
	tr, _ := newTestTracker(time.Unix(1000, 0))
	for i := 0; i < 3; i++ {
		if res := tr.Check("greet", "alice", 0, 0); res.Blocked {
			t.Fatalf("iteration %d: zero cooldown blocked", i)
		}
		tr.Commit("greet", "alice")
	}
}

func TestCooldownGlobalBeforeUser(t *testing.T) {
	tr, now := newTestTracker(time.Unix(1000, 0))
	tr.Commit("greet", "alice")

	// Both cooldowns active: the global scope wins.
	res := tr.Check("greet", "alice", 30, 60)
	if !res.Blocked || res.Scope != ScopeGlobal {
		t.Fatalf("got %+v, want global block", res)
	}

	// Past the global window but inside the per-user window.
	*now = now.Add(31 * time.Second)
	res = tr.Check("greet", "alice", 30, 60)
	if !res.Blocked || res.Scope != ScopeUser {
		t.Fatalf("got %+v, want user block", res)
	}
	if res.Remaining != 29 {
		t.Fatalf("remaining = %d, want 29", res.Remaining)
	}

	// A different user feels only the global cooldown, which has passed.
	if res := tr.Check("greet", "bob", 30, 60); res.Blocked {
		t.Fatalf("bob blocked by alice's user cooldown: %+v", res)
	}
}

func TestCooldownRemainingRoundsUp(t *testing.T) {
	tr, now := newTestTracker(time.Unix(1000, 0))
	tr.Commit("greet", "alice")

	*now = now.Add(29*time.Second + 500*time.Millisecond)
	res := tr.Check("greet", "alice", 30, 0)
	if !res.Blocked {
		t.Fatal("expected block inside window")
	}
	if res.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1 (fractional seconds round up)", res.Remaining)
	}
}

func TestCooldownCheckDoesNotAdvance(t *testing.T) {
	tr, now := newTestTracker(time.Unix(1000, 0))
	tr.Commit("greet", "alice")

	// Repeated blocked checks must not push the expiry out.
	for i := 0; i < 5; i++ {
		*now = now.Add(time.Second)
		tr.Check("greet", "alice", 30, 0)
	}
	*now = time.Unix(1000, 0).Add(30 * time.Second)
	if res := tr.Check("greet", "alice", 30, 0); res.Blocked {
		t.Fatalf("cooldown still blocked after full window: %+v", res)
	}
}

func TestCooldownUserKeyCaseInsensitive(t *testing.T) {
	tr, _ := newTestTracker(time.Unix(1000, 0))
	tr.Commit("greet", "Alice")
	res := tr.Check("greet", "ALICE", 0, 60)
	if !res.Blocked || res.Scope != ScopeUser {
		t.Fatalf("got %+v, want user block regardless of case", res)
	}
}

func TestCooldownReset(t *testing.T) {
	tr, _ := newTestTracker(time.Unix(1000, 0))
	tr.Commit("greet", "alice")
	tr.Commit("other", "alice")
	tr.Reset("greet")

	if res := tr.Check("greet", "alice", 300, 300); res.Blocked {
		t.Fatalf("reset command still blocked: %+v", res)
	}
	if res := tr.Check("other", "alice", 300, 300); !res.Blocked {
		t.Fatal("reset cleared an unrelated command")
	}
}
