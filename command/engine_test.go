package command

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/sound"
	"github.com/onnwee/chat-tender/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

type fakeTransport struct {
	messages []string
}

func (f *fakeTransport) SendMessage(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

type fakeGate struct {
	result   sound.Result
	requests int
}

func (f *fakeGate) Request(string, int) sound.Result {
	f.requests++
	return f.result
}

func testSettings() currency.Settings {
	s := currency.DefaultSettings()
	s.Name = "Coins"
	return s
}

func newTestEngine(gate SoundGate) (*Engine, *fakeTransport, *currency.Ledger, *CooldownTracker) {
	tp := &fakeTransport{}
	ledger := currency.NewLedger()
	cds := NewCooldownTracker()
	eng := NewEngine(tp, ledger, gate, cds, testSettings, nil)
	return eng, tp, ledger, cds
}

func TestExecuteDisabledIsSilent(t *testing.T) {
	eng, tp, _, _ := newTestEngine(&fakeGate{result: sound.Result{Granted: true}})
	def := &Definition{Command: "!hi", Enabled: false, Response: "hello"}

	res := eng.Execute(context.Background(), def, "alice", "", Everyone)
	if res.Success {
		t.Fatal("disabled command executed")
	}
	if len(tp.messages) != 0 {
		t.Fatalf("disabled command produced chat output: %v", tp.messages)
	}
}

func TestExecutePermissionDeniedIsSilent(t *testing.T) {
	eng, tp, _, _ := newTestEngine(&fakeGate{result: sound.Result{Granted: true}})
	def := &Definition{Command: "!modonly", Enabled: true, Permission: Moderator, Response: "secret"}

	res := eng.Execute(context.Background(), def, "alice", "", Everyone)
	if res.Success {
		t.Fatal("under-privileged invocation executed")
	}
	if len(tp.messages) != 0 {
		t.Fatalf("permission denial produced chat output: %v", tp.messages)
	}

	// Higher level than required passes.
	if res := eng.Execute(context.Background(), def, "alice", "", Admin); !res.Success {
		t.Fatalf("admin blocked on moderator command: %+v", res)
	}
}

func TestExecuteCooldownMessagesButDoesNotCommit(t *testing.T) {
	eng, tp, _, cds := newTestEngine(&fakeGate{result: sound.Result{Granted: true}})
	now := time.Unix(5000, 0)
	eng.now = func() time.Time { return now }
	cds.now = eng.now

	def := &Definition{Command: "!hi", Enabled: true, CooldownSeconds: 30}
	if res := eng.Execute(context.Background(), def, "alice", "", Everyone); !res.Success {
		t.Fatalf("first invocation failed: %+v", res)
	}

	now = now.Add(10 * time.Second)
	res := eng.Execute(context.Background(), def, "bob", "", Everyone)
	if res.Success {
		t.Fatal("invocation inside cooldown succeeded")
	}
	if len(tp.messages) != 1 || !strings.Contains(tp.messages[0], "@bob") || !strings.Contains(tp.messages[0], "20 sec") {
		t.Fatalf("cooldown message = %v", tp.messages)
	}
	if def.Count != 1 {
		t.Fatalf("count = %d, want 1 (blocked invocation committed)", def.Count)
	}

	// The blocked attempt must not have refreshed the window.
	now = time.Unix(5000, 0).Add(30 * time.Second)
	if res := eng.Execute(context.Background(), def, "bob", "", Everyone); !res.Success {
		t.Fatalf("invocation after full window failed: %+v", res)
	}
}

func TestExecuteInsufficientFundsIsSilent(t *testing.T) {
	eng, tp, ledger, _ := newTestEngine(&fakeGate{result: sound.Result{Granted: true}})
	ledger.Credit("alice", 5)

	def := &Definition{Command: "!spend", Enabled: true, Cost: 10}
	res := eng.Execute(context.Background(), def, "alice", "", Everyone)
	if res.Success {
		t.Fatal("execution succeeded with short balance")
	}
	if len(tp.messages) != 0 {
		t.Fatalf("funds rejection produced chat output: %v", tp.messages)
	}
	if got := ledger.Balance("alice"); got != 5 {
		t.Fatalf("balance = %v, want 5 (no partial debit)", got)
	}
}

func TestExecuteDebitThenCommit(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(&fakeGate{result: sound.Result{Granted: true}})
	ledger.Credit("alice", 25)

	def := &Definition{Command: "!spend", Enabled: true, Cost: 10}
	if res := eng.Execute(context.Background(), def, "alice", "", Everyone); !res.Success {
		t.Fatalf("execution failed: %+v", res)
	}
	if got := ledger.Balance("alice"); got != 15 {
		t.Fatalf("balance = %v, want 15", got)
	}
	if def.Count != 1 {
		t.Fatalf("count = %d, want 1", def.Count)
	}
}

func TestExecuteSoundContentionRefunds(t *testing.T) {
	gate := &fakeGate{result: sound.Result{Refund: true, ShowMessage: true, Reason: "another sound is currently playing"}}
	eng, tp, ledger, _ := newTestEngine(gate)
	ledger.Credit("alice", 100)

	def := &Definition{Command: "!horn", Enabled: true, Cost: 30, SoundFile: "horn.mp3", Volume: 80}
	res := eng.Execute(context.Background(), def, "alice", "", Everyone)
	if res.Success {
		t.Fatal("execution succeeded through a denied gate")
	}
	if got := ledger.Balance("alice"); got != 100 {
		t.Fatalf("balance = %v, want 100 (cost refunded)", got)
	}
	if def.Count != 0 {
		t.Fatalf("count = %d, want 0", def.Count)
	}
	if len(tp.messages) != 1 || !strings.Contains(tp.messages[0], "30 Coins refunded") {
		t.Fatalf("refund message = %v", tp.messages)
	}
}

func TestExecuteSoundContentionRefundMessageSuppressed(t *testing.T) {
	gate := &fakeGate{result: sound.Result{Refund: true, ShowMessage: false, Reason: "another sound is currently playing"}}
	eng, tp, ledger, _ := newTestEngine(gate)
	ledger.Credit("alice", 100)

	def := &Definition{Command: "!horn", Enabled: true, Cost: 30, SoundFile: "horn.mp3"}
	eng.Execute(context.Background(), def, "alice", "", Everyone)
	if got := ledger.Balance("alice"); got != 100 {
		t.Fatalf("balance = %v, want 100 (refund is independent of the message)", got)
	}
	if len(tp.messages) != 0 {
		t.Fatalf("suppressed refund still messaged: %v", tp.messages)
	}
}

func TestExecuteMissingSoundFileDoesNotRefund(t *testing.T) {
	gate := &fakeGate{result: sound.Result{Reason: "sound file does not exist: horn.mp3"}}
	eng, _, ledger, _ := newTestEngine(gate)
	ledger.Credit("alice", 100)

	def := &Definition{Command: "!horn", Enabled: true, Cost: 30, SoundFile: "horn.mp3"}
	res := eng.Execute(context.Background(), def, "alice", "", Everyone)
	if res.Success {
		t.Fatal("execution succeeded with a missing sound file")
	}
	if got := ledger.Balance("alice"); got != 70 {
		t.Fatalf("balance = %v, want 70 (configuration errors do not refund)", got)
	}
}

func TestExecuteResponseSentBeforeGateDenial(t *testing.T) {
	gate := &fakeGate{result: sound.Result{Refund: true, ShowMessage: true, Reason: "another sound is currently playing"}}
	eng, tp, ledger, _ := newTestEngine(gate)
	ledger.Credit("alice", 100)

	def := &Definition{Command: "!horn", Enabled: true, Cost: 10, Response: "HONK", SoundFile: "horn.mp3"}
	eng.Execute(context.Background(), def, "alice", "", Everyone)
	if len(tp.messages) != 2 {
		t.Fatalf("messages = %v, want response then refund notice", tp.messages)
	}
	if tp.messages[0] != "HONK" {
		t.Fatalf("first message = %q, want the response", tp.messages[0])
	}
	if !strings.Contains(tp.messages[1], "refunded") {
		t.Fatalf("second message = %q, want the refund notice", tp.messages[1])
	}
}

func TestSubstitute(t *testing.T) {
	acct := currency.Account{Username: "alice", Points: 42.5, Hours: 3.25}

	tests := []struct {
		name       string
		template   string
		hasAccount bool
		want       string
	}{
		{"username", "hi $username!", true, "hi alice!"},
		{"user alias", "hi $user!", true, "hi alice!"},
		{"username not clobbered by user", "$username", true, "alice"},
		{"points", "$points", true, "42.5"},
		{"hours two decimals", "$hours", true, "3.25"},
		{"currency name", "$currencyname", true, "Coins"},
		{"rank placeholder", "$rank", true, "None"},
		{"count without account", "used $count times", false, "used 7 times"},
		{"account vars left alone without account", "$points", false, "$points"},
		{"case insensitive", "$POINTS", true, "42.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Substitute(tt.template, "alice", acct, tt.hasAccount, "Coins", 7)
			if got != tt.want {
				t.Errorf("Substitute(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}
