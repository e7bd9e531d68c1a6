package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/sound"
	"github.com/onnwee/chat-tender/telemetry"
)

// Transport sends outbound chat messages. Sends are fire-and-forget from the
// engine's perspective: errors are logged, never rolled back into the
// pipeline, and per-invocation ordering (response before refund) is preserved
// by sending sequentially.
type Transport interface {
	SendMessage(ctx context.Context, text string) error
}

// SoundGate is the slice of the arbitration gate the engine needs.
type SoundGate interface {
	Request(resource string, volume int) sound.Result
}

// PlayFunc starts actual playback after the gate grants a request.
type PlayFunc func(ctx context.Context, resource string, volume int)

// Result is the synchronous outcome of one invocation, used by the host to
// decide whether to auto-save.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
}

// Engine runs the per-invocation pipeline: enabled, permission, cooldowns,
// cost, response, sound gate, commit. Terminal at the first failing stage.
// Cooldowns and the usage counter advance only on full success.
type Engine struct {
	transport Transport
	ledger    *currency.Ledger
	gate      SoundGate
	cooldowns *CooldownTracker
	settings  func() currency.Settings
	play      PlayFunc

	now func() time.Time
}

// NewEngine wires an engine. play may be nil (gate decisions still apply;
// nothing audible happens).
func NewEngine(transport Transport, ledger *currency.Ledger, gate SoundGate, cooldowns *CooldownTracker, settings func() currency.Settings, play PlayFunc) *Engine {
	return &Engine{
		transport: transport,
		ledger:    ledger,
		gate:      gate,
		cooldowns: cooldowns,
		settings:  settings,
		play:      play,
		now:       time.Now,
	}
}

// Execute runs one command invocation for username with an already-resolved
// permission level. Expected rejections (disabled, permission, cooldown,
// funds, sound) come back as {Success: false, Reason}; nothing here returns
// an error to the caller.
func (e *Engine) Execute(ctx context.Context, def *Definition, username, args string, perm Level) Result {
	if telemetry.GetCorrelation(ctx) == "" {
		ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	}
	ctx, span := telemetry.StartSpan(ctx, "command", "engine.Execute",
		attribute.String("command", def.Key()),
		attribute.String("username", currency.Normalize(username)))
	defer span.End()
	start := e.now()
	defer func() {
		if telemetry.CommandDuration != nil {
			telemetry.CommandDuration.Observe(e.now().Sub(start).Seconds())
		}
	}()

	// 1. Enabled. Silent by design.
	if !def.Enabled {
		return e.reject("disabled", "command is disabled")
	}

	// 2. Permission, ordinal Everyone < Moderator < Admin. Silent by design.
	if perm < def.Permission {
		return e.reject("permission", "insufficient permissions")
	}

	key := def.Key()

	// 3-4. Cooldowns. Blocked invocations message the user but commit
	// nothing; the tables advance only in step 8.
	if cd := e.cooldowns.Check(key, username, def.CooldownSeconds, def.UserCooldownSeconds); cd.Blocked {
		if cd.Scope == ScopeGlobal {
			e.send(ctx, fmt.Sprintf("@%s: command is on cooldown. Try in %d sec.", username, cd.Remaining))
			return e.reject("cooldown", fmt.Sprintf("command on cooldown (%ds remaining)", cd.Remaining))
		}
		e.send(ctx, fmt.Sprintf("@%s: you can use this command in %d sec.", username, cd.Remaining))
		return e.reject("user_cooldown", fmt.Sprintf("user cooldown active (%ds remaining)", cd.Remaining))
	}

	// 5. Cost. Debit up front so a later denial can refund. Missing account
	// or short balance fails silently by design.
	if def.Cost > 0 {
		if !e.ledger.Debit(username, def.Cost) {
			return e.reject("funds", fmt.Sprintf("insufficient funds (need %s)", formatAmount(def.Cost)))
		}
	}

	// 6. Response, before the sound gate: chat feedback is not conditional
	// on audio succeeding.
	if strings.TrimSpace(def.Response) != "" {
		acct, ok := e.ledger.Get(username)
		e.send(ctx, Substitute(def.Response, username, acct, ok, e.settings().Name, def.Count))
	}

	// 7. Sound gate. A denial unwinds everything except the already-sent
	// response, which is not retracted.
	if strings.TrimSpace(def.SoundFile) != "" {
		res := e.gate.Request(def.SoundFile, def.Volume)
		if !res.Granted {
			telemetry.SoundRequestsDenied.Inc()
			if res.Refund {
				var msg string
				if def.Cost > 0 {
					e.ledger.Credit(username, def.Cost)
					telemetry.RefundsIssued.Inc()
					msg = fmt.Sprintf("@%s: %s. %s %s refunded.", username, res.Reason, formatAmount(def.Cost), e.settings().Name)
				} else {
					msg = fmt.Sprintf("@%s: %s.", username, res.Reason)
				}
				if res.ShowMessage {
					e.send(ctx, msg)
				}
			}
			return e.reject("sound", res.Reason)
		}
		telemetry.SoundRequestsGranted.Inc()
		if e.play != nil {
			e.play(ctx, def.SoundFile, def.Volume)
		}
	}

	// 8. Commit: the authoritative "it happened" boundary. def is the
	// invocation's private copy; the host advances the shared counter
	// through Registry.IncrementCount.
	def.Count++
	e.cooldowns.Commit(key, username)
	telemetry.CommandsSucceeded.Inc()
	return Result{Success: true, Reason: "command executed successfully"}
}

func (e *Engine) reject(stage, reason string) Result {
	telemetry.RecordRejection(stage)
	return Result{Reason: reason}
}

func (e *Engine) send(ctx context.Context, text string) {
	if e.transport == nil {
		return
	}
	if err := e.transport.SendMessage(ctx, text); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("chat send failed", slog.Any("err", err))
	}
}

// Substitute expands the response template variables, case-insensitively:
// $username/$user (invoking username), $points (balance), $hours (two
// decimals), $currencyname, $count (usage counter), $rank (reserved, fixed
// placeholder). Account-derived variables expand only when the account
// exists; $count always does.
func Substitute(template, username string, acct currency.Account, hasAccount bool, currencyName string, count int) string {
	if strings.TrimSpace(template) == "" {
		return ""
	}
	if currencyName == "" {
		currencyName = "Points"
	}
	// $username before $user so the longer variable isn't clobbered.
	out := replaceFold(template, "$username", username)
	out = replaceFold(out, "$user", username)
	if hasAccount {
		out = replaceFold(out, "$points", formatAmount(acct.Points))
		out = replaceFold(out, "$hours", strconv.FormatFloat(acct.Hours, 'f', 2, 64))
		out = replaceFold(out, "$currencyname", currencyName)
		out = replaceFold(out, "$rank", "None")
	}
	return replaceFold(out, "$count", strconv.Itoa(count))
}

// replaceFold replaces every case-insensitive occurrence of old with new.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	var b strings.Builder
	lower := strings.ToLower(s)
	lo := strings.ToLower(old)
	for {
		i := strings.Index(lower, lo)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(lo):]
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
