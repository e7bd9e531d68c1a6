package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/telemetry"
)

// Event describes a chat command that is not a builtin. The host resolves the
// matching definition and the user's permission before calling
// Engine.Execute; a trigger with no known definition is a non-event, not an
// error.
type Event struct {
	Trigger   string
	Username  string
	Arguments string
}

// EventFunc receives non-builtin command events.
type EventFunc func(ctx context.Context, ev Event)

// ResolveFunc maps a username to its permission level at dispatch time.
type ResolveFunc func(username string) Level

// Dispatcher routes inbound chat commands. The balance query and the
// moderator grant/revoke builtins are short-circuited here and bypass the
// engine entirely (no cooldown, cost, or sound logic); everything else is
// surfaced through the EventFunc.
type Dispatcher struct {
	transport Transport
	ledger    *currency.Ledger
	settings  func() currency.Settings
	resolve   ResolveFunc
	persist   func(ctx context.Context) error
	onCommand EventFunc
}

// NewDispatcher wires a dispatcher. persist is called after a successful
// grant/revoke; onCommand may be nil to drop non-builtin commands.
func NewDispatcher(transport Transport, ledger *currency.Ledger, settings func() currency.Settings, resolve ResolveFunc, persist func(ctx context.Context) error, onCommand EventFunc) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		ledger:    ledger,
		settings:  settings,
		resolve:   resolve,
		persist:   persist,
		onCommand: onCommand,
	}
}

// Dispatch handles one inbound command trigger (prefix included) from
// username with its raw argument string.
func (d *Dispatcher) Dispatch(ctx context.Context, username, trigger, args string) {
	key := NormalizeKey(trigger)
	balanceKey := NormalizeKey(d.settings().Command)
	if balanceKey == "" {
		balanceKey = "points"
	}
	switch key {
	case balanceKey:
		d.handleBalance(ctx, username)
	case "points_add":
		d.handleGrant(ctx, username, args, false)
	case "points_remove":
		d.handleGrant(ctx, username, args, true)
	default:
		if d.onCommand != nil {
			d.onCommand(ctx, Event{Trigger: trigger, Username: username, Arguments: args})
		}
	}
}

// handleBalance reports the user's balance and accumulated hours to chat.
func (d *Dispatcher) handleBalance(ctx context.Context, username string) {
	acct := d.ledger.GetOrCreate(username)
	name := d.settings().Name
	if name == "" {
		name = "Points"
	}
	d.send(ctx, fmt.Sprintf("%s - Hours: %s - %s: %.2f", username, FormatHours(acct.Hours), name, acct.Points))
}

// handleGrant covers the moderator/admin-only balance builtins. Unlike the
// engine's silent authorization failures, the builtins keep their talkative
// replies: permission and usage errors go back to chat.
func (d *Dispatcher) handleGrant(ctx context.Context, username, args string, revoke bool) {
	perm := Everyone
	if d.resolve != nil {
		perm = d.resolve(username)
	}
	if perm < Moderator {
		d.send(ctx, fmt.Sprintf("@%s: You don't have permission to use this command", username))
		return
	}

	verb := "points_add"
	if revoke {
		verb = "points_remove"
	}
	parts := strings.Fields(args)
	if len(parts) < 2 {
		d.send(ctx, fmt.Sprintf("Usage: !%s <username> <amount>", verb))
		return
	}
	target := currency.Normalize(parts[0])
	amount, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		d.send(ctx, "Amount must be a number")
		return
	}

	name := d.settings().Name
	if name == "" {
		name = "Points"
	}
	if revoke {
		d.ledger.Remove(target, amount)
		d.send(ctx, fmt.Sprintf("Successfully removed %.2f %s from %s", amount, name, target))
	} else {
		d.ledger.Credit(target, amount)
		d.send(ctx, fmt.Sprintf("Successfully given %s %.2f %s", target, amount, name))
	}
	if d.persist != nil {
		if err := d.persist(ctx); err != nil {
			slog.Warn("failed to persist accounts after balance edit", slog.Any("err", err))
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, text string) {
	if d.transport == nil {
		return
	}
	if err := d.transport.SendMessage(ctx, text); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("chat send failed", slog.Any("err", err))
	}
}

// FormatHours renders accumulated hours as "Xh Ym" for chat replies.
func FormatHours(hours float64) string {
	totalMinutes := int(hours * 60)
	return fmt.Sprintf("%dh %dm", totalMinutes/60, totalMinutes%60)
}
