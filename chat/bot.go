// Package chat is the Twitch IRC transport: it connects the bot to the
// configured channel, feeds inbound messages to the command dispatcher,
// touches the currency ledger for every active chatter, and exposes the
// outbound SendMessage used by the engine.
//
// Credentials: the IRC client requires a bot username and a user OAuth token
// with chat:read/chat:edit scopes (an app access token will not work for
// IRC).
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chat-tender/command"
	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/telemetry"
)

// Bot owns the IRC connection for one channel.
type Bot struct {
	client  *twitch.Client
	channel string
	prefix  string

	ledger     *currency.Ledger
	dispatcher *command.Dispatcher

	mu   sync.RWMutex
	mods command.ModeratorSet
}

// NewBot builds the IRC client and wires its message handler. prefix is the
// command trigger character, normally "!". The dispatcher is attached later
// via SetDispatcher since it needs the bot as its transport.
func NewBot(channel, botUsername, oauthToken, prefix string, ledger *currency.Ledger) *Bot {
	if prefix == "" {
		prefix = "!"
	}
	b := &Bot{
		client:  twitch.NewClient(botUsername, oauthToken),
		channel: channel,
		prefix:  prefix,
		ledger:  ledger,
		mods:    command.NewModeratorSet(),
	}
	b.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.observeBadges(msg)
		b.handleMessage(context.Background(), msg.User.Name, msg.Message)
	})
	return b
}

// SetDispatcher attaches the command dispatcher. Must be called before Run.
func (b *Bot) SetDispatcher(d *command.Dispatcher) { b.dispatcher = d }

// observeBadges records moderator status from message tags so permission
// checks reflect what the channel reports rather than a static list.
func (b *Bot) observeBadges(msg twitch.PrivateMessage) {
	_, isMod := msg.User.Badges["moderator"]
	name := strings.ToLower(msg.User.Name)
	b.mu.Lock()
	if isMod {
		b.mods[name] = struct{}{}
	} else {
		delete(b.mods, name)
	}
	b.mu.Unlock()
}

// Resolve maps a chatter to a permission level using the badges seen so far.
func (b *Bot) Resolve(username string) command.Level {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return command.Resolve(username, b.channel, b.mods)
}

// handleMessage touches the ledger for every chatter (payout eligibility is
// driven by activity, not by commands) and dispatches `!`-prefixed text.
func (b *Bot) handleMessage(ctx context.Context, username, text string) {
	telemetry.MessagesSeen.Inc()
	b.ledger.Touch(username)

	text = strings.TrimSpace(text)
	if b.dispatcher == nil || !strings.HasPrefix(text, b.prefix) {
		return
	}
	trigger, args, _ := strings.Cut(text, " ")
	b.dispatcher.Dispatch(ctx, username, trigger, strings.TrimSpace(args))
}

// SendMessage says text in the channel. Fire-and-forget: the IRC library
// queues the write; errors surface through the connection, not here.
func (b *Bot) SendMessage(_ context.Context, text string) error {
	b.client.Say(b.channel, text)
	return nil
}

// Run connects and blocks until the context is canceled or the connection
// fails. Cancellation disconnects the client.
func (b *Bot) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := b.client.Disconnect(); err != nil {
				slog.Warn("twitch chat disconnect", slog.Any("err", err))
			}
		case <-done:
		}
	}()
	b.client.Join(b.channel)
	slog.Info("twitch chat connecting", slog.String("channel", b.channel))
	err := b.client.Connect()
	close(done)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
