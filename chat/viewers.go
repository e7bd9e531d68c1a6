package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/onnwee/chat-tender/currency"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

// StartViewerRefreshJob periodically fetches the channel's chatter list and
// touches each login on the ledger. This keeps lurkers eligible for payouts
// even when they never type, and matters most offline when chat can be
// silent. The list is used only to mark accounts seen, never for
// authorization.
//
// The Helix chatters endpoint needs broadcaster and moderator IDs, resolved
// once from the logins; a resolution failure retries on the next tick.
func StartViewerRefreshJob(ctx context.Context, helix *twitchapi.HelixClient, channel, botUsername string, ledger *currency.Ledger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("viewer refresh job starting", slog.String("channel", channel), slog.Duration("interval", interval))

	var broadcasterID, moderatorID string
	resolve := func() bool {
		var err error
		if broadcasterID == "" {
			if broadcasterID, err = helix.GetUserID(ctx, channel); err != nil {
				slog.Debug("viewer refresh: resolve broadcaster id", slog.Any("err", err))
				return false
			}
		}
		if moderatorID == "" {
			if moderatorID, err = helix.GetUserID(ctx, botUsername); err != nil {
				slog.Debug("viewer refresh: resolve moderator id", slog.Any("err", err))
				return false
			}
		}
		return true
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if resolve() {
			if chatters, err := helix.GetChatters(ctx, broadcasterID, moderatorID); err != nil {
				slog.Debug("viewer refresh: fetch chatters", slog.Any("err", err))
			} else {
				for _, login := range chatters {
					ledger.Touch(login)
				}
				telemetry.SetAccounts(ledger.Len())
			}
		}
		select {
		case <-ctx.Done():
			slog.Info("viewer refresh job stopped")
			return
		case <-ticker.C:
		}
	}
}
