package oauth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/onnwee/chat-tender/db"
)

// ChatToken resolves the IRC OAuth token for the chat connection. A token
// configured through the environment wins; otherwise the stored Twitch user
// token is read from the oauth_tokens table. Returns "" when neither source
// has a token. IRC expects the "oauth:" prefix, so it is added when missing.
func ChatToken(ctx context.Context, dbx *sql.DB, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if dbx == nil {
		return "", nil
	}
	access, _, _, _, err := db.GetOAuthToken(ctx, dbx, "twitch")
	if err != nil {
		return "", fmt.Errorf("load stored chat token: %w", err)
	}
	if access == "" {
		return "", nil
	}
	if !strings.HasPrefix(access, "oauth:") {
		access = "oauth:" + access
	}
	return access, nil
}
