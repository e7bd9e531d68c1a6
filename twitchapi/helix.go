// Package twitchapi contains minimal helpers to interact with Twitch Helix
// APIs for user id resolution, stream live status, and the chatter list,
// using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HelixClient provides the handful of Helix calls the bot needs.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) get(ctx context.Context, rawURL string, query map[string]string, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("helix request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "https://api.twitch.tv/helix/users", map[string]string{"login": login}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// Stream describes an active broadcast.
type Stream struct {
	Title     string
	StartedAt time.Time
}

// GetStreams returns the active streams for a channel login; an empty slice
// means the channel is offline.
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			Title     string    `json:"title"`
			StartedAt time.Time `json:"started_at"`
		} `json:"data"`
	}
	if err := hc.get(ctx, "https://api.twitch.tv/helix/streams", map[string]string{"user_login": login}, &body); err != nil {
		return nil, err
	}
	out := make([]Stream, 0, len(body.Data))
	for _, s := range body.Data {
		out = append(out, Stream{Title: s.Title, StartedAt: s.StartedAt})
	}
	return out, nil
}

// GetChatters lists login names currently connected to the channel's chat.
// Requires broadcaster and moderator user IDs per the Helix contract; the
// bot must be a moderator of the channel.
func (hc *HelixClient) GetChatters(ctx context.Context, broadcasterID, moderatorID string) ([]string, error) {
	if broadcasterID == "" || moderatorID == "" {
		return nil, fmt.Errorf("broadcasterID and moderatorID required")
	}
	logins := []string{}
	after := ""
	for {
		q := map[string]string{
			"broadcaster_id": broadcasterID,
			"moderator_id":   moderatorID,
			"first":          "1000",
		}
		if after != "" {
			q["after"] = after
		}
		var body struct {
			Data []struct {
				UserLogin string `json:"user_login"`
			} `json:"data"`
			Pagination struct {
				Cursor string `json:"cursor"`
			} `json:"pagination"`
		}
		if err := hc.get(ctx, "https://api.twitch.tv/helix/chat/chatters", q, &body); err != nil {
			return nil, err
		}
		for _, c := range body.Data {
			logins = append(logins, c.UserLogin)
		}
		after = body.Pagination.Cursor
		if after == "" {
			return logins, nil
		}
	}
}
