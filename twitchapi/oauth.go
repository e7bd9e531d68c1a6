package twitchapi

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// OAuthConfig builds the oauth2 config for the user (bot) token code grant.
// Scopes accept space- or comma-separated input.
func OAuthConfig(clientID, clientSecret, redirectURI, scopes string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoints.Twitch,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(strings.ReplaceAll(scopes, ",", " ")),
	}
}

// BuildAuthorizeURL constructs the user authorization URL for the OAuth code
// grant. state is the caller's CSRF token.
func BuildAuthorizeURL(cfg *oauth2.Config, state string) (string, error) {
	if cfg.ClientID == "" || cfg.RedirectURL == "" {
		return "", errors.New("missing clientID or redirectURI")
	}
	return cfg.AuthCodeURL(state), nil
}

// ExchangeAuthCode exchanges an authorization code for access & refresh tokens.
func ExchangeAuthCode(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	return cfg.Exchange(ctx, code)
}

// RefreshUserToken exchanges a refresh token for a fresh access token.
func RefreshUserToken(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("missing refresh token")
	}
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}
