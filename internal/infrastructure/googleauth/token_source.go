// Package googleauth builds the oauth2.TokenSource Gmail and Calendar
// clients authenticate with, from an already-granted installed-app
// refresh token (SPEC_FULL.md §DOMAIN STACK: golang.org/x/oauth2).
package googleauth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/config"
)

// NewTokenSource builds a token source that mints fresh access tokens
// from the configured refresh token, refreshing automatically as they
// expire. Returns an error if the installed-app credentials are missing —
// callers treat that as "Google integration not configured" and skip
// registering the Gmail/Calendar tools rather than failing startup.
func NewTokenSource(ctx context.Context, cfg config.GoogleConfig) (oauth2.TokenSource, error) {
	if !Configured(cfg) {
		return nil, errors.New("googleauth: client_id, client_secret and refresh_token are required")
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
		Endpoint:     google.Endpoint,
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	return oauthCfg.TokenSource(ctx, token), nil
}

// Configured reports whether enough of GoogleConfig is present to attempt
// building a token source at all.
func Configured(cfg config.GoogleConfig) bool {
	return cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.RefreshToken != ""
}
