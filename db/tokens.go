// ABOUTME: Database operations for stored OAuth tokens
// ABOUTME: One row per connected service, upserted after exchange or refresh
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore persists OAuth tokens in the oauth_tokens table.
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Load returns the stored token for a service, or nil when none exists.
func (s *TokenStore) Load(ctx context.Context, service string) (*oauth2.Token, error) {
	var access string
	var refresh, tokenType, expiresAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_type, expires_at
		FROM oauth_tokens
		WHERE service = ?
	`, service).Scan(&access, &refresh, &tokenType, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s token: %w", service, err)
	}

	tok := &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh.String,
		TokenType:    tokenType.String,
	}
	if expiresAt.Valid {
		if t := parseTimePtr(expiresAt.String); t != nil {
			tok.Expiry = *t
		}
	}
	return tok, nil
}

// Save upserts a token. An empty refresh token keeps the stored one, since
// providers do not always rotate it.
func (s *TokenStore) Save(ctx context.Context, service string, tok *oauth2.Token) error {
	var expires sql.NullString
	if !tok.Expiry.IsZero() {
		expires = sql.NullString{String: formatTime(tok.Expiry), Valid: true}
	}
	var refresh sql.NullString
	if tok.RefreshToken != "" {
		refresh = sql.NullString{String: tok.RefreshToken, Valid: true}
	}
	now := formatTime(time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (service, access_token, refresh_token, token_type, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = COALESCE(excluded.refresh_token, oauth_tokens.refresh_token),
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, service, tok.AccessToken, refresh, tok.TokenType, expires, now, now)
	if err != nil {
		return fmt.Errorf("failed to save %s token: %w", service, err)
	}
	return nil
}

// Delete forgets a service's token.
func (s *TokenStore) Delete(ctx context.Context, service string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE service = ?`, service); err != nil {
		return fmt.Errorf("failed to delete %s token: %w", service, err)
	}
	return nil
}

// Connected lists services that have a stored token.
func (s *TokenStore) Connected(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT service FROM oauth_tokens ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var services []string
	for rows.Next() {
		var service string
		if err := rows.Scan(&service); err != nil {
			return nil, fmt.Errorf("failed to scan token service: %w", err)
		}
		services = append(services, service)
	}
	return services, rows.Err()
}
