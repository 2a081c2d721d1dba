package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/larkmail/lark/vacation"
)

// Get returns the autoresponder singleton, zero-valued when never configured.
func (db *Database) Get(ctx context.Context, accountID string) (*vacation.Response, error) {
	r := &vacation.Response{}
	err := db.Pool.QueryRow(ctx, `
		SELECT is_enabled, from_date, to_date, subject, text_body, html_body
		FROM vacation_settings
		WHERE account_id = $1`,
		accountID).Scan(&r.IsEnabled, &r.FromDate, &r.ToDate, &r.Subject, &r.TextBody, &r.HTMLBody)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &vacation.Response{}, nil
		}
		return nil, fmt.Errorf("failed to load vacation response: %w", err)
	}
	return r, nil
}

// Put replaces the autoresponder singleton.
func (db *Database) Put(ctx context.Context, accountID string, r *vacation.Response) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO vacation_settings (account_id, is_enabled, from_date, to_date, subject, text_body, html_body, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (account_id) DO UPDATE SET
			is_enabled = $2, from_date = $3, to_date = $4,
			subject = $5, text_body = $6, html_body = $7, updated_at = now()`,
		accountID, r.IsEnabled, r.FromDate, r.ToDate, r.Subject, r.TextBody, r.HTMLBody)
	if err != nil {
		return fmt.Errorf("failed to store vacation response: %w", err)
	}
	return nil
}

// IsResponseAllowed reports whether the sender has not been auto-replied to
// inside the suppression window.
func (db *Database) IsResponseAllowed(ctx context.Context, accountID, sender string, window time.Duration) (bool, error) {
	var sentAt time.Time
	err := db.Pool.QueryRow(ctx, `
		SELECT sent_at FROM vacation_responses
		WHERE account_id = $1 AND sender = $2`,
		accountID, sender).Scan(&sentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check vacation suppression: %w", err)
	}
	return time.Since(sentAt) >= window, nil
}

// RecordResponseSent stamps the sender's suppression window.
func (db *Database) RecordResponseSent(ctx context.Context, accountID, sender string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO vacation_responses (account_id, sender, sent_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id, sender) DO UPDATE SET sent_at = now()`,
		accountID, sender)
	if err != nil {
		return fmt.Errorf("failed to record vacation response: %w", err)
	}
	return nil
}
