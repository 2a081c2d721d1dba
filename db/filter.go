package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/larkmail/lark/filter"
)

// GetRules returns the stored rule list in order. Accounts without rules get
// an empty list.
func (db *Database) GetRules(ctx context.Context, accountID string) ([]filter.Rule, error) {
	var raw []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT rules FROM filter_rules
		WHERE account_id = $1`,
		accountID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load filter rules: %w", err)
	}

	var rules []filter.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode filter rules: %w", err)
	}
	return rules, nil
}

// SetRules replaces the whole rule list.
func (db *Database) SetRules(ctx context.Context, accountID string, rules []filter.Rule) error {
	if rules == nil {
		rules = []filter.Rule{}
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to encode filter rules: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO filter_rules (account_id, rules, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id) DO UPDATE SET rules = $2, updated_at = now()`,
		accountID, raw)
	if err != nil {
		return fmt.Errorf("failed to store filter rules: %w", err)
	}
	return nil
}
