package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/logger"
	"github.com/larkmail/lark/mailbox"
)

// CreateAccount registers an address and provisions its default mailboxes.
func (db *Database) CreateAccount(ctx context.Context, address string) (string, error) {
	accountID := uuid.NewString()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO accounts (id, address)
		VALUES ($1, $2)`,
		accountID, address)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", consts.ErrDBUniqueViolation
		}
		return "", fmt.Errorf("failed to create account: %w", err)
	}

	if err := db.CreateDefaultMailboxes(ctx, accountID); err != nil {
		return "", err
	}
	logger.Info("account created", "address", address, "account", accountID)
	return accountID, nil
}

// CreateDefaultMailboxes provisions the system mailboxes a fresh account
// starts with. Already existing ones are left alone.
func (db *Database) CreateDefaultMailboxes(ctx context.Context, accountID string) error {
	existing, err := db.ListMailboxes(ctx, accountID)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, m := range existing {
		if m.ParentID == nil {
			present[m.Name] = true
		}
	}

	for _, name := range consts.DefaultMailboxes {
		if present[name] {
			continue
		}
		var role *mailbox.Role
		if r, ok := mailbox.RoleFromName(name); ok {
			role = &r
		}
		if _, err := db.CreateMailbox(ctx, accountID, name, nil, role); err != nil {
			if errors.Is(err, consts.ErrMailboxAlreadyExists) {
				continue
			}
			return fmt.Errorf("failed to create default mailbox %s: %w", name, err)
		}
		if err := db.Subscribe(ctx, accountID, name); err != nil {
			return err
		}
	}
	return nil
}

// GetAccountAddress returns the primary address of an account.
func (db *Database) GetAccountAddress(ctx context.Context, accountID string) (string, error) {
	var address string
	err := db.Pool.QueryRow(ctx, `
		SELECT address FROM accounts
		WHERE id = $1`,
		accountID).Scan(&address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", consts.ErrAccountNotFound
		}
		return "", fmt.Errorf("failed to get account address: %w", err)
	}
	return address, nil
}

// ResolveAccount maps a delivery address to its account id.
func (db *Database) ResolveAccount(ctx context.Context, address string) (string, error) {
	var accountID string
	err := db.Pool.QueryRow(ctx, `
		SELECT id FROM accounts
		WHERE address = $1`,
		address).Scan(&accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", consts.ErrAccountNotFound
		}
		return "", fmt.Errorf("failed to resolve account: %w", err)
	}
	return accountID, nil
}
