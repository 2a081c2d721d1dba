package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/mailbox"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

func (db *Database) CreateMailbox(ctx context.Context, accountID string, name string, parentID *mailbox.ID, role *mailbox.Role) (mailbox.ID, error) {
	id := mailbox.ID(uuid.NewString())

	var sortOrder *uint32
	if role != nil {
		order := role.DefaultSortOrder()
		sortOrder = &order
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO mailboxes (id, account_id, name, parent_id, role, namespace, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(id), accountID, name, parentIDValue(parentID), roleValue(role),
		string(mailbox.NamespacePersonal), sortOrder)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", consts.ErrMailboxAlreadyExists
		}
		return "", fmt.Errorf("failed to create mailbox: %w", err)
	}
	return id, nil
}

func (db *Database) GetMailbox(ctx context.Context, accountID string, id mailbox.ID) (*mailbox.Mailbox, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, name, parent_id, role, namespace, sort_order
		FROM mailboxes
		WHERE account_id = $1 AND id = $2`,
		accountID, string(id))

	m, err := scanMailbox(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, consts.ErrMailboxNotFound
		}
		return nil, fmt.Errorf("failed to get mailbox: %w", err)
	}

	rights, err := db.GetRights(ctx, accountID, m.ID)
	if err != nil {
		return nil, err
	}
	m.SharedWith = rights
	return m, nil
}

func (db *Database) ListMailboxes(ctx context.Context, accountID string) ([]*mailbox.Mailbox, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, name, parent_id, role, namespace, sort_order
		FROM mailboxes
		WHERE account_id = $1`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	defer rows.Close()

	var mailboxes []*mailbox.Mailbox
	byID := make(map[mailbox.ID]*mailbox.Mailbox)
	for rows.Next() {
		m, err := scanMailbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mailbox: %w", err)
		}
		m.SharedWith = map[string]mailbox.Rights{}
		mailboxes = append(mailboxes, m)
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	aclRows, err := db.Pool.Query(ctx, `
		SELECT mailbox_id, principal, rights
		FROM mailbox_acls
		WHERE account_id = $1`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailbox rights: %w", err)
	}
	defer aclRows.Close()

	for aclRows.Next() {
		var mailboxID, principal, rights string
		if err := aclRows.Scan(&mailboxID, &principal, &rights); err != nil {
			return nil, fmt.Errorf("failed to scan mailbox rights: %w", err)
		}
		if m, ok := byID[mailbox.ID(mailboxID)]; ok {
			m.SharedWith[principal] = splitRights(rights)
		}
	}
	if err := aclRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list mailbox rights: %w", err)
	}
	return mailboxes, nil
}

func (db *Database) RenameMailbox(ctx context.Context, accountID string, id mailbox.ID, name string, parentID *mailbox.ID) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE mailboxes
		SET name = $3, parent_id = $4, updated_at = now()
		WHERE account_id = $1 AND id = $2`,
		accountID, string(id), name, parentIDValue(parentID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return consts.ErrMailboxAlreadyExists
		}
		return fmt.Errorf("failed to rename mailbox: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return consts.ErrMailboxNotFound
	}
	return nil
}

func (db *Database) DeleteMailbox(ctx context.Context, accountID string, id mailbox.ID) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM mailboxes
		WHERE account_id = $1 AND id = $2`,
		accountID, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete mailbox: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return consts.ErrMailboxNotFound
	}
	return nil
}

// Subscribe records the dotted path; duplicates are idempotent.
func (db *Database) Subscribe(ctx context.Context, accountID, path string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO subscriptions (account_id, path)
		VALUES ($1, $2)
		ON CONFLICT (account_id, path) DO NOTHING`,
		accountID, path)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

func (db *Database) Unsubscribe(ctx context.Context, accountID, path string) error {
	_, err := db.Pool.Exec(ctx, `
		DELETE FROM subscriptions
		WHERE account_id = $1 AND path = $2`,
		accountID, path)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

// RenamePath rewrites the subtree below oldPath in one statement. Prefix
// comparison avoids LIKE so wildcard characters in names stay literal.
func (db *Database) RenamePath(ctx context.Context, accountID, oldPath, newPath string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE subscriptions
		SET path = $3 || substring(path FROM length($2::text) + 1)
		WHERE account_id = $1
		  AND (path = $2 OR left(path, length($2::text) + 1) = $2 || '.')`,
		accountID, oldPath, newPath)
	if err != nil {
		return fmt.Errorf("failed to rename subscription paths: %w", err)
	}
	return nil
}

func (db *Database) ListSubscriptions(ctx context.Context, accountID string) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT path FROM subscriptions
		WHERE account_id = $1
		ORDER BY path`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// SetRights replaces the whole rights map of a mailbox in one transaction.
func (db *Database) SetRights(ctx context.Context, accountID string, id mailbox.ID, rights map[string]mailbox.Rights) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return consts.ErrDBBeginTransactionFailed
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM mailbox_acls
		WHERE account_id = $1 AND mailbox_id = $2`,
		accountID, string(id)); err != nil {
		return fmt.Errorf("failed to clear mailbox rights: %w", err)
	}
	for principal, r := range rights {
		if _, err := tx.Exec(ctx, `
			INSERT INTO mailbox_acls (mailbox_id, account_id, principal, rights)
			VALUES ($1, $2, $3, $4)`,
			string(id), accountID, principal, strings.Join(r, "")); err != nil {
			return fmt.Errorf("failed to set mailbox rights: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return consts.ErrDBCommitTransactionFailed
	}
	return nil
}

func (db *Database) GetRights(ctx context.Context, accountID string, id mailbox.ID) (map[string]mailbox.Rights, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT principal, rights
		FROM mailbox_acls
		WHERE account_id = $1 AND mailbox_id = $2`,
		accountID, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get mailbox rights: %w", err)
	}
	defer rows.Close()

	out := map[string]mailbox.Rights{}
	for rows.Next() {
		var principal, rights string
		if err := rows.Scan(&principal, &rights); err != nil {
			return nil, fmt.Errorf("failed to scan mailbox rights: %w", err)
		}
		out[principal] = splitRights(rights)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMailbox(row rowScanner) (*mailbox.Mailbox, error) {
	var (
		id, name, namespace string
		parentID, role      *string
		sortOrder           *uint32
	)
	if err := row.Scan(&id, &name, &parentID, &role, &namespace, &sortOrder); err != nil {
		return nil, err
	}
	m := &mailbox.Mailbox{
		ID:        mailbox.ID(id),
		Name:      name,
		Namespace: mailbox.Namespace(namespace),
	}
	if parentID != nil {
		pid := mailbox.ID(*parentID)
		m.ParentID = &pid
	}
	if role != nil {
		r := mailbox.Role(*role)
		m.Role = &r
	}
	if sortOrder != nil {
		m.SortOrder = *sortOrder
	}
	return m, nil
}

func parentIDValue(parentID *mailbox.ID) *string {
	if parentID == nil {
		return nil
	}
	s := string(*parentID)
	return &s
}

func roleValue(role *mailbox.Role) *string {
	if role == nil {
		return nil
	}
	s := string(*role)
	return &s
}

func splitRights(rights string) mailbox.Rights {
	out := make(mailbox.Rights, 0, len(rights))
	for _, c := range rights {
		out = append(out, string(c))
	}
	return out
}
