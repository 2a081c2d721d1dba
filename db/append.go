package db

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"github.com/larkmail/lark/mailbox"
)

// Append stores a delivered message into a mailbox. The content hash keys
// deduplication and diagnostics.
func (db *Database) Append(ctx context.Context, accountID string, mailboxID mailbox.ID, raw []byte) error {
	sum := blake3.Sum256(raw)
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO messages (id, account_id, mailbox_id, content_hash, raw)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), accountID, string(mailboxID), hex.EncodeToString(sum[:]), raw)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}
