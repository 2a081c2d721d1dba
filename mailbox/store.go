package mailbox

import "context"

// Store is the persistence collaborator for mailboxes. All operations are
// account-scoped; implementations must never expose one account's state to
// another, and applying a single mutation must be atomic with respect to
// concurrent readers.
type Store interface {
	// CreateMailbox materializes a mailbox and returns its assigned id.
	CreateMailbox(ctx context.Context, accountID string, name string, parentID *ID, role *Role) (ID, error)
	// GetMailbox returns consts.ErrMailboxNotFound for unknown ids.
	GetMailbox(ctx context.Context, accountID string, id ID) (*Mailbox, error)
	// ListMailboxes returns every mailbox of the account.
	ListMailboxes(ctx context.Context, accountID string) ([]*Mailbox, error)
	// RenameMailbox sets a new name and parent in one atomic step.
	RenameMailbox(ctx context.Context, accountID string, id ID, name string, parentID *ID) error
	// DeleteMailbox removes a childless mailbox.
	DeleteMailbox(ctx context.Context, accountID string, id ID) error
}

// SubscriptionStore tracks subscribed mailbox paths per account. Paths are
// the user-visible dotted hierarchy paths.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, accountID, path string) error
	Unsubscribe(ctx context.Context, accountID, path string) error
	// RenamePath rewrites oldPath and every path below it to live under
	// newPath, preserving relative suffixes.
	RenamePath(ctx context.Context, accountID, oldPath, newPath string) error
	ListSubscriptions(ctx context.Context, accountID string) ([]string, error)
}

// ACLStore persists the sharedWith rights map of a mailbox.
type ACLStore interface {
	// SetRights replaces the full rights map of the mailbox.
	SetRights(ctx context.Context, accountID string, id ID, rights map[string]Rights) error
	GetRights(ctx context.Context, accountID string, id ID) (map[string]Rights, error)
}
