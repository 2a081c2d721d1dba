// Package mailbox implements the hierarchical mailbox model and the batched
// create/update/destroy mutation engine behind the setMailboxes method.
package mailbox

import (
	"strings"

	"github.com/larkmail/lark/consts"
)

// ID is an opaque, stable mailbox identifier. IDs are never reused after
// destruction.
type ID string

// Namespace tells whether a mailbox belongs to its owner alone or is shared.
type Namespace string

const (
	NamespacePersonal Namespace = "Personal"
	NamespaceShared   Namespace = "Shared"
)

// Role is a system-assigned mailbox category. Role-bearing mailboxes cannot
// be renamed, moved or destroyed, and some of them cannot be shared.
type Role string

const (
	RoleInbox  Role = "inbox"
	RoleOutbox Role = "outbox"
	RoleSent   Role = "sent"
	RoleTrash  Role = "trash"
	RoleDrafts Role = "drafts"
	RoleSpam   Role = "spam"
)

// roleNames maps the reserved root-level mailbox names to their roles.
var roleNames = map[string]Role{
	"INBOX":  RoleInbox,
	"Outbox": RoleOutbox,
	"Sent":   RoleSent,
	"Trash":  RoleTrash,
	"Drafts": RoleDrafts,
	"Spam":   RoleSpam,
}

// RoleFromName returns the system role reserved for a root-level mailbox
// name. INBOX is matched case-insensitively.
func RoleFromName(name string) (Role, bool) {
	if strings.EqualFold(name, consts.MailboxInbox) {
		return RoleInbox, true
	}
	role, ok := roleNames[name]
	return role, ok
}

// DisplayName returns the role name used in user-facing error descriptions.
func (r Role) DisplayName() string {
	switch r {
	case RoleInbox:
		return "Inbox"
	case RoleOutbox:
		return "Outbox"
	case RoleSent:
		return "Sent"
	case RoleTrash:
		return "Trash"
	case RoleDrafts:
		return "Draft"
	case RoleSpam:
		return "Spam"
	}
	return string(r)
}

// SharingForbidden reports whether sharedWith updates are rejected for this
// role. Outbox and Drafts hold mail that must never be exposed to other
// principals.
func (r Role) SharingForbidden() bool {
	return r == RoleOutbox || r == RoleDrafts
}

// DefaultSortOrder returns the client ordering hint assigned to each role.
func (r Role) DefaultSortOrder() uint32 {
	switch r {
	case RoleInbox:
		return 10
	case RoleDrafts:
		return 30
	case RoleOutbox:
		return 40
	case RoleSent:
		return 50
	case RoleSpam:
		return 60
	case RoleTrash:
		return 70
	}
	return defaultSortOrder
}

const defaultSortOrder uint32 = 1000

// Rights is the set of single-character right flags granted to a principal.
type Rights []string

// validRights lists every recognized right character.
const validRights = "aeiklrstwx"

// Mailbox is one node of a user's mailbox hierarchy. The child references
// its parent by id; the parent holds no child list.
type Mailbox struct {
	ID         ID
	Name       string
	ParentID   *ID
	Role       *Role
	Namespace  Namespace
	SortOrder  uint32
	SharedWith map[string]Rights
}

// IsSystem reports whether the mailbox carries a system role.
func (m *Mailbox) IsSystem() bool {
	return m.Role != nil
}

// HasRole reports whether the mailbox carries the given role.
func (m *Mailbox) HasRole(role Role) bool {
	return m.Role != nil && *m.Role == role
}

// EffectiveSortOrder returns the explicit sort order, or the role default.
func (m *Mailbox) EffectiveSortOrder() uint32 {
	if m.SortOrder != 0 {
		return m.SortOrder
	}
	if m.Role != nil {
		return m.Role.DefaultSortOrder()
	}
	return defaultSortOrder
}
