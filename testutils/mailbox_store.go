package testutils

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/helpers"
	"github.com/larkmail/lark/mailbox"
)

// MemoryMailboxStore implements mailbox.Store, mailbox.SubscriptionStore and
// mailbox.ACLStore in memory, account-scoped like the database stores.
type MemoryMailboxStore struct {
	mu            sync.Mutex
	mailboxes     map[string]map[mailbox.ID]*mailbox.Mailbox
	subscriptions map[string]map[string]bool
	rights        map[string]map[mailbox.ID]map[string]mailbox.Rights
}

func NewMemoryMailboxStore() *MemoryMailboxStore {
	return &MemoryMailboxStore{
		mailboxes:     make(map[string]map[mailbox.ID]*mailbox.Mailbox),
		subscriptions: make(map[string]map[string]bool),
		rights:        make(map[string]map[mailbox.ID]map[string]mailbox.Rights),
	}
}

func (s *MemoryMailboxStore) account(accountID string) map[mailbox.ID]*mailbox.Mailbox {
	if s.mailboxes[accountID] == nil {
		s.mailboxes[accountID] = make(map[mailbox.ID]*mailbox.Mailbox)
	}
	return s.mailboxes[accountID]
}

func (s *MemoryMailboxStore) CreateMailbox(ctx context.Context, accountID string, name string, parentID *mailbox.ID, role *mailbox.Role) (mailbox.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := mailbox.ID(uuid.NewString())
	m := &mailbox.Mailbox{
		ID:         id,
		Name:       name,
		ParentID:   copyID(parentID),
		Role:       role,
		Namespace:  mailbox.NamespacePersonal,
		SharedWith: map[string]mailbox.Rights{},
	}
	if role != nil {
		m.SortOrder = role.DefaultSortOrder()
	}
	s.account(accountID)[id] = m
	return id, nil
}

func (s *MemoryMailboxStore) GetMailbox(ctx context.Context, accountID string, id mailbox.ID) (*mailbox.Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.account(accountID)[id]
	if !ok {
		return nil, consts.ErrMailboxNotFound
	}
	return copyMailbox(m), nil
}

func (s *MemoryMailboxStore) ListMailboxes(ctx context.Context, accountID string) ([]*mailbox.Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*mailbox.Mailbox
	for _, m := range s.account(accountID) {
		out = append(out, copyMailbox(m))
	}
	return out, nil
}

func (s *MemoryMailboxStore) RenameMailbox(ctx context.Context, accountID string, id mailbox.ID, name string, parentID *mailbox.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.account(accountID)[id]
	if !ok {
		return consts.ErrMailboxNotFound
	}
	m.Name = name
	m.ParentID = copyID(parentID)
	return nil
}

func (s *MemoryMailboxStore) DeleteMailbox(ctx context.Context, accountID string, id mailbox.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.account(accountID)[id]; !ok {
		return consts.ErrMailboxNotFound
	}
	delete(s.account(accountID), id)
	if s.rights[accountID] != nil {
		delete(s.rights[accountID], id)
	}
	return nil
}

func (s *MemoryMailboxStore) Subscribe(ctx context.Context, accountID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscriptions[accountID] == nil {
		s.subscriptions[accountID] = make(map[string]bool)
	}
	s.subscriptions[accountID][path] = true
	return nil
}

func (s *MemoryMailboxStore) Unsubscribe(ctx context.Context, accountID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions[accountID], path)
	return nil
}

func (s *MemoryMailboxStore) RenamePath(ctx context.Context, accountID, oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscriptions[accountID]
	rewritten := make(map[string]bool, len(subs))
	for path := range subs {
		rewritten[helpers.RewritePathPrefix(path, oldPath, newPath)] = true
	}
	s.subscriptions[accountID] = rewritten
	return nil
}

func (s *MemoryMailboxStore) ListSubscriptions(ctx context.Context, accountID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for path := range s.subscriptions[accountID] {
		out = append(out, path)
	}
	return out, nil
}

func (s *MemoryMailboxStore) SetRights(ctx context.Context, accountID string, id mailbox.ID, rights map[string]mailbox.Rights) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rights[accountID] == nil {
		s.rights[accountID] = make(map[mailbox.ID]map[string]mailbox.Rights)
	}
	stored := make(map[string]mailbox.Rights, len(rights))
	for principal, r := range rights {
		stored[principal] = append(mailbox.Rights{}, r...)
	}
	s.rights[accountID][id] = stored
	if m, ok := s.account(accountID)[id]; ok {
		m.SharedWith = stored
	}
	return nil
}

func (s *MemoryMailboxStore) GetRights(ctx context.Context, accountID string, id mailbox.ID) (map[string]mailbox.Rights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]mailbox.Rights{}
	for principal, r := range s.rights[accountID][id] {
		out[principal] = append(mailbox.Rights{}, r...)
	}
	return out, nil
}

func copyID(id *mailbox.ID) *mailbox.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyMailbox(m *mailbox.Mailbox) *mailbox.Mailbox {
	out := *m
	out.ParentID = copyID(m.ParentID)
	out.SharedWith = make(map[string]mailbox.Rights, len(m.SharedWith))
	for principal, r := range m.SharedWith {
		out.SharedWith[principal] = append(mailbox.Rights{}, r...)
	}
	return &out
}
