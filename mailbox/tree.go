package mailbox

import (
	"sort"
	"strings"

	"github.com/larkmail/lark/helpers"
)

// Tree is an in-memory view of one account's mailbox hierarchy, loaded once
// per batch. The mutation engine updates it as items are applied so that
// later items in the same batch observe earlier outcomes.
type Tree struct {
	byID     map[ID]*Mailbox
	children map[ID][]ID // parent id -> child ids; rootKey for top level
}

const rootKey = ID("")

// NewTree builds a tree view from a flat mailbox list.
func NewTree(mailboxes []*Mailbox) *Tree {
	t := &Tree{
		byID:     make(map[ID]*Mailbox, len(mailboxes)),
		children: make(map[ID][]ID),
	}
	for _, m := range mailboxes {
		t.insert(m)
	}
	return t
}

func parentKey(parentID *ID) ID {
	if parentID == nil {
		return rootKey
	}
	return *parentID
}

func (t *Tree) insert(m *Mailbox) {
	t.byID[m.ID] = m
	key := parentKey(m.ParentID)
	t.children[key] = append(t.children[key], m.ID)
}

func (t *Tree) unlink(m *Mailbox) {
	key := parentKey(m.ParentID)
	ids := t.children[key]
	for i, id := range ids {
		if id == m.ID {
			t.children[key] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Get returns the mailbox with the given id.
func (t *Tree) Get(id ID) (*Mailbox, bool) {
	m, ok := t.byID[id]
	return m, ok
}

// Children returns the direct children of id, sorted by name.
func (t *Tree) Children(id ID) []*Mailbox {
	ids := t.children[id]
	out := make([]*Mailbox, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.byID[cid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasChildren reports whether id has at least one child.
func (t *Tree) HasChildren(id ID) bool {
	return len(t.children[id]) > 0
}

// All returns every mailbox, sorted by effective sort order then name.
func (t *Tree) All() []*Mailbox {
	out := make([]*Mailbox, 0, len(t.byID))
	for _, m := range t.byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := out[i].EffectiveSortOrder(), out[j].EffectiveSortOrder()
		if oi != oj {
			return oi < oj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SiblingNamed looks up a child of parentID by name. Comparison is
// case-sensitive except against an Inbox-role sibling, which collides
// case-insensitively.
func (t *Tree) SiblingNamed(parentID *ID, name string) (*Mailbox, bool) {
	for _, cid := range t.children[parentKey(parentID)] {
		sibling := t.byID[cid]
		if sibling.Name == name {
			return sibling, true
		}
		if sibling.HasRole(RoleInbox) && strings.EqualFold(sibling.Name, name) {
			return sibling, true
		}
	}
	return nil, false
}

// Path returns the dotted hierarchy path of id, e.g. "parent.child".
func (t *Tree) Path(id ID) string {
	var segments []string
	for cur, ok := t.byID[id]; ok; cur, ok = t.lookupParent(cur) {
		segments = append([]string{cur.Name}, segments...)
	}
	return helpers.JoinMailboxPath(segments...)
}

func (t *Tree) lookupParent(m *Mailbox) (*Mailbox, bool) {
	if m.ParentID == nil {
		return nil, false
	}
	p, ok := t.byID[*m.ParentID]
	return p, ok
}

// Add inserts a newly created mailbox into the view.
func (t *Tree) Add(m *Mailbox) {
	t.insert(m)
}

// Remove drops a mailbox from the view.
func (t *Tree) Remove(id ID) {
	m, ok := t.byID[id]
	if !ok {
		return
	}
	t.unlink(m)
	delete(t.byID, id)
}

// Move applies a rename/reparent to the view.
func (t *Tree) Move(id ID, name string, parentID *ID) {
	m, ok := t.byID[id]
	if !ok {
		return
	}
	t.unlink(m)
	m.Name = name
	m.ParentID = parentID
	t.insert(m)
}

// FindByRole returns the first mailbox carrying role.
func (t *Tree) FindByRole(role Role) (*Mailbox, bool) {
	for _, m := range t.byID {
		if m.HasRole(role) {
			return m, true
		}
	}
	return nil, false
}
