package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/logger"
	"github.com/larkmail/lark/pkg/metrics"
)

// Engine applies setMailboxes batches against the mailbox tree. Creation
// specs may reference each other as parents through their creation ids; the
// engine resolves them in dependency order, so the literal input order never
// affects the outcome.
type Engine struct {
	store Store
	subs  SubscriptionStore
	acl   ACLStore
}

func NewEngine(store Store, subs SubscriptionStore, acl ACLStore) *Engine {
	return &Engine{store: store, subs: subs, acl: acl}
}

// CreateRequest is one creation spec. ParentID may name another creation id
// in the same batch, an existing mailbox id, or be absent for root level.
type CreateRequest struct {
	Name     string
	ParentID *string
}

// Creation pairs a client-chosen creation id with its spec.
type Creation struct {
	CreationID string
	CreateRequest
}

// UpdatePatch is a partial mailbox update. HasParentID distinguishes an
// explicit "parentId": null (move to root) from an absent field.
type UpdatePatch struct {
	Name        *string
	HasParentID bool
	ParentID    *ID
	SharedWith  map[string]Rights
}

// Batch is the full set of mutations of one setMailboxes call.
type Batch struct {
	Create  []Creation
	Update  map[ID]UpdatePatch
	Destroy []ID
}

// Result holds the per-item outcomes of a batch.
type Result struct {
	Created      map[string]*Mailbox
	NotCreated   map[string]SetError
	Updated      []ID
	NotUpdated   map[ID]SetError
	Destroyed    []ID
	NotDestroyed map[ID]SetError
}

func newResult() *Result {
	return &Result{
		Created:      make(map[string]*Mailbox),
		NotCreated:   make(map[string]SetError),
		Updated:      []ID{},
		NotUpdated:   make(map[ID]SetError),
		Destroyed:    []ID{},
		NotDestroyed: make(map[ID]SetError),
	}
}

// Apply runs a batch against one account. Item-level business failures land
// in the Result maps; only infrastructure failures return an error, in which
// case the batch stops where it was.
func (e *Engine) Apply(ctx context.Context, accountID string, batch *Batch) (*Result, error) {
	mailboxes, err := e.store.ListMailboxes(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}
	tree := NewTree(mailboxes)
	res := newResult()

	if err := e.applyCreates(ctx, accountID, tree, batch.Create, res); err != nil {
		return nil, err
	}
	if err := e.applyUpdates(ctx, accountID, tree, batch.Update, res); err != nil {
		return nil, err
	}
	if err := e.applyDestroys(ctx, accountID, tree, batch.Destroy, res); err != nil {
		return nil, err
	}

	metrics.MailboxMutations.WithLabelValues("created").Add(float64(len(res.Created)))
	metrics.MailboxMutations.WithLabelValues("updated").Add(float64(len(res.Updated)))
	metrics.MailboxMutations.WithLabelValues("destroyed").Add(float64(len(res.Destroyed)))
	return res, nil
}

func (e *Engine) applyCreates(ctx context.Context, accountID string, tree *Tree, creations []Creation, res *Result) error {
	if len(creations) == 0 {
		return nil
	}

	byCID := make(map[string]*Creation, len(creations))
	order := make([]string, 0, len(creations))
	for i := range creations {
		c := &creations[i]
		byCID[c.CreationID] = c
		order = append(order, c.CreationID)
	}

	// Dependency edge: creation -> parent creation, only when the parent
	// reference names another creation id in this batch.
	parentOf := make(map[string]string)
	for cid, c := range byCID {
		if c.ParentID != nil {
			if _, ok := byCID[*c.ParentID]; ok {
				parentOf[cid] = *c.ParentID
			}
		}
	}

	// DFS coloring. Hitting a gray node closes a cycle; every spec on the
	// cycle is rejected and none of them is created.
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(order))
	inCycle := make(map[string]bool)
	var visit func(cid string, stack []string)
	visit = func(cid string, stack []string) {
		color[cid] = gray
		stack = append(stack, cid)
		if p, ok := parentOf[cid]; ok {
			switch color[p] {
			case white:
				visit(p, stack)
			case gray:
				for i := len(stack) - 1; i >= 0; i-- {
					inCycle[stack[i]] = true
					if stack[i] == p {
						break
					}
				}
			}
		}
		color[cid] = black
	}
	for _, cid := range order {
		if color[cid] == white {
			visit(cid, nil)
		}
	}
	for cid := range inCycle {
		res.NotCreated[cid] = errCycle()
	}

	// Resolve parents before children, regardless of input order.
	done := make(map[string]bool, len(order))
	var resolve func(cid string) error
	resolve = func(cid string) error {
		if done[cid] || inCycle[cid] {
			return nil
		}
		done[cid] = true
		if p, ok := parentOf[cid]; ok {
			if err := resolve(p); err != nil {
				return err
			}
		}
		return e.createOne(ctx, accountID, tree, byCID[cid], res)
	}
	for _, cid := range order {
		if err := resolve(cid); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) createOne(ctx context.Context, accountID string, tree *Tree, c *Creation, res *Result) error {
	if setErr, ok := validateName(c.Name); !ok {
		res.NotCreated[c.CreationID] = setErr
		return nil
	}

	var parentID *ID
	if c.ParentID != nil {
		ref := *c.ParentID
		switch {
		case res.Created[ref] != nil:
			parentID = &res.Created[ref].ID
		default:
			if _, failed := res.NotCreated[ref]; failed {
				res.NotCreated[c.CreationID] = errCreateParentNotFound(ref)
				return nil
			}
			if _, ok := tree.Get(ID(ref)); !ok {
				res.NotCreated[c.CreationID] = errCreateParentNotFound(ref)
				return nil
			}
			pid := ID(ref)
			parentID = &pid
		}
	}

	if sibling, ok := tree.SiblingNamed(parentID, c.Name); ok {
		if sibling.Name == c.Name {
			res.NotCreated[c.CreationID] = errAlreadyExists(c.CreationID)
		} else {
			res.NotCreated[c.CreationID] = errAlreadyExistsAsInbox(c.Name)
		}
		return nil
	}

	id, err := e.store.CreateMailbox(ctx, accountID, c.Name, parentID, nil)
	if err != nil {
		return fmt.Errorf("failed to create mailbox %q: %w", c.Name, err)
	}
	m := &Mailbox{ID: id, Name: c.Name, ParentID: parentID, Namespace: NamespacePersonal}
	tree.Add(m)
	if err := e.subs.Subscribe(ctx, accountID, tree.Path(id)); err != nil {
		return fmt.Errorf("failed to subscribe mailbox %q: %w", c.Name, err)
	}
	logger.Debug("mailbox created", "account", accountID, "mailbox", c.Name, "id", id)
	res.Created[c.CreationID] = m
	return nil
}

func (e *Engine) applyUpdates(ctx context.Context, accountID string, tree *Tree, updates map[ID]UpdatePatch, res *Result) error {
	ids := make([]ID, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		patch := updates[id]
		m, ok := tree.Get(id)
		if !ok {
			res.NotUpdated[id] = errMailboxNotFound(id)
			continue
		}

		if patch.SharedWith != nil {
			if setErr, ok := validateSharedWith(patch.SharedWith); !ok {
				res.NotUpdated[id] = setErr
				continue
			}
			if m.Role != nil && m.Role.SharingForbidden() {
				res.NotUpdated[id] = errSharingForbidden(*m.Role)
				continue
			}
		}

		renaming := patch.Name != nil && *patch.Name != m.Name
		reparenting := patch.HasParentID && !sameParent(patch.ParentID, m.ParentID)

		if (renaming || reparenting) && m.IsSystem() {
			res.NotUpdated[id] = errUpdateSystemMailbox()
			continue
		}
		if reparenting && tree.HasChildren(id) {
			res.NotUpdated[id] = errUpdateParentMailbox()
			continue
		}

		newName := m.Name
		if patch.Name != nil {
			newName = *patch.Name
		}
		if renaming {
			if setErr, ok := validateName(newName); !ok {
				res.NotUpdated[id] = setErr
				continue
			}
		}

		newParent := m.ParentID
		if patch.HasParentID {
			newParent = patch.ParentID
		}
		if reparenting && newParent != nil {
			if *newParent == id {
				// Self-parenting would close a one-element cycle.
				res.NotUpdated[id] = errUpdateParentMailbox()
				continue
			}
			if _, ok := tree.Get(*newParent); !ok {
				res.NotUpdated[id] = errUpdateParentNotFound(string(*newParent))
				continue
			}
		}

		if renaming || reparenting {
			if sibling, ok := tree.SiblingNamed(newParent, newName); ok && sibling.ID != id {
				if sibling.IsSystem() {
					res.NotUpdated[id] = errSystemMailbox(newName)
				} else {
					res.NotUpdated[id] = errRenameToExisting()
				}
				continue
			}
			oldPath := tree.Path(id)
			if err := e.store.RenameMailbox(ctx, accountID, id, newName, newParent); err != nil {
				return fmt.Errorf("failed to rename mailbox %s: %w", id, err)
			}
			tree.Move(id, newName, newParent)
			if err := e.subs.RenamePath(ctx, accountID, oldPath, tree.Path(id)); err != nil {
				return fmt.Errorf("failed to rename subscriptions of %s: %w", id, err)
			}
		}

		if patch.SharedWith != nil {
			// The owner's own entry never reaches storage.
			rights := make(map[string]Rights, len(patch.SharedWith))
			for principal, r := range patch.SharedWith {
				if principal == accountID {
					continue
				}
				rights[principal] = r
			}
			if err := e.acl.SetRights(ctx, accountID, id, rights); err != nil {
				return fmt.Errorf("failed to set rights of %s: %w", id, err)
			}
			m.SharedWith = rights
		}

		res.Updated = append(res.Updated, id)
	}
	return nil
}

func (e *Engine) applyDestroys(ctx context.Context, accountID string, tree *Tree, destroy []ID, res *Result) error {
	// Children of a destroyed mailbox may appear anywhere in the list, so
	// iterate to a fixpoint: each pass destroys every leaf it can, freeing
	// parents for the next pass.
	seen := make(map[ID]bool, len(destroy))
	pending := make([]ID, 0, len(destroy))
	for _, id := range destroy {
		if !seen[id] {
			seen[id] = true
			pending = append(pending, id)
		}
	}

	for len(pending) > 0 {
		progress := false
		var deferred []ID
		for _, id := range pending {
			m, ok := tree.Get(id)
			if !ok {
				res.NotDestroyed[id] = errMailboxNotFound(id)
				progress = true
				continue
			}
			if m.IsSystem() {
				res.NotDestroyed[id] = errSystemMailbox(string(id))
				progress = true
				continue
			}
			if tree.HasChildren(id) {
				deferred = append(deferred, id)
				continue
			}
			path := tree.Path(id)
			if err := e.store.DeleteMailbox(ctx, accountID, id); err != nil {
				return fmt.Errorf("failed to delete mailbox %s: %w", id, err)
			}
			if err := e.subs.Unsubscribe(ctx, accountID, path); err != nil {
				return fmt.Errorf("failed to unsubscribe mailbox %s: %w", id, err)
			}
			tree.Remove(id)
			res.Destroyed = append(res.Destroyed, id)
			progress = true
		}
		pending = deferred
		if !progress {
			break
		}
	}
	for _, id := range pending {
		res.NotDestroyed[id] = errMailboxHasChild(id)
	}
	return nil
}

func validateName(name string) (SetError, bool) {
	if strings.TrimSpace(name) == "" {
		return errEmptyName(), false
	}
	if strings.ContainsRune(name, consts.MailboxDelimiter) {
		return errIllegalCharacter(name), false
	}
	if len(name) > consts.MaxMailboxNameLength {
		return errNameTooLong(), false
	}
	return SetError{}, true
}

func validateSharedWith(shared map[string]Rights) (SetError, bool) {
	for _, rights := range shared {
		for _, r := range rights {
			if len(r) != 1 {
				return errRightNotSingleCharacter(), false
			}
			if !strings.Contains(validRights, r) {
				return errNoMatchingRight(r), false
			}
		}
	}
	return SetError{}, true
}

func sameParent(a, b *ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
