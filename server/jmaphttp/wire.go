package jmaphttp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/vacation"
)

// methodCall is one decoded request triple: ["methodName", {args}, "#tag"].
type methodCall struct {
	Name string
	Args json.RawMessage
	Tag  string
}

func (c *methodCall) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("method call must be a three element array, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &c.Name); err != nil {
		return fmt.Errorf("method name must be a string: %w", err)
	}
	if err := json.Unmarshal(parts[2], &c.Tag); err != nil {
		return fmt.Errorf("method tag must be a string: %w", err)
	}
	c.Args = parts[1]
	return nil
}

// methodResponse is one response triple.
type methodResponse struct {
	Name string
	Args interface{}
	Tag  string
}

func (r methodResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Name, r.Args, r.Tag})
}

// errorArgs is the argument object of an ["error", ...] response.
type errorArgs struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

func errorResponse(tag, errType, description string) methodResponse {
	return methodResponse{
		Name: "error",
		Args: errorArgs{Type: errType, Description: description},
		Tag:  tag,
	}
}

func invalidArguments(tag, description string) methodResponse {
	return errorResponse(tag, "invalidArguments", description)
}

// setErrorView is the wire form of a per-item mutation failure.
type setErrorView struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

func setErrorViews(errs map[mailbox.ID]mailbox.SetError) map[string]setErrorView {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]setErrorView, len(errs))
	for id, e := range errs {
		out[string(id)] = setErrorView{Type: e.Type, Description: e.Description}
	}
	return out
}

// mailboxView is the wire form of one mailbox.
type mailboxView struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	ParentID   *string             `json:"parentId"`
	Role       *string             `json:"role"`
	SortOrder  uint32              `json:"sortOrder"`
	Namespace  string              `json:"namespace"`
	SharedWith map[string][]string `json:"sharedWith"`
}

func viewOfMailbox(m *mailbox.Mailbox) mailboxView {
	v := mailboxView{
		ID:         string(m.ID),
		Name:       m.Name,
		SortOrder:  m.EffectiveSortOrder(),
		Namespace:  string(m.Namespace),
		SharedWith: map[string][]string{},
	}
	if m.ParentID != nil {
		parent := string(*m.ParentID)
		v.ParentID = &parent
	}
	if m.Role != nil {
		role := string(*m.Role)
		v.Role = &role
	}
	for principal, rights := range m.SharedWith {
		v.SharedWith[principal] = append([]string{}, rights...)
	}
	return v
}

// getMailboxesResponse mirrors the draft getMailboxes result shape.
type getMailboxesResponse struct {
	AccountID *string       `json:"accountId"`
	List      []mailboxView `json:"list"`
	NotFound  []string      `json:"notFound"`
}

// setMailboxesRequest is the decoded setMailboxes argument object. Create
// entries stay raw so unsupported fields can be rejected before decoding.
type setMailboxesRequest struct {
	Create  map[string]json.RawMessage `json:"create"`
	Update  map[string]json.RawMessage `json:"update"`
	Destroy []string                   `json:"destroy"`
}

type setMailboxesResponse struct {
	Created      map[string]mailboxView  `json:"created"`
	NotCreated   map[string]setErrorView `json:"notCreated"`
	Updated      []string                `json:"updated"`
	NotUpdated   map[string]setErrorView `json:"notUpdated"`
	Destroyed    []string                `json:"destroyed"`
	NotDestroyed map[string]setErrorView `json:"notDestroyed"`
}

func viewOfResult(res *mailbox.Result) setMailboxesResponse {
	out := setMailboxesResponse{
		Created:      map[string]mailboxView{},
		NotCreated:   map[string]setErrorView{},
		Updated:      []string{},
		NotUpdated:   setErrorViews(res.NotUpdated),
		Destroyed:    []string{},
		NotDestroyed: setErrorViews(res.NotDestroyed),
	}
	if out.NotUpdated == nil {
		out.NotUpdated = map[string]setErrorView{}
	}
	if out.NotDestroyed == nil {
		out.NotDestroyed = map[string]setErrorView{}
	}
	for cid, m := range res.Created {
		out.Created[cid] = viewOfMailbox(m)
	}
	for cid, e := range res.NotCreated {
		out.NotCreated[cid] = setErrorView{Type: e.Type, Description: e.Description}
	}
	for _, id := range res.Updated {
		out.Updated = append(out.Updated, string(id))
	}
	for _, id := range res.Destroyed {
		out.Destroyed = append(out.Destroyed, string(id))
	}
	return out
}

// vacationView is the wire form of the autoresponder singleton.
type vacationView struct {
	ID          string  `json:"id"`
	IsEnabled   bool    `json:"isEnabled"`
	FromDate    *string `json:"fromDate"`
	ToDate      *string `json:"toDate"`
	Subject     *string `json:"subject"`
	TextBody    *string `json:"textBody"`
	HTMLBody    *string `json:"htmlBody"`
	IsActivated bool    `json:"isActivated"`
}

func viewOfVacation(r *vacation.Response, now time.Time) vacationView {
	v := vacationView{
		ID:          "singleton",
		IsEnabled:   r.IsEnabled,
		Subject:     r.Subject,
		TextBody:    r.TextBody,
		HTMLBody:    r.HTMLBody,
		IsActivated: r.IsActivated(now),
	}
	if r.FromDate != nil {
		s := r.FromDate.Format(time.RFC3339)
		v.FromDate = &s
	}
	if r.ToDate != nil {
		s := r.ToDate.Format(time.RFC3339)
		v.ToDate = &s
	}
	return v
}
