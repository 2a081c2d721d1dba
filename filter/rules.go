// Package filter implements the per-account filtering rules behind the
// getFilter/setFilter methods and the evaluator that routes inbound mail.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Field names the message property a condition inspects.
type Field string

const (
	FieldFrom      Field = "from"
	FieldTo        Field = "to"
	FieldCc        Field = "cc"
	FieldRecipient Field = "recipient"
	FieldSubject   Field = "subject"
)

// Comparator names the match operation of a condition. The set is closed:
// each positive comparator has an exact logical negation.
type Comparator string

const (
	ComparatorContains         Comparator = "contains"
	ComparatorNotContains      Comparator = "not-contains"
	ComparatorExactlyEquals    Comparator = "exactly-equals"
	ComparatorNotExactlyEquals Comparator = "not-exactly-equals"
)

// ParseError is a malformed-rule failure. It aborts the whole method call as
// a protocol-level invalidArguments error, before any validation of the rule
// list as a whole.
type ParseError struct {
	Description string
}

func (e *ParseError) Error() string {
	return e.Description
}

// rawName extracts the token a client supplied for an enum field, so the
// error description can echo it back ("'null' is not a valid comparator
// name" for a JSON null).
func rawName(b []byte) string {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(b))
}

func (f *Field) UnmarshalJSON(b []byte) error {
	name := rawName(b)
	switch Field(name) {
	case FieldFrom, FieldTo, FieldCc, FieldRecipient, FieldSubject:
		*f = Field(name)
		return nil
	}
	return &ParseError{Description: fmt.Sprintf("'%s' is not a valid field name", name)}
}

func (c *Comparator) UnmarshalJSON(b []byte) error {
	name := rawName(b)
	switch Comparator(name) {
	case ComparatorContains, ComparatorNotContains, ComparatorExactlyEquals, ComparatorNotExactlyEquals:
		*c = Comparator(name)
		return nil
	}
	return &ParseError{Description: fmt.Sprintf("'%s' is not a valid comparator name", name)}
}

// Condition is the matching half of a rule.
type Condition struct {
	Field      Field      `json:"field"`
	Comparator Comparator `json:"comparator"`
	Value      string     `json:"value"`
}

// AppendIn is the only supported rule action: file the message into exactly
// one target mailbox.
type AppendIn struct {
	MailboxIDs []string `json:"mailboxIds"`
}

// Action is a tagged variant; AppendIn is the only arm today.
type Action struct {
	AppendIn AppendIn `json:"appendIn"`
}

// Rule is one entry of the ordered per-account rule list.
type Rule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Condition Condition `json:"condition"`
	Action    Action    `json:"action"`
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	var aux struct {
		ID        *string         `json:"id"`
		Name      *string         `json:"name"`
		Condition json.RawMessage `json:"condition"`
		Action    Action          `json:"action"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.ID == nil || *aux.ID == "" {
		return &ParseError{Description: "`id` is mandatory"}
	}
	if aux.Name == nil || *aux.Name == "" {
		return &ParseError{Description: "`name` is mandatory"}
	}
	if len(aux.Condition) == 0 || string(aux.Condition) == "null" {
		return &ParseError{Description: "`condition` is mandatory"}
	}
	var cond Condition
	if err := json.Unmarshal(aux.Condition, &cond); err != nil {
		return err
	}
	r.ID = *aux.ID
	r.Name = *aux.Name
	r.Condition = cond
	r.Action = aux.Action
	return nil
}

// ValidationError rejects a whole setFilter singleton. It surfaces as the
// notUpdated.singleton entry; the submitted list is not applied at all.
type ValidationError struct {
	Description string
}

func (e *ValidationError) Error() string {
	return e.Description
}

// ValidateRules checks the submitted list as a whole: rule ids must be
// pairwise distinct and every action must target exactly one mailbox.
func ValidateRules(rules []Rule) *ValidationError {
	seen := make(map[string]int, len(rules))
	var duplicated []string
	for _, r := range rules {
		seen[r.ID]++
		if seen[r.ID] == 2 {
			duplicated = append(duplicated, r.ID)
		}
	}
	if len(duplicated) > 0 {
		return &ValidationError{
			Description: fmt.Sprintf("The following rules were duplicated: %s", formatIDList(duplicated)),
		}
	}

	var several []string
	for _, r := range rules {
		if len(r.Action.AppendIn.MailboxIDs) != 1 {
			several = append(several, r.ID)
		}
	}
	if len(several) > 0 {
		return &ValidationError{
			Description: fmt.Sprintf("The following rules targeted several mailboxes, which is not supported: %s", formatIDList(several)),
		}
	}
	return nil
}

func formatIDList(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "'" + id + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Store holds the per-account singleton rule list. SetRules always replaces
// the whole ordered list; an empty list clears it.
type Store interface {
	GetRules(ctx context.Context, accountID string) ([]Rule, error)
	SetRules(ctx context.Context, accountID string, rules []Rule) error
}
