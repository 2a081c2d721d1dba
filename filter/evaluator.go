package filter

import (
	"strings"

	"github.com/larkmail/lark/helpers"
)

// Address is one parsed header address.
type Address struct {
	Name    string
	Address string
}

// Message carries the envelope fields rule conditions can inspect.
type Message struct {
	From    *Address
	To      []Address
	Cc      []Address
	Subject string
}

// Evaluate walks the rules in stored order and returns the target mailbox id
// of the first matching rule. A false result means no rule matched and the
// caller delivers to the inbox.
func Evaluate(rules []Rule, msg *Message) (string, bool) {
	for i := range rules {
		rule := &rules[i]
		if Matches(&rule.Condition, msg) {
			ids := rule.Action.AppendIn.MailboxIDs
			if len(ids) > 0 {
				return ids[0], true
			}
		}
	}
	return "", false
}

// Matches evaluates one condition against the message.
//
// The sender is compared under three representations: bare address, display
// name, and the full "Name <address>" header rendering; any of them may
// satisfy the comparator. Recipient fields compare each entry's address.
func Matches(cond *Condition, msg *Message) bool {
	switch cond.Field {
	case FieldSubject:
		return compare(cond.Comparator, cond.Value, []string{msg.Subject})
	case FieldFrom:
		return compare(cond.Comparator, cond.Value, senderRepresentations(msg.From))
	case FieldTo:
		return compare(cond.Comparator, cond.Value, addressesOf(msg.To))
	case FieldCc:
		return compare(cond.Comparator, cond.Value, addressesOf(msg.Cc))
	case FieldRecipient:
		return compare(cond.Comparator, cond.Value, addressesOf(append(msg.To[:len(msg.To):len(msg.To)], msg.Cc...)))
	}
	return false
}

func senderRepresentations(from *Address) []string {
	if from == nil {
		return nil
	}
	reprs := []string{from.Address}
	if from.Name != "" {
		reprs = append(reprs, from.Name)
	}
	reprs = append(reprs, helpers.FormatAddressHeader(from.Name, from.Address))
	return reprs
}

func addressesOf(addrs []Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Address
	}
	return out
}

// compare applies the comparator over a set of representations. The positive
// comparators hold when any representation satisfies them; the negative
// comparators are the exact logical complements of their positive pair.
func compare(cmp Comparator, value string, reprs []string) bool {
	switch cmp {
	case ComparatorContains:
		return anyContains(reprs, value)
	case ComparatorNotContains:
		return !anyContains(reprs, value)
	case ComparatorExactlyEquals:
		return anyEquals(reprs, value)
	case ComparatorNotExactlyEquals:
		return !anyEquals(reprs, value)
	}
	return false
}

func anyContains(reprs []string, value string) bool {
	needle := strings.ToLower(value)
	for _, r := range reprs {
		if strings.Contains(strings.ToLower(r), needle) {
			return true
		}
	}
	return false
}

func anyEquals(reprs []string, value string) bool {
	for _, r := range reprs {
		if strings.EqualFold(r, value) {
			return true
		}
	}
	return false
}
