package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rule(id string, field Field, cmp Comparator, value, mailboxID string) Rule {
	return Rule{
		ID:        id,
		Name:      id,
		Condition: Condition{Field: field, Comparator: cmp, Value: value},
		Action:    singleTarget(mailboxID),
	}
}

func sampleMessage() *Message {
	return &Message{
		From:    &Address{Name: "Alice Smith", Address: "alice@example.com"},
		To:      []Address{{Name: "Bob", Address: "bob@example.com"}},
		Cc:      []Address{{Name: "Carol", Address: "carol@example.com"}},
		Subject: "Quarterly results",
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	rules := []Rule{
		rule("r1", FieldSubject, ComparatorContains, "quarterly", "mb-reports"),
		rule("r2", FieldFrom, ComparatorContains, "alice", "mb-alice"),
	}
	target, matched := Evaluate(rules, sampleMessage())
	require.True(t, matched)
	assert.Equal(t, "mb-reports", target)

	// Swapping the stored order changes the outcome.
	target, matched = Evaluate([]Rule{rules[1], rules[0]}, sampleMessage())
	require.True(t, matched)
	assert.Equal(t, "mb-alice", target)
}

func TestEvaluateNoMatch(t *testing.T) {
	rules := []Rule{
		rule("r1", FieldSubject, ComparatorContains, "invoice", "mb-billing"),
	}
	_, matched := Evaluate(rules, sampleMessage())
	assert.False(t, matched)

	_, matched = Evaluate(nil, sampleMessage())
	assert.False(t, matched)
}

func TestMatchesFromRepresentations(t *testing.T) {
	msg := sampleMessage()

	// Bare address, display name, and the full header rendering all match.
	for _, value := range []string{
		"alice@example.com",
		"Alice Smith",
		"Alice Smith <alice@example.com>",
	} {
		cond := Condition{Field: FieldFrom, Comparator: ComparatorExactlyEquals, Value: value}
		assert.True(t, Matches(&cond, msg), "value %q", value)
	}

	cond := Condition{Field: FieldFrom, Comparator: ComparatorExactlyEquals, Value: "Dave <alice@example.com>"}
	assert.False(t, Matches(&cond, msg))
}

func TestMatchesFromWithoutDisplayName(t *testing.T) {
	msg := &Message{From: &Address{Address: "alice@example.com"}}

	cond := Condition{Field: FieldFrom, Comparator: ComparatorExactlyEquals, Value: "alice@example.com"}
	assert.True(t, Matches(&cond, msg))

	cond.Value = ""
	assert.False(t, Matches(&cond, msg))
}

func TestMatchesRecipientFieldsUseAddressesOnly(t *testing.T) {
	msg := sampleMessage()

	cond := Condition{Field: FieldTo, Comparator: ComparatorExactlyEquals, Value: "bob@example.com"}
	assert.True(t, Matches(&cond, msg))

	// Display names of recipients are not consulted.
	cond.Value = "Bob"
	assert.False(t, Matches(&cond, msg))

	cond = Condition{Field: FieldCc, Comparator: ComparatorExactlyEquals, Value: "carol@example.com"}
	assert.True(t, Matches(&cond, msg))
}

func TestMatchesRecipientUnion(t *testing.T) {
	msg := sampleMessage()

	for _, value := range []string{"bob@example.com", "carol@example.com"} {
		cond := Condition{Field: FieldRecipient, Comparator: ComparatorExactlyEquals, Value: value}
		assert.True(t, Matches(&cond, msg), "value %q", value)
	}

	cond := Condition{Field: FieldRecipient, Comparator: ComparatorExactlyEquals, Value: "alice@example.com"}
	assert.False(t, Matches(&cond, msg))
}

func TestComparatorsCaseInsensitive(t *testing.T) {
	msg := sampleMessage()

	cond := Condition{Field: FieldSubject, Comparator: ComparatorContains, Value: "QUARTERLY"}
	assert.True(t, Matches(&cond, msg))

	cond = Condition{Field: FieldSubject, Comparator: ComparatorExactlyEquals, Value: "quarterly RESULTS"}
	assert.True(t, Matches(&cond, msg))
}

func TestNegativeComparatorsAreExactComplements(t *testing.T) {
	msg := sampleMessage()
	pairs := map[Comparator]Comparator{
		ComparatorContains:      ComparatorNotContains,
		ComparatorExactlyEquals: ComparatorNotExactlyEquals,
	}

	for _, field := range []Field{FieldFrom, FieldTo, FieldCc, FieldRecipient, FieldSubject} {
		for _, value := range []string{"alice@example.com", "Alice Smith", "bob@example.com", "Quarterly results", "nope"} {
			for positive, negative := range pairs {
				pos := Condition{Field: field, Comparator: positive, Value: value}
				neg := Condition{Field: field, Comparator: negative, Value: value}
				assert.NotEqual(t, Matches(&pos, msg), Matches(&neg, msg),
					"field %s value %q comparator %s", field, value, positive)
			}
		}
	}
}

func TestMatchesMissingSender(t *testing.T) {
	msg := &Message{Subject: "hello"}

	cond := Condition{Field: FieldFrom, Comparator: ComparatorContains, Value: "alice"}
	assert.False(t, Matches(&cond, msg))

	// The negation of an unmatchable condition always holds.
	cond.Comparator = ComparatorNotContains
	assert.True(t, Matches(&cond, msg))
}
