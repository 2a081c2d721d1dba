package delivery_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/filter"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/server/delivery"
	"github.com/larkmail/lark/testutils"
	"github.com/larkmail/lark/vacation"
)

const testAccount = "account-1"

type fixture struct {
	pipeline *delivery.Context
	store    *testutils.MemoryMailboxStore
	rules    *testutils.MemoryRuleStore
	vacation *testutils.MemoryVacationStore
	clock    *testutils.FixedClock
	sink     *testutils.CapturingSink
	replies  *testutils.CapturingReplySender

	inboxID mailbox.ID
	workID  mailbox.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    testutils.NewMemoryMailboxStore(),
		rules:    testutils.NewMemoryRuleStore(),
		vacation: testutils.NewMemoryVacationStore(),
		clock:    testutils.NewFixedClock(time.Date(2014, 10, 15, 12, 0, 0, 0, time.UTC)),
		sink:     testutils.NewCapturingSink(),
		replies:  testutils.NewCapturingReplySender(),
	}

	for _, name := range consts.DefaultMailboxes {
		var role *mailbox.Role
		if r, ok := mailbox.RoleFromName(name); ok {
			role = &r
		}
		id, err := f.store.CreateMailbox(ctx, testAccount, name, nil, role)
		require.NoError(t, err)
		if name == consts.MailboxInbox {
			f.inboxID = id
		}
	}
	workID, err := f.store.CreateMailbox(ctx, testAccount, "Work", nil, nil)
	require.NoError(t, err)
	f.workID = workID

	f.pipeline = &delivery.Context{
		Mailboxes: f.store,
		Rules:     f.rules,
		Vacations: f.vacation,
		Oracle:    testutils.NewMemoryOracle(f.clock),
		Sink:      f.sink,
		Replies:   f.replies,
		Clock:     f.clock,
	}
	return f
}

func (f *fixture) setRule(t *testing.T, cond filter.Condition, targetID mailbox.ID) {
	t.Helper()
	rules := []filter.Rule{{
		ID:        "r1",
		Name:      "r1",
		Condition: cond,
		Action:    filter.Action{AppendIn: filter.AppendIn{MailboxIDs: []string{string(targetID)}}},
	}}
	require.NoError(t, f.rules.SetRules(context.Background(), testAccount, rules))
}

func (f *fixture) enableVacation(t *testing.T, r vacation.Response) {
	t.Helper()
	require.NoError(t, f.vacation.Put(context.Background(), testAccount, &r))
}

func rawMessage(extraHeaders string) []byte {
	return []byte("From: Alice <alice@example.com>\r\n" +
		"To: bob@example.com\r\n" +
		"Subject: Hello\r\n" +
		extraHeaders +
		"\r\nHi there\r\n")
}

func TestDeliverRoutesOnMatchingRule(t *testing.T) {
	f := newFixture(t)
	f.setRule(t, filter.Condition{
		Field:      filter.FieldFrom,
		Comparator: filter.ComparatorContains,
		Value:      "alice",
	}, f.workID)

	err := f.pipeline.DeliverMessage(context.Background(), testAccount, "alice@example.com", rawMessage(""))
	require.NoError(t, err)

	require.Len(t, f.sink.Messages, 1)
	assert.Equal(t, f.workID, f.sink.Messages[0].MailboxID)
	assert.Equal(t, testAccount, f.sink.Messages[0].AccountID)
}

func TestDeliverFallsBackToInboxWhenUnmatched(t *testing.T) {
	f := newFixture(t)
	f.setRule(t, filter.Condition{
		Field:      filter.FieldSubject,
		Comparator: filter.ComparatorContains,
		Value:      "invoice",
	}, f.workID)

	err := f.pipeline.DeliverMessage(context.Background(), testAccount, "alice@example.com", rawMessage(""))
	require.NoError(t, err)

	require.Len(t, f.sink.Messages, 1)
	assert.Equal(t, f.inboxID, f.sink.Messages[0].MailboxID)
}

func TestDeliverFallsBackToInboxOnStaleTarget(t *testing.T) {
	f := newFixture(t)
	f.setRule(t, filter.Condition{
		Field:      filter.FieldFrom,
		Comparator: filter.ComparatorContains,
		Value:      "alice",
	}, "mb-destroyed")

	err := f.pipeline.DeliverMessage(context.Background(), testAccount, "alice@example.com", rawMessage(""))
	require.NoError(t, err)

	require.Len(t, f.sink.Messages, 1)
	assert.Equal(t, f.inboxID, f.sink.Messages[0].MailboxID)
}

func TestDeliverUnparseableMessage(t *testing.T) {
	f := newFixture(t)

	err := f.pipeline.DeliverMessage(context.Background(), testAccount, "alice@example.com",
		[]byte("not a header line\r\n\r\nbody\r\n"))
	require.Error(t, err)
	assert.Empty(t, f.sink.Messages)
}

func TestVacationReplySentOncePerWindow(t *testing.T) {
	f := newFixture(t)
	text := "I am away"
	f.enableVacation(t, vacation.Response{IsEnabled: true, TextBody: &text})

	ctx := context.Background()
	require.NoError(t, f.pipeline.DeliverMessage(ctx, testAccount, "alice@example.com", rawMessage("")))
	require.Len(t, f.replies.Replies, 1)
	assert.Equal(t, "alice@example.com", f.replies.Replies[0].Recipient)
	assert.Equal(t, "Re: Hello", f.replies.Replies[0].Subject)
	assert.Equal(t, "I am away", f.replies.Replies[0].Body)

	// A second message inside the window delivers without a second reply.
	require.NoError(t, f.pipeline.DeliverMessage(ctx, testAccount, "alice@example.com", rawMessage("")))
	assert.Len(t, f.replies.Replies, 1)
	assert.Len(t, f.sink.Messages, 2)

	// A different sender is not suppressed.
	other := []byte("From: Carol <carol@example.com>\r\nSubject: Ping\r\n\r\nhey\r\n")
	require.NoError(t, f.pipeline.DeliverMessage(ctx, testAccount, "carol@example.com", other))
	assert.Len(t, f.replies.Replies, 2)

	f.clock.Advance(delivery.DefaultReplyWindow)
	require.NoError(t, f.pipeline.DeliverMessage(ctx, testAccount, "alice@example.com", rawMessage("")))
	assert.Len(t, f.replies.Replies, 3)
}

func TestVacationReplyUsesConfiguredSubject(t *testing.T) {
	f := newFixture(t)
	subject := "Out of office"
	text := "Back soon"
	f.enableVacation(t, vacation.Response{IsEnabled: true, Subject: &subject, TextBody: &text})

	require.NoError(t, f.pipeline.DeliverMessage(
		context.Background(), testAccount, "alice@example.com", rawMessage("")))
	require.Len(t, f.replies.Replies, 1)
	assert.Equal(t, "Out of office", f.replies.Replies[0].Subject)
}

func TestNoReplyWhenVacationInactive(t *testing.T) {
	f := newFixture(t)
	text := "I am away"
	past := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	f.enableVacation(t, vacation.Response{IsEnabled: true, ToDate: &past, TextBody: &text})

	require.NoError(t, f.pipeline.DeliverMessage(
		context.Background(), testAccount, "alice@example.com", rawMessage("")))
	assert.Empty(t, f.replies.Replies)
	assert.Len(t, f.sink.Messages, 1)
}

func TestNoReplyWithoutEnvelopeSender(t *testing.T) {
	f := newFixture(t)
	text := "I am away"
	f.enableVacation(t, vacation.Response{IsEnabled: true, TextBody: &text})

	require.NoError(t, f.pipeline.DeliverMessage(
		context.Background(), testAccount, "", rawMessage("")))
	assert.Empty(t, f.replies.Replies)
	assert.Len(t, f.sink.Messages, 1)
}

func TestNoReplyToAutomatedMail(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"auto submitted", "Auto-Submitted: auto-replied\r\n"},
		{"precedence bulk", "Precedence: bulk\r\n"},
		{"precedence junk", "Precedence: junk\r\n"},
		{"precedence list", "Precedence: list\r\n"},
		{"list id", "List-Id: <dev.example.com>\r\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			text := "I am away"
			f.enableVacation(t, vacation.Response{IsEnabled: true, TextBody: &text})

			require.NoError(t, f.pipeline.DeliverMessage(
				context.Background(), testAccount, "alice@example.com", rawMessage(tc.header)))
			assert.Empty(t, f.replies.Replies)
			assert.Len(t, f.sink.Messages, 1)
		})
	}
}

func TestAutoSubmittedNoStillReplies(t *testing.T) {
	f := newFixture(t)
	text := "I am away"
	f.enableVacation(t, vacation.Response{IsEnabled: true, TextBody: &text})

	require.NoError(t, f.pipeline.DeliverMessage(
		context.Background(), testAccount, "alice@example.com", rawMessage("Auto-Submitted: no\r\n")))
	assert.Len(t, f.replies.Replies, 1)
}
