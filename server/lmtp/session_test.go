package lmtp

import (
	"context"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/server/delivery"
	"github.com/larkmail/lark/testutils"
)

func newTestSession(t *testing.T) (*Session, *testutils.CapturingSink) {
	t.Helper()
	ctx := context.Background()

	store := testutils.NewMemoryMailboxStore()
	inboxRole := mailbox.RoleInbox
	_, err := store.CreateMailbox(ctx, "account-1", consts.MailboxInbox, nil, &inboxRole)
	require.NoError(t, err)

	sink := testutils.NewCapturingSink()
	pipeline := &delivery.Context{
		Mailboxes: store,
		Rules:     testutils.NewMemoryRuleStore(),
		Vacations: testutils.NewMemoryVacationStore(),
		Oracle:    testutils.NewMemoryOracle(nil),
		Sink:      sink,
	}

	backend, err := New(ctx, &testutils.StaticResolver{
		Accounts: map[string]string{"bob@example.com": "account-1"},
	}, pipeline, BackendOptions{Name: "lmtp", Hostname: "mail.example.com", Addr: ":0"})
	require.NoError(t, err)
	return &Session{backend: backend}, sink
}

func TestSessionRcptResolvesAccount(t *testing.T) {
	session, _ := newTestSession(t)

	require.NoError(t, session.Mail("alice@example.com", nil))
	require.NoError(t, session.Rcpt("bob@example.com", nil))
	require.Len(t, session.recipients, 1)
	assert.Equal(t, "account-1", session.recipients[0].accountID)
}

func TestSessionRcptUnknownRecipient(t *testing.T) {
	session, _ := newTestSession(t)

	err := session.Rcpt("nobody@example.com", nil)
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Equal(t, "unknown recipient <nobody@example.com>", smtpErr.Message)
}

func TestSessionDataDelivers(t *testing.T) {
	session, sink := newTestSession(t)

	require.NoError(t, session.Mail("alice@example.com", nil))
	require.NoError(t, session.Rcpt("bob@example.com", nil))

	raw := "From: alice@example.com\r\nTo: bob@example.com\r\nSubject: Hi\r\n\r\nhello\r\n"
	require.NoError(t, session.Data(strings.NewReader(raw)))

	require.Len(t, sink.Messages, 1)
	assert.Equal(t, "account-1", sink.Messages[0].AccountID)
}

func TestSessionDataWithoutRecipients(t *testing.T) {
	session, _ := newTestSession(t)

	err := session.Data(strings.NewReader("irrelevant"))
	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 503, smtpErr.Code)
}

func TestSessionReset(t *testing.T) {
	session, _ := newTestSession(t)

	require.NoError(t, session.Mail("alice@example.com", nil))
	require.NoError(t, session.Rcpt("bob@example.com", nil))
	session.Reset()

	assert.Empty(t, session.from)
	assert.Empty(t, session.recipients)
}
