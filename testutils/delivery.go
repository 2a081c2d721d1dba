package testutils

import (
	"context"
	"sync"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/mailbox"
)

// AppendedMessage is one message captured by the sink.
type AppendedMessage struct {
	AccountID string
	MailboxID mailbox.ID
	Raw       []byte
}

// CapturingSink implements delivery's AppendSink and records every append.
type CapturingSink struct {
	mu       sync.Mutex
	Messages []AppendedMessage
}

func NewCapturingSink() *CapturingSink {
	return &CapturingSink{}
}

func (s *CapturingSink) Append(ctx context.Context, accountID string, mailboxID mailbox.ID, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, AppendedMessage{
		AccountID: accountID,
		MailboxID: mailboxID,
		Raw:       append([]byte(nil), raw...),
	})
	return nil
}

// SentReply is one auto-reply captured by the sender.
type SentReply struct {
	AccountID string
	Recipient string
	Subject   string
	Body      string
}

// CapturingReplySender implements delivery's ReplySender and records every
// reply instead of sending it.
type CapturingReplySender struct {
	mu      sync.Mutex
	Replies []SentReply
}

func NewCapturingReplySender() *CapturingReplySender {
	return &CapturingReplySender{}
}

func (s *CapturingReplySender) SendReply(ctx context.Context, accountID, recipient, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Replies = append(s.Replies, SentReply{
		AccountID: accountID,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}

// StaticResolver maps delivery addresses to account ids from a fixed table.
type StaticResolver struct {
	Accounts map[string]string
}

func (r *StaticResolver) ResolveAccount(ctx context.Context, address string) (string, error) {
	if accountID, ok := r.Accounts[address]; ok {
		return accountID, nil
	}
	return "", consts.ErrAccountNotFound
}
