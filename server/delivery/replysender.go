package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
)

// AddressLookup resolves the primary address of an account, used as the
// sender of auto-replies.
type AddressLookup interface {
	GetAccountAddress(ctx context.Context, accountID string) (string, error)
}

// SMTPReplySender submits vacation auto-replies to an outbound relay.
type SMTPReplySender struct {
	RelayAddr string
	Addresses AddressLookup
}

func (s *SMTPReplySender) SendReply(ctx context.Context, accountID, recipient, subject, body string) error {
	from, err := s.Addresses.GetAccountAddress(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to resolve sender address: %w", err)
	}

	msg, err := composeReply(from, recipient, subject, body)
	if err != nil {
		return fmt.Errorf("failed to compose reply: %w", err)
	}
	if err := smtp.SendMail(s.RelayAddr, nil, from, []string{recipient}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("failed to submit reply: %w", err)
	}
	return nil
}

// composeReply renders the reply message. The Auto-Submitted and
// X-Auto-Response-Suppress headers keep other autoresponders from answering.
func composeReply(from, to, subject, body string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.Set("Auto-Submitted", "auto-replied")
	h.Set("X-Auto-Response-Suppress", "All")

	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
