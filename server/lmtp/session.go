package lmtp

import (
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-smtp"

	"github.com/larkmail/lark/consts"
	"github.com/larkmail/lark/logger"
)

// recipient is one accepted RCPT TO with its resolved account.
type recipient struct {
	address   string
	accountID string
}

// Session handles one LMTP transaction.
type Session struct {
	backend    *Backend
	from       string
	recipients []recipient
}

func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	accountID, err := s.backend.resolver.ResolveAccount(s.backend.appCtx, to)
	if err != nil {
		if errors.Is(err, consts.ErrAccountNotFound) {
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 1, 1},
				Message:      fmt.Sprintf("unknown recipient <%s>", to),
			}
		}
		logger.Error("LMTP: recipient lookup failed", "recipient", to, "error", err)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "temporary lookup failure",
		}
	}
	s.recipients = append(s.recipients, recipient{address: to, accountID: accountID})
	return nil
}

func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "no valid recipients",
		}
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	for _, rcpt := range s.recipients {
		if err := s.backend.pipeline.DeliverMessage(s.backend.appCtx, rcpt.accountID, s.from, raw); err != nil {
			logger.Error("LMTP: delivery failed",
				"recipient", rcpt.address, "account", rcpt.accountID, "error", err)
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "delivery failed",
			}
		}
	}
	return nil
}

func (s *Session) Reset() {
	s.from = ""
	s.recipients = nil
}

func (s *Session) Logout() error {
	s.backend.activeConnections.Add(-1)
	return nil
}
