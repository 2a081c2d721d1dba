// Package delivery routes inbound messages into mailboxes and emits
// vacation auto-replies.
package delivery

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"lukechampine.com/blake3"

	"github.com/larkmail/lark/filter"
	"github.com/larkmail/lark/logger"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/pkg/metrics"
	"github.com/larkmail/lark/vacation"
)

// DefaultReplyWindow is how long one sender is suppressed after receiving a
// vacation auto-reply.
const DefaultReplyWindow = 24 * time.Hour

// AppendSink stores a delivered message into a mailbox.
type AppendSink interface {
	Append(ctx context.Context, accountID string, mailboxID mailbox.ID, raw []byte) error
}

// ReplySender sends a vacation auto-reply on behalf of an account.
type ReplySender interface {
	SendReply(ctx context.Context, accountID, recipient, subject, body string) error
}

// Context carries every collaborator the pipeline needs.
type Context struct {
	Mailboxes   mailbox.Store
	Rules       filter.Store
	Vacations   vacation.Store
	Oracle      vacation.Oracle
	Sink        AppendSink
	Replies     ReplySender
	Clock       vacation.Clock
	ReplyWindow time.Duration
}

func (c *Context) clock() vacation.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return vacation.SystemClock{}
}

func (c *Context) replyWindow() time.Duration {
	if c.ReplyWindow > 0 {
		return c.ReplyWindow
	}
	return DefaultReplyWindow
}

// DeliverMessage files one inbound message for one recipient account and,
// when the autoresponder is active, replies to the envelope sender at most
// once per suppression window.
func (c *Context) DeliverMessage(ctx context.Context, accountID, envelopeFrom string, raw []byte) error {
	sum := blake3.Sum256(raw)
	contentHash := hex.EncodeToString(sum[:8])

	msg, suppressReason, err := parseMessage(raw)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("unparseable").Inc()
		return fmt.Errorf("failed to parse message: %w", err)
	}

	target, err := c.resolveTarget(ctx, accountID, msg)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("failure").Inc()
		return err
	}

	if err := c.Sink.Append(ctx, accountID, target, raw); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to append message: %w", err)
	}
	metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
	logger.Info("message delivered",
		"account", accountID, "mailbox", target, "hash", contentHash)

	if suppressReason != "" {
		logger.Debug("vacation reply suppressed",
			"account", accountID, "reason", suppressReason)
		metrics.VacationRepliesTotal.WithLabelValues("suppressed").Inc()
		return nil
	}
	if err := c.maybeReply(ctx, accountID, envelopeFrom, msg); err != nil {
		// Delivery already succeeded; the reply failure is logged, not returned.
		logger.Error("vacation reply failed", "account", accountID, "error", err)
	}
	return nil
}

// parseMessage extracts the envelope fields rule conditions inspect, plus a
// non-empty reason when auto-replying to this message would risk a loop.
func parseMessage(raw []byte) (*filter.Message, string, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, "", err
	}
	header := mail.Header{Header: entity.Header}

	msg := &filter.Message{}
	msg.Subject, _ = header.Subject()
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = &filter.Address{Name: from[0].Name, Address: from[0].Address}
	}
	msg.To = addressList(header, "To")
	msg.Cc = addressList(header, "Cc")
	return msg, replySuppressReason(entity), nil
}

// replySuppressReason applies the RFC 5230 loop prevention rules: never
// auto-reply to other auto-responders or to mailing list traffic.
func replySuppressReason(entity *message.Entity) string {
	if auto := entity.Header.Get("Auto-Submitted"); auto != "" {
		if !strings.EqualFold(strings.TrimSpace(auto), "no") {
			return fmt.Sprintf("Auto-Submitted: %s", auto)
		}
	}
	if precedence := entity.Header.Get("Precedence"); precedence != "" {
		switch strings.ToLower(strings.TrimSpace(precedence)) {
		case "bulk", "junk", "list":
			return fmt.Sprintf("Precedence: %s", precedence)
		}
	}
	if listID := entity.Header.Get("List-Id"); listID != "" {
		return fmt.Sprintf("List-Id: %s", listID)
	}
	return ""
}

func addressList(header mail.Header, key string) []filter.Address {
	parsed, err := header.AddressList(key)
	if err != nil {
		return nil
	}
	out := make([]filter.Address, 0, len(parsed))
	for _, a := range parsed {
		out = append(out, filter.Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// resolveTarget evaluates the account's rules and falls back to the inbox
// when no rule matches or the matched mailbox no longer exists.
func (c *Context) resolveTarget(ctx context.Context, accountID string, msg *filter.Message) (mailbox.ID, error) {
	mailboxes, err := c.Mailboxes.ListMailboxes(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to list mailboxes: %w", err)
	}
	tree := mailbox.NewTree(mailboxes)

	rules, err := c.Rules.GetRules(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to load filter rules: %w", err)
	}

	if targetID, matched := filter.Evaluate(rules, msg); matched {
		if _, ok := tree.Get(mailbox.ID(targetID)); ok {
			metrics.FilterEvaluations.WithLabelValues("matched").Inc()
			return mailbox.ID(targetID), nil
		}
		// The rule points at a destroyed mailbox; deliver to the inbox.
		metrics.FilterEvaluations.WithLabelValues("stale_target").Inc()
		logger.Warn("filter rule targets a missing mailbox",
			"account", accountID, "mailbox", targetID)
	} else {
		metrics.FilterEvaluations.WithLabelValues("unmatched").Inc()
	}

	inbox, ok := tree.FindByRole(mailbox.RoleInbox)
	if !ok {
		return "", fmt.Errorf("account %s has no inbox", accountID)
	}
	return inbox.ID, nil
}

func (c *Context) maybeReply(ctx context.Context, accountID, envelopeFrom string, msg *filter.Message) error {
	if c.Replies == nil || envelopeFrom == "" {
		return nil
	}
	response, err := c.Vacations.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load vacation response: %w", err)
	}
	if !response.IsActivated(c.clock().Now()) {
		return nil
	}

	allowed, err := c.Oracle.IsResponseAllowed(ctx, accountID, envelopeFrom, c.replyWindow())
	if err != nil {
		return fmt.Errorf("failed to check reply suppression: %w", err)
	}
	if !allowed {
		metrics.VacationRepliesTotal.WithLabelValues("suppressed").Inc()
		return nil
	}

	subject := response.ReplySubject(msg.Subject)
	if err := c.Replies.SendReply(ctx, accountID, envelopeFrom, subject, response.ReplyBody()); err != nil {
		metrics.VacationRepliesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to send reply: %w", err)
	}
	if err := c.Oracle.RecordResponseSent(ctx, accountID, envelopeFrom); err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	metrics.VacationRepliesTotal.WithLabelValues("sent").Inc()
	logger.Info("vacation reply sent", "account", accountID, "recipient", envelopeFrom)
	return nil
}
