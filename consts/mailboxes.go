package consts

// MailboxDelimiter separates hierarchy levels in user-visible mailbox paths.
// The delimiter is illegal inside a single mailbox name.
const MailboxDelimiter = '.'

const MailboxInbox = "INBOX"

// MaxMailboxNameLength is the protocol-level ceiling on a single mailbox
// name. The storage backend enforces its own (much larger) limit.
const MaxMailboxNameLength = 200

var DefaultMailboxes = []string{
	"INBOX",
	"Outbox",
	"Sent",
	"Trash",
	"Drafts",
	"Spam",
}
