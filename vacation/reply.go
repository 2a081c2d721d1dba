package vacation

import (
	"github.com/k3a/html2text"
)

// DefaultReplySubjectPrefix prefixes the original subject when the
// autoresponder has no subject of its own.
const DefaultReplySubjectPrefix = "Re: "

// ReplySubject picks the subject of an auto-reply.
func (r *Response) ReplySubject(originalSubject string) string {
	if r.Subject != nil {
		return *r.Subject
	}
	return DefaultReplySubjectPrefix + originalSubject
}

// ReplyBody picks the body of an auto-reply. The text body wins; without one
// the HTML body is rendered down to plain text.
func (r *Response) ReplyBody() string {
	if r.TextBody != nil {
		return *r.TextBody
	}
	if r.HTMLBody != nil {
		return html2text.HTML2Text(*r.HTMLBody)
	}
	return ""
}
