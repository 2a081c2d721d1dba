// Package vacation implements the per-account autoresponder singleton and
// its patch-based update semantics.
package vacation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock abstracts "now" so activation windows are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Response is the autoresponder configuration of one account. All fields
// except IsEnabled are optional; nil means absent.
type Response struct {
	FromDate  *time.Time
	ToDate    *time.Time
	IsEnabled bool
	Subject   *string
	TextBody  *string
	HTMLBody  *string
}

// IsActivated reports whether the autoresponder replies right now: it must
// be enabled and now must fall inside [FromDate, ToDate], either bound being
// optional.
func (r *Response) IsActivated(now time.Time) bool {
	if !r.IsEnabled {
		return false
	}
	if r.FromDate != nil && now.Before(*r.FromDate) {
		return false
	}
	if r.ToDate != nil && now.After(*r.ToDate) {
		return false
	}
	return true
}

// OptionalString distinguishes an explicit JSON null (clear the field) from
// an absent key (keep the current value).
type OptionalString struct {
	Present bool
	Null    bool
	Value   string
}

// OptionalTime is the timestamp counterpart of OptionalString.
type OptionalTime struct {
	Present bool
	Null    bool
	Value   time.Time
}

// Patch is a partial update of the singleton. Absent fields keep their
// current value; explicit nulls clear.
type Patch struct {
	ID        *string
	IsEnabled *bool
	FromDate  OptionalTime
	ToDate    OptionalTime
	Subject   OptionalString
	TextBody  OptionalString
	HTMLBody  OptionalString
}

func (p *Patch) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "id":
			if string(raw) != "null" {
				var id string
				if err = json.Unmarshal(raw, &id); err == nil {
					p.ID = &id
				}
			}
		case "isEnabled":
			var enabled bool
			if enabled, err = parseFlexibleBool(raw); err == nil {
				p.IsEnabled = &enabled
			}
		case "fromDate":
			p.FromDate, err = parseOptionalTime(raw)
		case "toDate":
			p.ToDate, err = parseOptionalTime(raw)
		case "subject":
			p.Subject = parseOptionalString(raw)
		case "textBody":
			p.TextBody = parseOptionalString(raw)
		case "htmlBody":
			p.HTMLBody = parseOptionalString(raw)
		}
		if err != nil {
			return fmt.Errorf("invalid value for %q: %w", key, err)
		}
	}
	return nil
}

// parseFlexibleBool accepts both a JSON bool and its string spelling; the
// draft clients send "isEnabled": "true".
func parseFlexibleBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, err
	}
	return strconv.ParseBool(s)
}

func parseOptionalString(raw json.RawMessage) OptionalString {
	if string(raw) == "null" {
		return OptionalString{Present: true, Null: true}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return OptionalString{}
	}
	return OptionalString{Present: true, Value: s}
}

func parseOptionalTime(raw json.RawMessage) (OptionalTime, error) {
	if string(raw) == "null" {
		return OptionalTime{Present: true, Null: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return OptionalTime{}, err
	}
	t, err := ParseZonedDate(s)
	if err != nil {
		return OptionalTime{}, err
	}
	return OptionalTime{Present: true, Value: t}, nil
}

// ParseZonedDate parses the draft timestamp format, which may carry a
// trailing bracketed zone name ("2014-09-30T14:10:00Z[GMT]").
func ParseZonedDate(s string) (time.Time, error) {
	if idx := strings.IndexByte(s, '['); idx >= 0 {
		s = s[:idx]
	}
	return time.Parse(time.RFC3339, s)
}

// Apply merges the patch into the current response.
func (p *Patch) Apply(r *Response) {
	if p.IsEnabled != nil {
		r.IsEnabled = *p.IsEnabled
	}
	applyTime(&r.FromDate, p.FromDate)
	applyTime(&r.ToDate, p.ToDate)
	applyString(&r.Subject, p.Subject)
	applyString(&r.TextBody, p.TextBody)
	applyString(&r.HTMLBody, p.HTMLBody)
}

func applyString(dst **string, src OptionalString) {
	if !src.Present {
		return
	}
	if src.Null {
		*dst = nil
		return
	}
	v := src.Value
	*dst = &v
}

func applyTime(dst **time.Time, src OptionalTime) {
	if !src.Present {
		return
	}
	if src.Null {
		*dst = nil
		return
	}
	v := src.Value
	*dst = &v
}

// Store holds the per-account singleton. Get returns a zero-value response
// for accounts that never configured one.
type Store interface {
	Get(ctx context.Context, accountID string) (*Response, error)
	Put(ctx context.Context, accountID string, r *Response) error
}

// Oracle tracks recent auto-replies so one sender gets at most one reply per
// suppression window.
type Oracle interface {
	IsResponseAllowed(ctx context.Context, accountID, sender string, window time.Duration) (bool, error)
	RecordResponseSent(ctx context.Context, accountID, sender string) error
}
