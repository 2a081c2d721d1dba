package vacation

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestIsActivated(t *testing.T) {
	from := mustParse(t, "2014-09-30T14:10:00Z")
	to := mustParse(t, "2014-10-30T14:10:00Z")

	tests := []struct {
		name string
		r    Response
		now  string
		want bool
	}{
		{"disabled", Response{IsEnabled: false}, "2014-10-15T00:00:00Z", false},
		{"enabled unbounded", Response{IsEnabled: true}, "2014-10-15T00:00:00Z", true},
		{"inside window", Response{IsEnabled: true, FromDate: &from, ToDate: &to}, "2014-10-15T00:00:00Z", true},
		{"before window", Response{IsEnabled: true, FromDate: &from}, "2014-09-01T00:00:00Z", false},
		{"after window", Response{IsEnabled: true, ToDate: &to}, "2014-11-01T00:00:00Z", false},
		{"at lower bound", Response{IsEnabled: true, FromDate: &from, ToDate: &to}, "2014-09-30T14:10:00Z", true},
		{"at upper bound", Response{IsEnabled: true, FromDate: &from, ToDate: &to}, "2014-10-30T14:10:00Z", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.r.IsActivated(mustParse(t, tc.now)))
		})
	}
}

func TestPatchUnmarshalDistinguishesNullFromAbsent(t *testing.T) {
	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(
		`{"isEnabled": true, "textBody": null, "subject": "Out of office"}`), &patch))

	require.NotNil(t, patch.IsEnabled)
	assert.True(t, *patch.IsEnabled)

	assert.True(t, patch.TextBody.Present)
	assert.True(t, patch.TextBody.Null)

	assert.True(t, patch.Subject.Present)
	assert.False(t, patch.Subject.Null)
	assert.Equal(t, "Out of office", patch.Subject.Value)

	assert.False(t, patch.HTMLBody.Present)
}

func TestPatchUnmarshalStringBool(t *testing.T) {
	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(`{"isEnabled": "true"}`), &patch))
	require.NotNil(t, patch.IsEnabled)
	assert.True(t, *patch.IsEnabled)

	patch = Patch{}
	require.NoError(t, json.Unmarshal([]byte(`{"isEnabled": "false"}`), &patch))
	require.NotNil(t, patch.IsEnabled)
	assert.False(t, *patch.IsEnabled)
}

func TestPatchUnmarshalBracketedZoneDates(t *testing.T) {
	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(
		`{"fromDate": "2014-09-30T14:10:00Z[GMT]", "toDate": "2014-10-30T14:10:00+02:00"}`), &patch))

	require.True(t, patch.FromDate.Present)
	assert.Equal(t, mustParse(t, "2014-09-30T14:10:00Z"), patch.FromDate.Value)
	require.True(t, patch.ToDate.Present)
	assert.True(t, mustParse(t, "2014-10-30T14:10:00+02:00").Equal(patch.ToDate.Value))
}

func TestPatchUnmarshalBadDate(t *testing.T) {
	var patch Patch
	err := json.Unmarshal([]byte(`{"fromDate": "not-a-date"}`), &patch)
	assert.Error(t, err)
}

func TestPatchUnmarshalID(t *testing.T) {
	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(`{"id": "singleton"}`), &patch))
	require.NotNil(t, patch.ID)
	assert.Equal(t, "singleton", *patch.ID)

	patch = Patch{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &patch))
	assert.Nil(t, patch.ID)
}

func TestPatchApply(t *testing.T) {
	text := "I am away"
	subject := "Old subject"
	current := &Response{
		IsEnabled: false,
		Subject:   &subject,
		TextBody:  &text,
	}

	enabled := true
	patch := Patch{
		IsEnabled: &enabled,
		TextBody:  OptionalString{Present: true, Null: true},
		HTMLBody:  OptionalString{Present: true, Value: "<p>Away</p>"},
	}
	patch.Apply(current)

	assert.True(t, current.IsEnabled)
	// Explicit null clears, omission keeps, a value replaces.
	assert.Nil(t, current.TextBody)
	require.NotNil(t, current.Subject)
	assert.Equal(t, "Old subject", *current.Subject)
	require.NotNil(t, current.HTMLBody)
	assert.Equal(t, "<p>Away</p>", *current.HTMLBody)
}

func TestPatchApplyDates(t *testing.T) {
	from := mustParse(t, "2014-09-30T14:10:00Z")
	current := &Response{IsEnabled: true, FromDate: &from}

	patch := Patch{
		FromDate: OptionalTime{Present: true, Null: true},
		ToDate:   OptionalTime{Present: true, Value: mustParse(t, "2014-10-30T14:10:00Z")},
	}
	patch.Apply(current)

	assert.Nil(t, current.FromDate)
	require.NotNil(t, current.ToDate)
	assert.Equal(t, mustParse(t, "2014-10-30T14:10:00Z"), *current.ToDate)
}

func TestReplySubjectAndBody(t *testing.T) {
	subject := "Back in October"
	text := "I am away until October."
	html := "<html><body><p>I am away until <b>October</b>.</p></body></html>"

	r := &Response{Subject: &subject, TextBody: &text, HTMLBody: &html}
	assert.Equal(t, "Back in October", r.ReplySubject("Hello"))
	assert.Equal(t, text, r.ReplyBody())

	r = &Response{HTMLBody: &html}
	assert.Equal(t, "Re: Hello", r.ReplySubject("Hello"))
	body := r.ReplyBody()
	assert.Contains(t, body, "I am away until")
	assert.NotContains(t, body, "<b>")

	r = &Response{}
	assert.Equal(t, "", r.ReplyBody())
}

func TestParseZonedDate(t *testing.T) {
	ts, err := ParseZonedDate("2014-09-30T14:10:00Z[GMT]")
	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2014-09-30T14:10:00Z"), ts)

	ts, err = ParseZonedDate("2014-09-30T14:10:00Z")
	require.NoError(t, err)
	assert.Equal(t, mustParse(t, "2014-09-30T14:10:00Z"), ts)

	_, err = ParseZonedDate("nope")
	assert.Error(t, err)
}
