package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractMainReply(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no quoted history",
			body: "Sounds interesting, tell me more.",
			want: "Sounds interesting, tell me more.",
		},
		{
			name: "gmail style quote",
			body: "Sounds interesting.\n\nOn Mon, Jun 2, 2025 at 9:00 AM John <john@acme.com> wrote:\n> Hi Jane,",
			want: "Sounds interesting.",
		},
		{
			name: "outlook style quote",
			body: "Not right now, thanks.\n-----Original Message-----\nFrom: John",
			want: "Not right now, thanks.",
		},
		{
			name: "from header quote",
			body: "Please remove me.\nFrom: John <john@acme.com>",
			want: "Please remove me.",
		},
		{
			name: "dashed separator",
			body: "Works for me.\n---\nJohn Doe",
			want: "Works for me.",
		},
		{
			name: "earliest marker wins",
			body: "Yes.\n---\ntail\nOn Mon wrote:",
			want: "Yes.",
		},
		{
			name: "body opening with a marker",
			body: "On vacation until Friday.",
			want: "",
		},
		{
			name: "empty body",
			body: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMainReply(tt.body))
		})
	}
}

func TestBuildThreading(t *testing.T) {
	in := Inbound{
		MessageID:  "<reply-1@acme.com>",
		References: "<initial@us.com> <drip1@us.com>",
	}
	th := BuildThreading(in)
	assert.Equal(t, "<reply-1@acme.com>", th.InReplyTo)
	assert.Equal(t, "<initial@us.com> <drip1@us.com> <reply-1@acme.com>", th.References)

	// No prior chain: the reply id starts one.
	th = BuildThreading(Inbound{MessageID: "<reply-2@acme.com>"})
	assert.Equal(t, "<reply-2@acme.com>", th.References)
}

func TestMergeReferences(t *testing.T) {
	assert.Equal(t, "<a> <b> <c>", mergeReferences("<a> <b>", "<c>"))
	assert.Equal(t, "<a> <b>", mergeReferences("<a> <b>", "<b>"), "duplicates are not re-appended")
	assert.Equal(t, "<a> <b>", mergeReferences("<a> <a> <b>", ""), "existing chain is deduplicated")
	assert.Equal(t, "<c>", mergeReferences("", "<c>"))
	assert.Equal(t, "", mergeReferences("", ""))
}

func TestQuoteOriginal(t *testing.T) {
	in := Inbound{
		From: "john@acme.com",
		Body: "Can you share pricing?\nAnd onboarding time?",
		Date: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
	got := QuoteOriginal("Happy to help - details below.", in)
	assert.Equal(t,
		"Happy to help - details below.\n\nOn Mon, 2 Jun 2025 09:00, john@acme.com wrote:\n> Can you share pricing?\n> And onboarding time?",
		got)
}

func TestQuoteOriginalStripsHistory(t *testing.T) {
	in := Inbound{
		From: "john@acme.com",
		Body: "Yes please.\nOn Tue, someone wrote:\n> old text",
		Date: time.Date(2025, 6, 3, 14, 30, 0, 0, time.UTC),
	}
	got := QuoteOriginal("Great.", in)
	assert.NotContains(t, got, "old text")
	assert.Contains(t, got, "> Yes please.")
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Quick question", ReplySubject("Quick question"))
	assert.Equal(t, "Re: Quick question", ReplySubject("Re: Quick question"))
	assert.Equal(t, "RE: Quick question", ReplySubject("RE: Quick question"))
}
