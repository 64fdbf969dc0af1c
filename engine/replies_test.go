package engine

import (
	"context"
	"testing"
	"time"

	"dripcast/llm"
	"dripcast/mailer"
	"dripcast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingURL = "https://cal.us.com/alex"

func knownContact() *models.Contact {
	c := &models.Contact{
		Name:           "Jane",
		Email:          "jane@acme.com",
		CompanyName:    "Acme",
		MailSentStatus: models.MailStatusDrip1,
	}
	c.ID = 7
	return c
}

func replyLedger(c *models.Contact) *mockLedger {
	return &mockLedger{
		recipientsFn: func() (map[string]uint, error) {
			return map[string]uint{c.Email: c.ID}, nil
		},
		findByIDFn: func(id uint) (*models.Contact, error) {
			return c, nil
		},
	}
}

func newTestPipeline(led *mockLedger, verdict llm.Verdict, inbox *mockInbox, sender *mockSender) *ReplyPipeline {
	return NewReplyPipeline(led, &mockGenerator{}, &mockClassifier{verdict: verdict}, sender, inbox, bookingURL, 24*time.Hour, testLogger())
}

func inboundFrom(contact *models.Contact, id string) mailer.Inbound {
	return mailer.Inbound{
		From:       contact.Email,
		MessageID:  id,
		InReplyTo:  "<drip1@us.com>",
		References: "<initial@us.com> <drip1@us.com>",
		Subject:    "Following up",
		Body:       "Sounds interesting, let's talk.",
		Date:       time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestCheckRepliesPositiveNoQuery(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r1@acme.com>")}}
	sender := &mockSender{}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentPositive}, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The reply is logged with its classification.
	require.Len(t, led.replies, 1)
	assert.Equal(t, "<r1@acme.com>", led.replies[0].MessageID)
	assert.Equal(t, llm.SentimentPositive, led.replies[0].Sentiment)

	// A positive reply without questions earns a meeting invite with
	// the booking link substituted in.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@acme.com", sender.sent[0].To)
	assert.Equal(t, "Let's talk", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Body, bookingURL)
	assert.NotContains(t, sender.sent[0].Body, "[MEETING_BUTTON]")

	// Response threads onto the inbound message.
	assert.Equal(t, "<r1@acme.com>", sender.sent[0].Threading.InReplyTo)
	assert.Equal(t, "<initial@us.com> <drip1@us.com> <r1@acme.com>", sender.sent[0].Threading.References)

	require.Len(t, led.responses, 1)
	assert.Equal(t, models.EmailTypeReplyResponse, led.responses[0].EmailType)
	assert.Equal(t, contact.ID, led.responses[0].ContactID)
	assert.Empty(t, led.suppressed)
}

func TestCheckRepliesPositiveWithQuery(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r2@acme.com>")}}
	sender := &mockSender{}
	verdict := llm.Verdict{Sentiment: llm.SentimentPositive, HasQuery: true, Queries: "What does onboarding look like?"}
	p := newTestPipeline(led, verdict, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, sender.sent, 1)
	body := sender.sent[0].Body
	assert.Contains(t, body, "answer to: What does onboarding look like?")
	assert.Contains(t, body, bookingURL)
	assert.Equal(t, "Re: Following up", sender.sent[0].Subject)
}

func TestCheckRepliesNegativeNoQuery(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r3@acme.com>")}}
	sender := &mockSender{}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentNegative}, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "not be the right fit or timing for Acme")
	assert.NotContains(t, sender.sent[0].Body, bookingURL, "negative replies get no booking pitch")
	assert.Empty(t, led.suppressed, "a polite no is not a suppression request")
}

func TestCheckRepliesNeutralWithQuery(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r4@acme.com>")}}
	sender := &mockSender{}
	verdict := llm.Verdict{Sentiment: llm.SentimentNeutral, HasQuery: true, Queries: "Pricing?"}
	p := newTestPipeline(led, verdict, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "neutral answer to: Pricing?")
	assert.Contains(t, sender.sent[0].Body, "Hi Jane,")
}

func TestCheckRepliesStopContact(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	in := inboundFrom(contact, "<r5@acme.com>")
	in.Body = "Please remove me from your list."
	inbox := &mockInbox{messages: []mailer.Inbound{in}}
	sender := &mockSender{}
	verdict := llm.Verdict{Sentiment: llm.SentimentNegative, StopContact: true}
	p := newTestPipeline(led, verdict, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, []uint{contact.ID}, led.suppressed)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "you have been removed from our mailing list")
	require.Len(t, led.responses, 1)
	assert.Equal(t, models.EmailTypeStopContactAck, led.responses[0].EmailType)
}

func TestCheckRepliesSuppressedContactGetsNoResponse(t *testing.T) {
	contact := knownContact()
	contact.Status = models.StatusDoNotContact
	contact.MailSentStatus = models.MailStatusReplied
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r9@acme.com>")}}
	sender := &mockSender{}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentPositive}, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The reply stays on the record, but a suppressed contact never
	// receives another outbound email, whatever the classification.
	require.Len(t, led.replies, 1)
	assert.Equal(t, "<r9@acme.com>", led.replies[0].MessageID)
	assert.Empty(t, sender.sent)
	assert.Empty(t, led.responses)
}

func TestCheckRepliesSuppressedContactStopVerdictNotReacked(t *testing.T) {
	contact := knownContact()
	contact.Status = models.StatusDoNotContact
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r10@acme.com>")}}
	sender := &mockSender{}
	verdict := llm.Verdict{Sentiment: llm.SentimentNegative, StopContact: true}
	p := newTestPipeline(led, verdict, inbox, sender)

	_, err := p.CheckReplies(context.Background())
	require.NoError(t, err)

	// Already removed: no second acknowledgment, no re-suppression.
	assert.Empty(t, sender.sent)
	assert.Empty(t, led.suppressed)
}

func TestCheckRepliesDedupe(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	led.processedFn = func() (map[string]struct{}, error) {
		return map[string]struct{}{"<seen@acme.com>": {}}, nil
	}
	inbox := &mockInbox{messages: []mailer.Inbound{
		inboundFrom(contact, "<seen@acme.com>"),
		inboundFrom(contact, "<new@acme.com>"),
		inboundFrom(contact, "<new@acme.com>"), // duplicate within the batch
	}}
	sender := &mockSender{}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentNeutral}, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, led.replies, 1)
	assert.Equal(t, "<new@acme.com>", led.replies[0].MessageID)
}

func TestCheckRepliesIgnoresUnknownSenders(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	in := inboundFrom(contact, "<r6@other.com>")
	in.From = "stranger@other.com"
	inbox := &mockInbox{messages: []mailer.Inbound{in}}
	sender := &mockSender{}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentPositive}, inbox, sender)

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, sender.sent)
	assert.Empty(t, led.replies)
}

func TestCheckRepliesSkipsScanWithNoRecipients(t *testing.T) {
	led := &mockLedger{
		recipientsFn: func() (map[string]uint, error) { return map[string]uint{}, nil },
	}
	inbox := &mockInbox{messages: []mailer.Inbound{{From: "jane@acme.com", MessageID: "<x@acme.com>"}}}
	p := newTestPipeline(led, llm.Verdict{}, inbox, &mockSender{})

	count, err := p.CheckReplies(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.True(t, inbox.since.IsZero(), "inbox must not be scanned when nobody has been mailed")
}

func TestCheckRepliesRecordsReferrals(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	in := inboundFrom(contact, "<r7@acme.com>")
	in.CC = []string{"colleague@acme.com", "vp@acme.com"}
	inbox := &mockInbox{messages: []mailer.Inbound{in}}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentNeutral}, inbox, &mockSender{})

	_, err := p.CheckReplies(context.Background())
	require.NoError(t, err)

	require.Len(t, led.referrals, 2)
	assert.Equal(t, "colleague@acme.com", led.referrals[0].CCEmail)
	assert.Equal(t, "Acme", led.referrals[0].CompanyName)
	assert.Equal(t, "jane@acme.com", led.referrals[0].ReferredBy)
}

func TestCheckRepliesQuotesOriginal(t *testing.T) {
	contact := knownContact()
	led := replyLedger(contact)
	inbox := &mockInbox{messages: []mailer.Inbound{inboundFrom(contact, "<r8@acme.com>")}}
	sender := &mockSender{}
	p := newTestPipeline(led, llm.Verdict{Sentiment: llm.SentimentNeutral}, inbox, sender)

	_, err := p.CheckReplies(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "> Sounds interesting, let's talk.")
	assert.Contains(t, sender.sent[0].Body, "jane@acme.com wrote:")
}
