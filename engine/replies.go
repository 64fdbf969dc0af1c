package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dripcast/ledger"
	"dripcast/llm"
	"dripcast/mailer"
	"dripcast/models"

	"github.com/sirupsen/logrus"
)

// ReplyPipeline polls the inbox for replies from known contacts,
// classifies each one and answers it, halting the drip sequence for
// the replying contact. Messages are processed sequentially; each
// contact's changes commit independently.
type ReplyPipeline struct {
	ledger     ContactLedger
	gen        ContentGenerator
	classifier ReplyClassifier
	mailer     Sender
	inbox      InboxScanner
	bookingURL string
	lookback   time.Duration
	logger     *logrus.Logger
	now        func() time.Time
}

func NewReplyPipeline(l ContactLedger, gen ContentGenerator, classifier ReplyClassifier, sender Sender, inbox InboxScanner, bookingURL string, lookback time.Duration, logger *logrus.Logger) *ReplyPipeline {
	return &ReplyPipeline{
		ledger:     l,
		gen:        gen,
		classifier: classifier,
		mailer:     sender,
		inbox:      inbox,
		bookingURL: bookingURL,
		lookback:   lookback,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckReplies scans the inbox over the look-back window, matches
// inbound mail to known contacts, deduplicates against already
// processed message ids, and dispatches the per-reply handling.
// Returns the number of newly processed replies.
func (p *ReplyPipeline) CheckReplies(ctx context.Context) (int, error) {
	known, err := p.ledger.KnownRecipients()
	if err != nil {
		return 0, fmt.Errorf("failed to list known recipients: %w", err)
	}
	if len(known) == 0 {
		return 0, nil
	}

	processed, err := p.ledger.ProcessedMessageIDs()
	if err != nil {
		return 0, fmt.Errorf("failed to list processed message ids: %w", err)
	}

	inbound, err := p.inbox.ScanSince(p.now().Add(-p.lookback))
	if err != nil {
		return 0, fmt.Errorf("inbox scan failed: %w", err)
	}

	count := 0
	for _, in := range inbound {
		sender := strings.ToLower(strings.TrimSpace(in.From))
		contactID, ok := known[sender]
		if !ok {
			continue
		}
		if in.MessageID == "" {
			p.logger.WithField("from", sender).Warn("inbound message without id, skipping")
			continue
		}
		if _, done := processed[in.MessageID]; done {
			continue
		}
		processed[in.MessageID] = struct{}{}

		if err := p.processReply(ctx, contactID, in); err != nil {
			p.logger.WithFields(logrus.Fields{
				"contact":    sender,
				"message_id": in.MessageID,
			}).Errorf("reply processing failed: %v", err)
			captureContactError(err, sender)
			continue
		}
		count++
	}
	return count, nil
}

func (p *ReplyPipeline) processReply(ctx context.Context, contactID uint, in mailer.Inbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing reply %s: %v", in.MessageID, r)
		}
	}()

	contact, err := p.ledger.FindByID(contactID)
	if err != nil {
		return err
	}

	// CC'd addresses become referral leads attributed to the replying
	// contact's company.
	if len(in.CC) > 0 {
		leads := make([]models.ReferralLead, 0, len(in.CC))
		for _, cc := range in.CC {
			leads = append(leads, models.ReferralLead{
				CCEmail:     cc,
				CompanyName: contact.CompanyName,
				ReferredBy:  contact.Email,
				SeenAt:      p.now(),
			})
		}
		if err := p.ledger.RecordReferrals(leads); err != nil {
			p.logger.WithField("contact", contact.Email).Warnf("failed to record referrals: %v", err)
		}
	}

	cleanBody := mailer.ExtractMainReply(in.Body)
	verdict := p.classifier.Classify(ctx, cleanBody)

	err = p.ledger.MarkReplied(contact.ID, &models.ContentRecord{
		Subject:   in.Subject,
		Body:      cleanBody,
		MessageID: in.MessageID,
		InReplyTo: in.InReplyTo,
		Reference: in.References,
		Sentiment: verdict.Sentiment,
	})
	if errors.Is(err, ledger.ErrDuplicateMessage) {
		// Lost a race with an overlapping run; the reply is handled.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}

	// A contact already suppressed gets no further outbound mail of
	// any kind; the reply stays recorded for the audit trail.
	if contact.Status == models.StatusDoNotContact {
		p.logger.WithField("contact", contact.Email).Info("reply from suppressed contact recorded, no response sent")
		return nil
	}

	if verdict.StopContact {
		if err := p.ledger.MarkDoNotContact(contact.ID); err != nil {
			return fmt.Errorf("failed to suppress contact: %w", err)
		}
		return p.sendStopAck(ctx, contact, in)
	}

	switch verdict.Sentiment {
	case llm.SentimentPositive:
		if verdict.HasQuery {
			return p.sendQueryResponseWithBooking(ctx, contact, in, verdict.Queries)
		}
		return p.sendMeetingInvite(ctx, contact, in, cleanBody)
	case llm.SentimentNegative:
		if verdict.HasQuery {
			answer := p.gen.NegativeWithQuery(ctx, contact, cleanBody, verdict.Queries)
			return p.respond(ctx, contact, in, models.EmailTypeReplyResponse, "", p.wrapBody(contact, answer))
		}
		return p.respond(ctx, contact, in, models.EmailTypeReplyResponse, "", p.acknowledgmentBody(contact))
	default:
		if verdict.HasQuery {
			answer := p.gen.NeutralWithQuery(ctx, contact, verdict.Queries)
			return p.respond(ctx, contact, in, models.EmailTypeReplyResponse, "", p.wrapBody(contact, answer))
		}
		return p.respond(ctx, contact, in, models.EmailTypeReplyResponse, "", p.neutralAcknowledgmentBody(contact))
	}
}

// wrapBody frames generated answer text with the greeting and
// signature.
func (p *ReplyPipeline) wrapBody(contact *models.Contact, answer string) string {
	return fmt.Sprintf("Hi %s,\n\n%s\n\n%s", contact.Name, strings.TrimSpace(answer), p.gen.Signature())
}

func (p *ReplyPipeline) acknowledgmentBody(contact *models.Contact) string {
	return fmt.Sprintf(`Hi %s,

Thank you for taking the time to respond. I appreciate your feedback and understand that this might not be the right fit or timing for %s.

If circumstances change in the future, please don't hesitate to reach out.

%s`, contact.Name, contact.CompanyName, p.gen.Signature())
}

func (p *ReplyPipeline) neutralAcknowledgmentBody(contact *models.Contact) string {
	return fmt.Sprintf(`Hi %s,

Thank you for taking the time to respond to my message. I understand you may be evaluating various options or have other priorities at the moment.

If you'd like to explore how we might help %s in the future, please don't hesitate to reach out.

%s`, contact.Name, contact.CompanyName, p.gen.Signature())
}

func (p *ReplyPipeline) sendStopAck(ctx context.Context, contact *models.Contact, in mailer.Inbound) error {
	body := fmt.Sprintf(`Hi %s,

As requested, you have been removed from our mailing list and will not receive any further communication from us on this topic.

We appreciate you letting us know.

%s`, contact.Name, p.gen.Signature())
	return p.respond(ctx, contact, in, models.EmailTypeStopContactAck, "", body)
}

func (p *ReplyPipeline) sendQueryResponseWithBooking(ctx context.Context, contact *models.Contact, in mailer.Inbound, queries string) error {
	answer := p.gen.QueryResponse(ctx, contact, queries)
	body := fmt.Sprintf(`Hi %s,

%s

I believe a quick call would be the best way to dive deeper into these points and discuss how we can specifically help %s. Please feel free to schedule a time that works best for you:

%s

%s`, contact.Name, strings.TrimSpace(answer), contact.CompanyName, p.bookingURL, p.gen.Signature())
	return p.respond(ctx, contact, in, models.EmailTypeReplyResponse, "", body)
}

func (p *ReplyPipeline) sendMeetingInvite(ctx context.Context, contact *models.Contact, in mailer.Inbound, replyBody string) error {
	subject, body := p.gen.MeetingInvite(ctx, contact, replyBody)
	bookingLine := "You can book a convenient time on my calendar here: " + p.bookingURL
	body = strings.ReplaceAll(body, "[MEETING_BUTTON]", bookingLine)
	if !strings.Contains(body, p.gen.Signature()) {
		body = body + "\n\n" + p.gen.Signature()
	}
	return p.respond(ctx, contact, in, models.EmailTypeReplyResponse, subject, body)
}

// respond sends one threaded response quoting the inbound message and
// appends it to the contact's content log. An empty subject falls back
// to "Re:" + the inbound subject.
func (p *ReplyPipeline) respond(ctx context.Context, contact *models.Contact, in mailer.Inbound, emailType, subject, body string) error {
	if subject == "" {
		subject = mailer.ReplySubject(in.Subject)
	}
	threading := mailer.BuildThreading(in)
	fullBody := mailer.QuoteOriginal(body, in)

	messageID, err := p.mailer.Send(ctx, contact.Email, subject, fullBody, threading)
	if err != nil {
		return fmt.Errorf("failed to send %s: %w", emailType, err)
	}

	if err := p.ledger.RecordContent(&models.ContentRecord{
		ContactID:   contact.ID,
		ClientEmail: contact.Email,
		EmailType:   emailType,
		Subject:     subject,
		Body:        fullBody,
		MessageID:   messageID,
		InReplyTo:   threading.InReplyTo,
		Reference:   threading.References,
	}); err != nil {
		return fmt.Errorf("failed to record %s: %w", emailType, err)
	}

	p.logger.WithFields(logrus.Fields{
		"contact": contact.Email,
		"type":    emailType,
	}).Info("reply response sent")
	return nil
}
