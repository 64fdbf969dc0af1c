package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"dripcast/ledger"
	"dripcast/llm"
	"dripcast/mailer"
	"dripcast/models"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// mockLedger implements ContactLedger with overridable behavior per
// test; unset functions return zero values.
type mockLedger struct {
	findByIDFn      func(id uint) (*models.Contact, error)
	listNewFn       func() ([]models.Contact, error)
	missingIndFn    func() ([]models.Contact, error)
	listDueFn       func(stage models.DripStage, wait time.Duration, now time.Time) ([]models.Contact, error)
	advanceStageFn  func(contactID uint, stage models.DripStage, sentAt time.Time, record *models.ContentRecord) error
	setIndustryFn   func(contactID uint, industry string) error
	markRepliedFn   func(contactID uint, reply *models.ContentRecord) error
	markDNCFn       func(contactID uint) error
	recordContentFn func(record *models.ContentRecord) error
	referralsFn     func(leads []models.ReferralLead) error
	recipientsFn    func() (map[string]uint, error)
	processedFn     func() (map[string]struct{}, error)
	dripStatusFn    func(contactID uint) (*ledger.DripStatus, error)

	advances   []models.DripStage
	responses  []models.ContentRecord
	replies    []models.ContentRecord
	referrals  []models.ReferralLead
	suppressed []uint
}

func (m *mockLedger) FindByID(id uint) (*models.Contact, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(id)
	}
	return nil, ledger.ErrNotFound
}

func (m *mockLedger) ListNew() ([]models.Contact, error) {
	if m.listNewFn != nil {
		return m.listNewFn()
	}
	return nil, nil
}

func (m *mockLedger) ListMissingIndustry() ([]models.Contact, error) {
	if m.missingIndFn != nil {
		return m.missingIndFn()
	}
	return nil, nil
}

func (m *mockLedger) ListDue(stage models.DripStage, wait time.Duration, now time.Time) ([]models.Contact, error) {
	if m.listDueFn != nil {
		return m.listDueFn(stage, wait, now)
	}
	return nil, nil
}

func (m *mockLedger) AdvanceStage(contactID uint, stage models.DripStage, sentAt time.Time, record *models.ContentRecord) error {
	m.advances = append(m.advances, stage)
	if m.advanceStageFn != nil {
		return m.advanceStageFn(contactID, stage, sentAt, record)
	}
	return nil
}

func (m *mockLedger) SetIndustry(contactID uint, industry string) error {
	if m.setIndustryFn != nil {
		return m.setIndustryFn(contactID, industry)
	}
	return nil
}

func (m *mockLedger) MarkReplied(contactID uint, reply *models.ContentRecord) error {
	m.replies = append(m.replies, *reply)
	if m.markRepliedFn != nil {
		return m.markRepliedFn(contactID, reply)
	}
	return nil
}

func (m *mockLedger) MarkDoNotContact(contactID uint) error {
	m.suppressed = append(m.suppressed, contactID)
	if m.markDNCFn != nil {
		return m.markDNCFn(contactID)
	}
	return nil
}

func (m *mockLedger) RecordContent(record *models.ContentRecord) error {
	m.responses = append(m.responses, *record)
	if m.recordContentFn != nil {
		return m.recordContentFn(record)
	}
	return nil
}

func (m *mockLedger) RecordReferrals(leads []models.ReferralLead) error {
	m.referrals = append(m.referrals, leads...)
	if m.referralsFn != nil {
		return m.referralsFn(leads)
	}
	return nil
}

func (m *mockLedger) KnownRecipients() (map[string]uint, error) {
	if m.recipientsFn != nil {
		return m.recipientsFn()
	}
	return nil, nil
}

func (m *mockLedger) ProcessedMessageIDs() (map[string]struct{}, error) {
	if m.processedFn != nil {
		return m.processedFn()
	}
	return map[string]struct{}{}, nil
}

func (m *mockLedger) DripStatus(contactID uint) (*ledger.DripStatus, error) {
	if m.dripStatusFn != nil {
		return m.dripStatusFn(contactID)
	}
	return nil, ledger.ErrNotFound
}

// mockGenerator returns canned content for every variant.
type mockGenerator struct {
	initialFn  func(contact *models.Contact) (string, string, error)
	dripFn     func(contact *models.Contact, n int) (string, string, error)
	industryFn func(companyName, companyURL string) (string, error)
}

func (m *mockGenerator) Initial(_ context.Context, contact *models.Contact) (string, string, error) {
	if m.initialFn != nil {
		return m.initialFn(contact)
	}
	return "Hello " + contact.Name, "initial body", nil
}

func (m *mockGenerator) Drip(_ context.Context, contact *models.Contact, n int) (string, string, error) {
	if m.dripFn != nil {
		return m.dripFn(contact, n)
	}
	return "Following up", "drip body", nil
}

func (m *mockGenerator) QueryResponse(_ context.Context, _ *models.Contact, queries string) string {
	return "answer to: " + queries
}

func (m *mockGenerator) MeetingInvite(_ context.Context, _ *models.Contact, _ string) (string, string) {
	return "Let's talk", "Great to hear from you.\n\n[MEETING_BUTTON]"
}

func (m *mockGenerator) NegativeWithQuery(_ context.Context, _ *models.Contact, _, queries string) string {
	return "negative answer to: " + queries
}

func (m *mockGenerator) NeutralWithQuery(_ context.Context, _ *models.Contact, queries string) string {
	return "neutral answer to: " + queries
}

func (m *mockGenerator) Signature() string {
	return "Best regards,\nAlex Doe"
}

func (m *mockGenerator) ResolveIndustry(_ context.Context, companyName, companyURL string) (string, error) {
	if m.industryFn != nil {
		return m.industryFn(companyName, companyURL)
	}
	return "Software", nil
}

// mockClassifier returns a fixed verdict.
type mockClassifier struct {
	verdict llm.Verdict
}

func (m *mockClassifier) Classify(_ context.Context, _ string) llm.Verdict {
	return m.verdict
}

// mockSender records every outbound send.
type sentMail struct {
	To        string
	Subject   string
	Body      string
	Threading mailer.Threading
}

type mockSender struct {
	sendFn func(to, subject, body string, threading mailer.Threading) (string, error)
	sent   []sentMail
	nextID int
}

func (m *mockSender) Send(_ context.Context, to, subject, body string, threading mailer.Threading) (string, error) {
	if m.sendFn != nil {
		return m.sendFn(to, subject, body, threading)
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body, Threading: threading})
	m.nextID++
	return fmt.Sprintf("<out-%d@us.com>", m.nextID), nil
}

// mockInbox serves a fixed batch of inbound messages.
type mockInbox struct {
	messages []mailer.Inbound
	since    time.Time
}

func (m *mockInbox) ScanSince(since time.Time) ([]mailer.Inbound, error) {
	m.since = since
	return m.messages, nil
}
