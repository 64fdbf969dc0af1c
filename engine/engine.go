package engine

import (
	"context"
	"time"

	"dripcast/ledger"
	"dripcast/llm"
	"dripcast/mailer"
	"dripcast/models"

	"github.com/getsentry/sentry-go"
)

// ContactLedger is the persistence capability both orchestrators
// mutate. Implemented by ledger.Ledger; every mutation commits in its
// own transaction so one contact's failure cannot roll back another's
// progress.
type ContactLedger interface {
	FindByID(id uint) (*models.Contact, error)
	ListNew() ([]models.Contact, error)
	ListMissingIndustry() ([]models.Contact, error)
	ListDue(stage models.DripStage, wait time.Duration, now time.Time) ([]models.Contact, error)
	AdvanceStage(contactID uint, stage models.DripStage, sentAt time.Time, record *models.ContentRecord) error
	SetIndustry(contactID uint, industry string) error
	MarkReplied(contactID uint, reply *models.ContentRecord) error
	MarkDoNotContact(contactID uint) error
	RecordContent(record *models.ContentRecord) error
	RecordReferrals(leads []models.ReferralLead) error
	KnownRecipients() (map[string]uint, error)
	ProcessedMessageIDs() (map[string]struct{}, error)
	DripStatus(contactID uint) (*ledger.DripStatus, error)
}

// ContentGenerator composes subject/body text for every outbound email
// variant. Implemented by llm.Generator.
type ContentGenerator interface {
	Initial(ctx context.Context, contact *models.Contact) (string, string, error)
	Drip(ctx context.Context, contact *models.Contact, n int) (string, string, error)
	QueryResponse(ctx context.Context, contact *models.Contact, queries string) string
	MeetingInvite(ctx context.Context, contact *models.Contact, replyBody string) (string, string)
	NegativeWithQuery(ctx context.Context, contact *models.Contact, replyBody, queries string) string
	NeutralWithQuery(ctx context.Context, contact *models.Contact, queries string) string
	Signature() string
	ResolveIndustry(ctx context.Context, companyName, companyURL string) (string, error)
}

// ReplyClassifier turns a reply body into a structured verdict.
// Implemented by llm.Classifier; never fails, defaults to NEUTRAL.
type ReplyClassifier interface {
	Classify(ctx context.Context, replyBody string) llm.Verdict
}

// Sender delivers one email and returns its transport message id.
// Implemented by mailer.Mailer.
type Sender interface {
	Send(ctx context.Context, to, subject, body string, threading mailer.Threading) (string, error)
}

// InboxScanner lists inbound messages since a time boundary.
// Implemented by mailer.Inbox.
type InboxScanner interface {
	ScanSince(since time.Time) ([]mailer.Inbound, error)
}

// captureContactError reports a per-contact failure to Sentry with the
// contact attached, without interrupting the batch.
func captureContactError(err error, email string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("contact", email)
		sentry.CaptureException(err)
	})
}
