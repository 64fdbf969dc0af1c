package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dripcast/models"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateContact is returned by Create when the email address
	// is already present in the ledger.
	ErrDuplicateContact = errors.New("contact with this email already exists")

	// ErrContactHalted is returned by AdvanceStage when the contact
	// reached a terminal state after it was selected for sending. The
	// in-transaction re-check exists because a reply can land while a
	// drip send for the same contact is in flight; the send may go out,
	// but the ledger refuses to advance the sequence.
	ErrContactHalted = errors.New("contact is in a terminal state")

	// ErrDuplicateMessage is returned when a content record's message
	// id has already been recorded.
	ErrDuplicateMessage = errors.New("message id already recorded")

	ErrNotFound = errors.New("contact not found")
)

// ContactProfile is the caller-supplied data for a new contact.
type ContactProfile struct {
	Name        string
	Email       string
	CompanyName string
	CompanyURL  string
	LinkedIn    string
	Industry    string
}

// Ledger is the persistent record of every contact's campaign state
// plus the append-only log of emails sent and received. Every mutation
// runs in its own transaction so a failure on one contact never rolls
// back progress committed for another.
type Ledger struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func New(db *gorm.DB, logger *logrus.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

func (l *Ledger) FindByEmail(email string) (*models.Contact, error) {
	var contact models.Contact
	err := l.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (l *Ledger) FindByID(id uint) (*models.Contact, error) {
	var contact models.Contact
	err := l.db.First(&contact, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// Create inserts a new contact. The email address is normalized and
// validated before insert.
func (l *Ledger) Create(profile ContactProfile) (*models.Contact, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, fmt.Errorf("invalid email %q: %w", profile.Email, err)
	}

	contact := models.Contact{
		Name:        profile.Name,
		Email:       email,
		CompanyName: profile.CompanyName,
		CompanyURL:  profile.CompanyURL,
		LinkedIn:    profile.LinkedIn,
		Industry:    profile.Industry,
	}

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Contact{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateContact
		}
		return tx.Create(&contact).Error
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// ListNew returns contacts that have never received the initial email,
// excluding suppressed ones.
func (l *Ledger) ListNew() ([]models.Contact, error) {
	var contacts []models.Contact
	err := l.db.
		Where("mail_sent_status = ?", models.MailStatusNone).
		Where("status IS NULL OR status NOT IN ?", []string{models.StatusDoNotContact, models.StatusReplied}).
		Order("id").
		Find(&contacts).Error
	return contacts, err
}

// ListMissingIndustry returns unmailed contacts whose industry has not
// been resolved yet but whose profile carries enough to resolve it.
func (l *Ledger) ListMissingIndustry() ([]models.Contact, error) {
	var contacts []models.Contact
	err := l.db.
		Where("industry = '' OR industry IS NULL").
		Where("company_name <> '' AND company_url <> ''").
		Where("mail_sent_status = ?", models.MailStatusNone).
		Where("status IS NULL OR status NOT IN ?", []string{models.StatusDoNotContact, models.StatusReplied}).
		Order("id").
		Find(&contacts).Error
	return contacts, err
}

// ListDue returns contacts whose pending stage matches stage and whose
// anchor timestamp is at least wait in the past at time now. Suppressed
// and replied contacts are excluded at selection time; AdvanceStage
// re-checks before commit.
func (l *Ledger) ListDue(stage models.DripStage, wait time.Duration, now time.Time) ([]models.Contact, error) {
	var precondition int
	var anchorColumn string
	switch stage {
	case models.StageDrip1:
		precondition, anchorColumn = models.MailStatusInitial, "first_mail_date"
	case models.StageDrip2:
		precondition, anchorColumn = models.MailStatusDrip1, "drip1_date"
	case models.StageDrip3:
		precondition, anchorColumn = models.MailStatusDrip2, "drip2_date"
	default:
		return nil, fmt.Errorf("stage %s has no due query", stage)
	}

	cutoff := now.Add(-wait)
	var contacts []models.Contact
	err := l.db.
		Where("mail_sent_status = ?", precondition).
		Where(anchorColumn+" IS NOT NULL AND "+anchorColumn+" <= ?", cutoff).
		Where("status IS NULL OR status NOT IN ?", []string{models.StatusDoNotContact, models.StatusReplied}).
		Order("id").
		Find(&contacts).Error
	return contacts, err
}

// AdvanceStage marks stage as sent at sentAt and appends the outbound
// content record, atomically. Calling it again for a contact already
// advanced past stage is a no-op, so retried batch runs stay
// idempotent.
func (l *Ledger) AdvanceStage(contactID uint, stage models.DripStage, sentAt time.Time, record *models.ContentRecord) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		if err := tx.First(&contact, contactID).Error; err != nil {
			return err
		}

		// Terminal re-check inside the transaction: a reply may have
		// halted the contact between selection and commit.
		if contact.Suppressed() {
			return ErrContactHalted
		}

		// Retry no-op: the stage already committed on an earlier run,
		// including a retried final drip on an exhausted contact.
		if models.StageCovered(&contact, stage) {
			return nil
		}
		if err := models.ValidateAdvance(&contact, stage); err != nil {
			return err
		}

		models.ApplyAdvance(&contact, stage, sentAt)
		if err := tx.Save(&contact).Error; err != nil {
			return err
		}

		if record != nil {
			record.ContactID = contact.ID
			record.ClientEmail = contact.Email
			record.EmailType = stage.EmailType()
			if err := tx.Create(record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordContent appends a content record. Records carrying a message id
// are deduplicated against the whole ledger.
func (l *Ledger) RecordContent(record *models.ContentRecord) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		if record.MessageID != "" {
			var count int64
			if err := tx.Model(&models.ContentRecord{}).Where("message_id = ?", record.MessageID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateMessage
			}
		}
		return tx.Create(record).Error
	})
}

// HasMessageID reports whether an inbound message id has already been
// processed.
func (l *Ledger) HasMessageID(messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var count int64
	err := l.db.Model(&models.ContentRecord{}).Where("message_id = ?", messageID).Count(&count).Error
	return count > 0, err
}

// MarkReplied records the classified inbound reply and halts the drip
// sequence for the contact in a single transaction.
func (l *Ledger) MarkReplied(contactID uint, reply *models.ContentRecord) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var contact models.Contact
		if err := tx.First(&contact, contactID).Error; err != nil {
			return err
		}

		if reply.MessageID != "" {
			var count int64
			if err := tx.Model(&models.ContentRecord{}).Where("message_id = ?", reply.MessageID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateMessage
			}
		}

		reply.ContactID = contact.ID
		reply.ClientEmail = contact.Email
		reply.EmailType = models.EmailTypeReply
		if err := tx.Create(reply).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"mail_sent_status": models.MailStatusReplied,
		}
		// Never downgrade a do_not_contact marker back to replied.
		if contact.Status != models.StatusDoNotContact {
			updates["status"] = models.StatusReplied
		}
		return tx.Model(&contact).Updates(updates).Error
	})
}

// MarkDoNotContact permanently excludes the contact from automated
// sends.
func (l *Ledger) MarkDoNotContact(contactID uint) error {
	return l.db.Model(&models.Contact{}).Where("id = ?", contactID).
		Update("status", models.StatusDoNotContact).Error
}

// SetIndustry stores a resolved industry on the contact.
func (l *Ledger) SetIndustry(contactID uint, industry string) error {
	return l.db.Model(&models.Contact{}).Where("id = ?", contactID).
		Update("industry", industry).Error
}

// SetBookingStatus marks that the contact followed the booking link.
func (l *Ledger) SetBookingStatus(contactID uint, status string) error {
	return l.db.Model(&models.Contact{}).Where("id = ?", contactID).
		Update("booking_status", status).Error
}

// RecordReferrals stores CC'd addresses from a reply as leads.
func (l *Ledger) RecordReferrals(leads []models.ReferralLead) error {
	if len(leads) == 0 {
		return nil
	}
	return l.db.Create(&leads).Error
}

// KnownRecipients returns a lookup of every contact email that has had
// at least one email sent, mapped to the contact id.
func (l *Ledger) KnownRecipients() (map[string]uint, error) {
	var contacts []models.Contact
	if err := l.db.Select("id", "email").
		Where("mail_sent_status > ?", models.MailStatusNone).
		Find(&contacts).Error; err != nil {
		return nil, err
	}
	known := make(map[string]uint, len(contacts))
	for _, c := range contacts {
		known[strings.ToLower(strings.TrimSpace(c.Email))] = c.ID
	}
	return known, nil
}

// ProcessedMessageIDs returns the set of transport message ids already
// present in the ledger.
func (l *Ledger) ProcessedMessageIDs() (map[string]struct{}, error) {
	var ids []string
	if err := l.db.Model(&models.ContentRecord{}).
		Where("message_id <> ''").
		Pluck("message_id", &ids).Error; err != nil {
		return nil, err
	}
	processed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		processed[id] = struct{}{}
	}
	return processed, nil
}

// ThreadID returns the contact's persisted conversation-thread id, or
// "" when none has been created yet.
func (l *Ledger) ThreadID(contactID uint) (string, error) {
	var record models.ContentRecord
	err := l.db.Where("contact_id = ? AND thread_id <> ''", contactID).
		Order("id").First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.ThreadID, nil
}

// SaveThread persists a freshly created conversation-thread id as a
// thread_created record. If a concurrent call already stored one, the
// existing id wins.
func (l *Ledger) SaveThread(contactID uint, threadID string) (string, error) {
	saved := threadID
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var existing models.ContentRecord
		err := tx.Where("contact_id = ? AND thread_id <> ''", contactID).
			Order("id").First(&existing).Error
		if err == nil {
			saved = existing.ThreadID
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var contact models.Contact
		if err := tx.First(&contact, contactID).Error; err != nil {
			return err
		}
		return tx.Create(&models.ContentRecord{
			ContactID:   contact.ID,
			ClientEmail: contact.Email,
			EmailType:   models.EmailTypeThreadCreated,
			Subject:     "Thread Created",
			Body:        "Conversation thread created for contact",
			ThreadID:    threadID,
		}).Error
	})
	if err != nil {
		return "", err
	}
	return saved, nil
}

// DripStatus is a read-only snapshot of a contact's campaign progress.
type DripStatus struct {
	ContactID      uint       `json:"contact_id"`
	Email          string     `json:"email"`
	Status         string     `json:"status"`
	State          string     `json:"state"`
	MailSentStatus int        `json:"mail_sent_status"`
	FirstMailDate  *time.Time `json:"first_mail_date"`
	Drip1Date      *time.Time `json:"drip1_date"`
	Drip2Date      *time.Time `json:"drip2_date"`
	Drip3Date      *time.Time `json:"drip3_date"`
	BookingStatus  string     `json:"booking_status"`
}

func (l *Ledger) DripStatus(contactID uint) (*DripStatus, error) {
	contact, err := l.FindByID(contactID)
	if err != nil {
		return nil, err
	}
	return &DripStatus{
		ContactID:      contact.ID,
		Email:          contact.Email,
		Status:         contact.Status,
		State:          models.StateOf(contact).String(),
		MailSentStatus: contact.MailSentStatus,
		FirstMailDate:  contact.FirstMailDate,
		Drip1Date:      contact.Drip1Date,
		Drip2Date:      contact.Drip2Date,
		Drip3Date:      contact.Drip3Date,
		BookingStatus:  contact.BookingStatus,
	}, nil
}
