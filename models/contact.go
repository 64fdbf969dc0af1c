package models

import (
	"time"

	"gorm.io/gorm"
)

// Reserved Contact.Status values. Any other value is a free-form marker
// set by operators and has no effect on automated sending.
const (
	StatusReplied      = "replied"
	StatusDoNotContact = "do_not_contact"
)

// MailSentStatus values. Zero means no initial email has been sent yet.
const (
	MailStatusNone    = 0
	MailStatusInitial = 1 // initial sent, awaiting drip-1
	MailStatusDrip1   = 2 // drip-1 sent, awaiting drip-2
	MailStatusDrip2   = 3 // drip-2 sent, awaiting drip-3
	MailStatusDrip3   = 4 // drip-3 sent, sequence exhausted
	MailStatusReplied = 5 // contact replied, sequence halted
)

// Contact is one outreach target, keyed by unique email address.
type Contact struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Email       string `gorm:"not null;uniqueIndex" json:"email"`
	CompanyName string `json:"company_name"`
	CompanyURL  string `json:"company_url"`
	LinkedIn    string `json:"linkedin"`
	Industry    string `json:"industry"`

	Status        string `gorm:"index" json:"status"`
	BookingStatus string `json:"booking_status"`

	// Campaign lifecycle. MailSentStatus advances 0->4 as stages are
	// sent and jumps to 5 when the contact replies. Each stage date is
	// set exactly once, at send time, and anchors the next stage's
	// eligibility window.
	MailSentStatus int        `gorm:"default:0;index" json:"mail_sent_status"`
	FirstMailDate  *time.Time `json:"first_mail_date"`
	Drip1Date      *time.Time `json:"drip1_date"`
	Drip2Date      *time.Time `json:"drip2_date"`
	Drip3Date      *time.Time `json:"drip3_date"`

	// Relations
	ContentRecords []ContentRecord `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE" json:"content_records,omitempty"`
}

// Suppressed reports whether automated outbound email must never be
// generated for this contact again.
func (c *Contact) Suppressed() bool {
	return c.Status == StatusDoNotContact || c.MailSentStatus == MailStatusReplied
}

// AnchorDate returns the timestamp the next stage's eligibility is
// measured from, or nil when the contact has no pending stage.
func (c *Contact) AnchorDate() *time.Time {
	switch c.MailSentStatus {
	case MailStatusInitial:
		return c.FirstMailDate
	case MailStatusDrip1:
		return c.Drip1Date
	case MailStatusDrip2:
		return c.Drip2Date
	}
	return nil
}
