package models

import (
	"time"

	"gorm.io/gorm"
)

// ContentRecord email types.
const (
	EmailTypeInitial        = "initial"
	EmailTypeDrip1          = "drip_1"
	EmailTypeDrip2          = "drip_2"
	EmailTypeDrip3          = "drip_3"
	EmailTypeReply          = "reply"
	EmailTypeReplyResponse  = "reply_response"
	EmailTypeThreadCreated  = "thread_created"
	EmailTypeStopContactAck = "stop_contact_ack"
)

// ContentRecord is one append-only log entry per email sent or
// received for a contact. MessageID doubles as the idempotency key for
// reply ingestion: an inbound message whose id is already recorded has
// been processed.
type ContentRecord struct {
	gorm.Model
	ContactID   uint   `gorm:"not null;index" json:"contact_id"`
	ClientEmail string `json:"client_email"`

	EmailType string `gorm:"not null;index" json:"email_type"`
	Subject   string `json:"subject"`
	Body      string `gorm:"type:text" json:"body"`

	// Transport and LM continuity identifiers
	MessageID string `gorm:"uniqueIndex:idx_content_message_id,where:message_id <> ''" json:"message_id"`
	ThreadID  string `json:"thread_id"`
	InReplyTo string `json:"in_reply_to"`
	Reference string `gorm:"type:text" json:"reference"`

	// Set only on classified replies
	Sentiment string `json:"sentiment"`

	// Relations
	Contact Contact `json:"-"`
}

// ReferralLead captures a CC'd address seen on an inbound reply,
// attributed to the replying contact's company.
type ReferralLead struct {
	gorm.Model
	CCEmail     string    `gorm:"not null" json:"cc_email"`
	CompanyName string    `json:"company_name"`
	ReferredBy  string    `gorm:"index" json:"referred_by"`
	SeenAt      time.Time `json:"seen_at"`
}
