package models

import (
	"fmt"
	"time"
)

// DripState is the explicit campaign state of a contact. It is derived
// from the persisted status columns; StateOf is the single source of
// truth for that mapping.
type DripState int

const (
	StateNew DripState = iota
	StateAwaitingDrip1
	StateAwaitingDrip2
	StateAwaitingDrip3
	StateExhausted
	StateReplied
	StateSuppressed
)

func (s DripState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateAwaitingDrip1:
		return "AWAITING_DRIP1"
	case StateAwaitingDrip2:
		return "AWAITING_DRIP2"
	case StateAwaitingDrip3:
		return "AWAITING_DRIP3"
	case StateExhausted:
		return "EXHAUSTED"
	case StateReplied:
		return "REPLIED"
	case StateSuppressed:
		return "SUPPRESSED"
	}
	return fmt.Sprintf("DripState(%d)", int(s))
}

// Terminal states accept no further transitions from the drip engine.
func (s DripState) Terminal() bool {
	return s == StateExhausted || s == StateReplied || s == StateSuppressed
}

// StateOf maps a contact's persisted columns to its campaign state.
// Suppression wins over everything else.
func StateOf(c *Contact) DripState {
	if c.Status == StatusDoNotContact {
		return StateSuppressed
	}
	if c.MailSentStatus == MailStatusReplied || c.Status == StatusReplied {
		return StateReplied
	}
	switch c.MailSentStatus {
	case MailStatusNone:
		return StateNew
	case MailStatusInitial:
		return StateAwaitingDrip1
	case MailStatusDrip1:
		return StateAwaitingDrip2
	case MailStatusDrip2:
		return StateAwaitingDrip3
	default:
		return StateExhausted
	}
}

// DripStage identifies one outbound email in the sequence.
type DripStage int

const (
	StageInitial DripStage = iota
	StageDrip1
	StageDrip2
	StageDrip3
)

func (st DripStage) String() string {
	switch st {
	case StageInitial:
		return EmailTypeInitial
	case StageDrip1:
		return EmailTypeDrip1
	case StageDrip2:
		return EmailTypeDrip2
	case StageDrip3:
		return EmailTypeDrip3
	}
	return fmt.Sprintf("DripStage(%d)", int(st))
}

// EmailType returns the ContentRecord email type for this stage.
func (st DripStage) EmailType() string { return st.String() }

// PendingStage returns the stage the contact is waiting on, or false
// when the contact is in a state with nothing left to send.
func PendingStage(c *Contact) (DripStage, bool) {
	switch StateOf(c) {
	case StateNew:
		return StageInitial, true
	case StateAwaitingDrip1:
		return StageDrip1, true
	case StateAwaitingDrip2:
		return StageDrip2, true
	case StateAwaitingDrip3:
		return StageDrip3, true
	}
	return 0, false
}

// StageDue reports whether the contact's pending drip stage has become
// eligible at time now, given the configured wait for that stage. The
// initial email has no wait and is never reported here; it is handled
// by the initial-email pass.
func StageDue(c *Contact, stage DripStage, wait time.Duration, now time.Time) bool {
	anchor := c.AnchorDate()
	if anchor == nil {
		return false
	}
	pending, ok := PendingStage(c)
	if !ok || pending != stage || stage == StageInitial {
		return false
	}
	return now.Sub(*anchor) >= wait
}

// StageCovered reports whether the contact's mail status already
// reflects a committed send of stage. Sending a stage leaves
// MailSentStatus one past the stage index, so any higher value means
// the stage is behind the contact.
func StageCovered(c *Contact, stage DripStage) bool {
	return c.MailSentStatus > int(stage)
}

// ValidateAdvance rejects stage transitions that would break the
// monotonicity invariants: a stage may only be marked sent when it is
// exactly the contact's pending stage.
func ValidateAdvance(c *Contact, stage DripStage) error {
	if StateOf(c).Terminal() {
		return fmt.Errorf("contact %s is in terminal state %s", c.Email, StateOf(c))
	}
	pending, ok := PendingStage(c)
	if !ok {
		return fmt.Errorf("contact %s has no pending stage", c.Email)
	}
	if pending != stage {
		return fmt.Errorf("contact %s expects stage %s, got %s", c.Email, pending, stage)
	}
	return nil
}

// ApplyAdvance mutates the contact for a confirmed send of stage at
// sentAt. Callers must have validated the transition first.
func ApplyAdvance(c *Contact, stage DripStage, sentAt time.Time) {
	ts := sentAt
	switch stage {
	case StageInitial:
		c.FirstMailDate = &ts
		c.MailSentStatus = MailStatusInitial
	case StageDrip1:
		c.Drip1Date = &ts
		c.MailSentStatus = MailStatusDrip1
	case StageDrip2:
		c.Drip2Date = &ts
		c.MailSentStatus = MailStatusDrip2
	case StageDrip3:
		c.Drip3Date = &ts
		c.MailSentStatus = MailStatusDrip3
	}
}
