package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dripcast/config"
	"dripcast/ledger"
	"dripcast/mailer"
	"dripcast/models"

	"github.com/sirupsen/logrus"
)

// DripEngine walks every contact through the outbound email sequence:
// initial outreach, then up to three time-gated follow-ups. Contacts
// are processed one at a time and a failure on one never stops the
// rest of the run.
type DripEngine struct {
	ledger ContactLedger
	gen    ContentGenerator
	mailer Sender
	drip   config.DripConfig
	logger *logrus.Logger
	now    func() time.Time
}

func NewDripEngine(l ContactLedger, gen ContentGenerator, sender Sender, drip config.DripConfig, logger *logrus.Logger) *DripEngine {
	return &DripEngine{
		ledger: l,
		gen:    gen,
		mailer: sender,
		drip:   drip,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveIndustries fills in the industry for contacts that are still
// missing one, ahead of the initial-email pass. Returns the number of
// contacts resolved.
func (e *DripEngine) ResolveIndustries(ctx context.Context) (int, error) {
	contacts, err := e.ledger.ListMissingIndustry()
	if err != nil {
		return 0, fmt.Errorf("failed to list contacts missing industry: %w", err)
	}

	resolved := 0
	for i := range contacts {
		contact := &contacts[i]
		industry, err := e.gen.ResolveIndustry(ctx, contact.CompanyName, contact.CompanyURL)
		if err != nil {
			e.logger.WithField("contact", contact.Email).Errorf("industry resolution failed: %v", err)
			captureContactError(err, contact.Email)
			continue
		}
		if err := e.ledger.SetIndustry(contact.ID, industry); err != nil {
			e.logger.WithField("contact", contact.Email).Errorf("failed to store industry: %v", err)
			captureContactError(err, contact.Email)
			continue
		}
		resolved++
	}
	return resolved, nil
}

// ProcessInitialEmails sends the first outreach email to every contact
// that has never been mailed. Contacts whose industry cannot be
// resolved yet are skipped and picked up on a later run. Returns the
// number of initial emails sent.
func (e *DripEngine) ProcessInitialEmails(ctx context.Context) (int, error) {
	contacts, err := e.ledger.ListNew()
	if err != nil {
		return 0, fmt.Errorf("failed to list new contacts: %w", err)
	}

	sent := 0
	for i := range contacts {
		contact := &contacts[i]
		if err := e.processInitial(ctx, contact); err != nil {
			e.logger.WithField("contact", contact.Email).Errorf("initial email failed: %v", err)
			captureContactError(err, contact.Email)
			continue
		}
		sent++
	}
	return sent, nil
}

func (e *DripEngine) processInitial(ctx context.Context, contact *models.Contact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", contact.Email, r)
		}
	}()

	// Industry is mandatory before the first email goes out.
	if contact.Industry == "" {
		if contact.CompanyName == "" || contact.CompanyURL == "" {
			return fmt.Errorf("company name and URL required to resolve industry")
		}
		industry, err := e.gen.ResolveIndustry(ctx, contact.CompanyName, contact.CompanyURL)
		if err != nil {
			return err
		}
		if err := e.ledger.SetIndustry(contact.ID, industry); err != nil {
			return fmt.Errorf("failed to store industry: %w", err)
		}
		contact.Industry = industry
		e.logger.WithFields(logrus.Fields{
			"contact":  contact.Email,
			"industry": industry,
		}).Info("industry resolved")
	}

	subject, body, err := e.gen.Initial(ctx, contact)
	if err != nil {
		return err
	}

	messageID, err := e.mailer.Send(ctx, contact.Email, subject, body, mailer.Threading{})
	if err != nil {
		return err
	}

	sentAt := e.now()
	err = e.ledger.AdvanceStage(contact.ID, models.StageInitial, sentAt, &models.ContentRecord{
		Subject:   subject,
		Body:      body,
		MessageID: messageID,
	})
	if errors.Is(err, ledger.ErrContactHalted) {
		e.logger.WithField("contact", contact.Email).Info("contact halted before commit, not advancing")
		return nil
	}
	return err
}

// ProcessDrips sends every follow-up that has become due. Each stage's
// eligibility is measured from the previous stage's send timestamp.
// Returns the number of drip emails sent.
func (e *DripEngine) ProcessDrips(ctx context.Context) (int, error) {
	stages := []struct {
		stage models.DripStage
		n     int
		wait  time.Duration
	}{
		{models.StageDrip1, 1, e.drip.Drip1Wait},
		{models.StageDrip2, 2, e.drip.Drip2Wait},
		{models.StageDrip3, 3, e.drip.Drip3Wait},
	}

	now := e.now()
	sent := 0
	for _, s := range stages {
		contacts, err := e.ledger.ListDue(s.stage, s.wait, now)
		if err != nil {
			return sent, fmt.Errorf("failed to list contacts due for %s: %w", s.stage, err)
		}
		for i := range contacts {
			contact := &contacts[i]
			if err := e.processDrip(ctx, contact, s.stage, s.n); err != nil {
				e.logger.WithFields(logrus.Fields{
					"contact": contact.Email,
					"stage":   s.stage.String(),
				}).Errorf("drip send failed: %v", err)
				captureContactError(err, contact.Email)
				continue
			}
			sent++
		}
	}
	return sent, nil
}

func (e *DripEngine) processDrip(ctx context.Context, contact *models.Contact, stage models.DripStage, n int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", contact.Email, r)
		}
	}()

	subject, body, err := e.gen.Drip(ctx, contact, n)
	if err != nil {
		return err
	}

	messageID, err := e.mailer.Send(ctx, contact.Email, subject, body, mailer.Threading{})
	if err != nil {
		return err
	}

	err = e.ledger.AdvanceStage(contact.ID, stage, e.now(), &models.ContentRecord{
		Subject:   subject,
		Body:      body,
		MessageID: messageID,
	})
	if errors.Is(err, ledger.ErrContactHalted) {
		// A reply landed between selection and commit; the sequence
		// stays halted and the send is not recorded as a stage advance.
		e.logger.WithField("contact", contact.Email).Info("contact halted before commit, not advancing")
		return nil
	}
	return err
}

// GetDripStatus returns a point-in-time snapshot of a contact's
// campaign progress.
func (e *DripEngine) GetDripStatus(contactID uint) (*ledger.DripStatus, error) {
	return e.ledger.DripStatus(contactID)
}
