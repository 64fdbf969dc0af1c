package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dripcast/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	maxSendAttempts = 3
	sendBackoff     = 5 * time.Second
)

// Threading carries the reply-threading headers for an outbound email.
// Zero value means a fresh conversation.
type Threading struct {
	InReplyTo  string
	References string
}

// Mailer sends outbound email over SMTP. Every send gets a generated
// Message-ID which is returned on success and recorded in the ledger
// as the durable transport identifier.
type Mailer struct {
	cfg    config.SMTPConfig
	quota  *SendQuota
	logger *logrus.Logger
}

func New(cfg config.SMTPConfig, quota *SendQuota, logger *logrus.Logger) *Mailer {
	return &Mailer{cfg: cfg, quota: quota, logger: logger}
}

// newMessageID builds an RFC 5322 Message-ID under the sender domain.
func (m *Mailer) newMessageID() string {
	domain := m.cfg.FromEmail
	if at := strings.LastIndex(domain, "@"); at >= 0 {
		domain = domain[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

// Send delivers a plain-text email, retrying transient SMTP failures
// with increasing delay. It returns the generated Message-ID.
func (m *Mailer) Send(ctx context.Context, to, subject, body string, threading Threading) (string, error) {
	if m.quota != nil {
		if err := m.quota.Allow(ctx); err != nil {
			return "", err
		}
	}

	messageID := m.newMessageID()

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.cfg.FromEmail, m.cfg.FromName))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetHeader("Date", time.Now().Format(time.RFC1123Z))
	if threading.InReplyTo != "" {
		msg.SetHeader("In-Reply-To", threading.InReplyTo)
	}
	if refs := mergeReferences(threading.References, threading.InReplyTo); refs != "" {
		msg.SetHeader("References", refs)
	}
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	var err error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if err = dialer.DialAndSend(msg); err == nil {
			m.logger.WithFields(logrus.Fields{
				"to":         to,
				"message_id": messageID,
			}).Info("email sent")
			return messageID, nil
		}
		m.logger.WithFields(logrus.Fields{
			"to":      to,
			"attempt": attempt,
		}).Warnf("smtp send failed: %v", err)
		if attempt == maxSendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sendBackoff * time.Duration(attempt)):
		}
	}
	return "", fmt.Errorf("failed to send email to %s after %d attempts: %w", to, maxSendAttempts, err)
}

// mergeReferences appends inReplyTo to the chain if it's not already
// present, preserving order.
func mergeReferences(references, inReplyTo string) string {
	var refs []string
	seen := make(map[string]struct{})
	for _, ref := range strings.Fields(references) {
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	if inReplyTo != "" {
		if _, ok := seen[inReplyTo]; !ok {
			refs = append(refs, inReplyTo)
		}
	}
	return strings.Join(refs, " ")
}
