package mailer

import (
	"crypto/tls"
	"fmt"
	"io"
	"strings"
	"time"

	"dripcast/config"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"
)

// Inbound is one message pulled from the mailbox during a scan.
type Inbound struct {
	From       string
	CC         []string
	MessageID  string
	InReplyTo  string
	References string
	Subject    string
	Body       string
	Date       time.Time
}

// Inbox scans the configured IMAP mailbox for messages received since a
// time boundary.
type Inbox struct {
	cfg    config.IMAPConfig
	logger *logrus.Logger
}

func NewInbox(cfg config.IMAPConfig, logger *logrus.Logger) *Inbox {
	return &Inbox{cfg: cfg, logger: logger}
}

// ScanSince lists inbound messages received since the given time.
// IMAP SINCE has day granularity; callers filter by the parsed Date
// when they need a tighter boundary.
func (ib *Inbox) ScanSince(since time.Time) ([]Inbound, error) {
	addr := fmt.Sprintf("%s:%d", ib.cfg.Host, ib.cfg.Port)
	c, err := client.DialTLS(addr, &tls.Config{ServerName: ib.cfg.Host})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(ib.cfg.Username, ib.cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	mailbox := ib.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := c.Select(mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var inbound []Inbound
	for msg := range messages {
		in, err := ib.parseMessage(msg, section)
		if err != nil {
			ib.logger.Warnf("failed to parse message %d: %v", msg.SeqNum, err)
			continue
		}
		inbound = append(inbound, in)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}
	return inbound, nil
}

func (ib *Inbox) parseMessage(msg *imap.Message, section *imap.BodySectionName) (Inbound, error) {
	in := Inbound{}
	if msg.Envelope != nil {
		in.MessageID = msg.Envelope.MessageId
		in.InReplyTo = msg.Envelope.InReplyTo
		in.Subject = msg.Envelope.Subject
		in.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			in.From = formatAddress(msg.Envelope.From[0])
		}
		for _, cc := range msg.Envelope.Cc {
			in.CC = append(in.CC, formatAddress(cc))
		}
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return in, fmt.Errorf("message body section missing")
	}

	mr, err := mail.CreateReader(literal)
	if err != nil {
		return in, fmt.Errorf("failed to create message reader: %w", err)
	}
	if refs := mr.Header.Get("References"); refs != "" {
		in.References = refs
	}

	// Prefer the text/plain part; fall back to stripped-down HTML text
	// only when no plain part exists.
	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return in, fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			b, err := io.ReadAll(p.Body)
			if err != nil {
				return in, fmt.Errorf("failed to read body part: %w", err)
			}
			if strings.Contains(contentType, "text/plain") && plain == "" {
				plain = string(b)
			} else if strings.Contains(contentType, "text/html") && html == "" {
				html = string(b)
			}
		}
	}

	if plain != "" {
		in.Body = plain
	} else {
		in.Body = html
	}
	return in, nil
}

func formatAddress(addr *imap.Address) string {
	return strings.ToLower(fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName))
}
