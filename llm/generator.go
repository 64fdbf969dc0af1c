package llm

import (
	"context"
	"fmt"

	"dripcast/config"
	"dripcast/models"

	"github.com/sirupsen/logrus"
)

// ThreadStore persists the one conversation-thread id each contact
// gets. SaveThread returns the winning id in case a concurrent caller
// stored one first.
type ThreadStore interface {
	ThreadID(contactID uint) (string, error)
	SaveThread(contactID uint, threadID string) (string, error)
}

// Generator produces subject/body content for every outbound email
// variant. All contact-facing generation runs on the contact's
// conversation thread so the model keeps context across the sequence.
type Generator struct {
	client  *Client
	threads ThreadStore
	sender  config.SenderIdentity
	logger  *logrus.Logger
}

func NewGenerator(client *Client, threads ThreadStore, sender config.SenderIdentity, logger *logrus.Logger) *Generator {
	return &Generator{client: client, threads: threads, sender: sender, logger: logger}
}

func (g *Generator) signature() string {
	return fmt.Sprintf("Best regards,\n%s\n%s\n%s", g.sender.Name, g.sender.Title, g.sender.Company)
}

// threadFor returns the contact's persisted thread id, creating and
// persisting one on first use.
func (g *Generator) threadFor(ctx context.Context, contact *models.Contact) (string, error) {
	existing, err := g.threads.ThreadID(contact.ID)
	if err != nil {
		return "", fmt.Errorf("failed to look up thread for %s: %w", contact.Email, err)
	}
	if existing != "" {
		return existing, nil
	}

	created, err := g.client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create thread for %s: %w", contact.Email, err)
	}
	saved, err := g.threads.SaveThread(contact.ID, created)
	if err != nil {
		// The OpenAI thread exists even if persisting it failed; use it
		// for this generation and let the next call retry the save.
		g.logger.WithField("contact", contact.Email).Warnf("failed to persist thread id: %v", err)
		return created, nil
	}
	return saved, nil
}

// Initial generates the first outreach email. On LM failure the error
// is returned and the contact is retried on the next run; on parse
// trouble the fallback chain keeps the send alive.
func (g *Generator) Initial(ctx context.Context, contact *models.Contact) (string, string, error) {
	threadID, err := g.threadFor(ctx, contact)
	if err != nil {
		return "", "", err
	}

	prompt := fmt.Sprintf(initialPromptTemplate,
		g.sender.Name, g.sender.Title, g.sender.Company,
		contact.Name, contact.CompanyName, contact.Industry, contact.CompanyURL,
		contact.Name, g.sender.Company,
		g.sender.Name, g.sender.Title, g.sender.Company,
	)
	content, err := g.client.RunAssistant(ctx, threadID, prompt)
	if err != nil {
		return "", "", fmt.Errorf("initial content generation failed for %s: %w", contact.Email, err)
	}

	subject, body := SplitSubjectBody(content,
		fmt.Sprintf("Partnership opportunity for %s", contact.CompanyName),
		fmt.Sprintf("Hi %s,\n\nI hope this email finds you well.\n\n%s", contact.Name, g.signature()),
	)
	return subject, body, nil
}

// Drip generates follow-up number n (1..3).
func (g *Generator) Drip(ctx context.Context, contact *models.Contact, n int) (string, string, error) {
	threadID, err := g.threadFor(ctx, contact)
	if err != nil {
		return "", "", err
	}

	prompt := fmt.Sprintf(dripPromptTemplate,
		g.sender.Name, g.sender.Title, g.sender.Company, n,
		contact.Name, contact.CompanyName, contact.Industry,
		contact.Industry,
		contact.Name,
		g.sender.Name, g.sender.Title, g.sender.Company,
	)
	content, err := g.client.RunAssistant(ctx, threadID, prompt)
	if err != nil {
		return "", "", fmt.Errorf("drip %d content generation failed for %s: %w", n, contact.Email, err)
	}

	subject, body := SplitSubjectBody(content,
		"Following up",
		fmt.Sprintf("Hi %s,\n\nI wanted to briefly follow up on my earlier note.\n\n%s", contact.Name, g.signature()),
	)
	return subject, body, nil
}

// QueryResponse answers a positive reply's questions. Reply responses
// fail safe: on LM failure a deterministic fallback body is returned so
// the contact still gets an answer.
func (g *Generator) QueryResponse(ctx context.Context, contact *models.Contact, queries string) string {
	threadID, err := g.threadFor(ctx, contact)
	if err == nil {
		prompt := fmt.Sprintf(queryResponsePromptTemplate, queries, g.sender.Company)
		if content, err := g.client.RunAssistant(ctx, threadID, prompt); err == nil {
			return content
		}
	}
	g.logger.WithField("contact", contact.Email).Warn("using fallback query response")
	return fmt.Sprintf(
		"Thank you for your interest and questions. While each engagement is unique, we have helped companies in %s achieve significant results, and I would be glad to walk through how that applies to %s.",
		contact.Industry, contact.CompanyName)
}

// MeetingInvite writes a personalized meeting invitation responding to
// replyBody. The returned body contains the [MEETING_BUTTON]
// placeholder; the caller substitutes the booking link.
func (g *Generator) MeetingInvite(ctx context.Context, contact *models.Contact, replyBody string) (string, string) {
	prompt := fmt.Sprintf(meetingInvitePromptTemplate,
		g.sender.Name, g.sender.Title, g.sender.Company,
		contact.Name, contact.CompanyName, replyBody,
		g.sender.Company,
	)
	content, err := g.client.Complete(ctx, prompt, 0.3)
	if err != nil {
		g.logger.WithField("contact", contact.Email).Warn("using fallback meeting invite")
		content = fmt.Sprintf(
			"Thank you for your reply, it is great to hear this resonates. I would love to walk you through how we can help %s in a brief introductory call. [MEETING_BUTTON]",
			contact.CompanyName)
	}

	subject, body := SplitSubjectBody(content, "", content)
	return subject, body
}

// NegativeWithQuery answers questions inside a rejection.
func (g *Generator) NegativeWithQuery(ctx context.Context, contact *models.Contact, replyBody, queries string) string {
	threadID, err := g.threadFor(ctx, contact)
	if err == nil {
		prompt := fmt.Sprintf(negativeQueryPromptTemplate, replyBody, queries)
		if content, err := g.client.RunAssistant(ctx, threadID, prompt); err == nil {
			return content
		}
	}
	g.logger.WithField("contact", contact.Email).Warn("using fallback negative response")
	return fmt.Sprintf(
		"Thank you for your honest feedback and for taking the time to respond. I completely understand this may not be the right fit for %s at this time. Regarding your questions: %s — I am happy to share what insight I can, regardless of whether we work together.",
		contact.CompanyName, queries)
}

// NeutralWithQuery answers questions in a neutral reply, value first,
// no booking push.
func (g *Generator) NeutralWithQuery(ctx context.Context, contact *models.Contact, queries string) string {
	threadID, err := g.threadFor(ctx, contact)
	if err == nil {
		prompt := fmt.Sprintf(neutralQueryPromptTemplate, queries)
		if content, err := g.client.RunAssistant(ctx, threadID, prompt); err == nil {
			return content
		}
	}
	g.logger.WithField("contact", contact.Email).Warn("using fallback neutral response")
	return fmt.Sprintf(
		"Thank you for taking the time to respond and for your questions. Regarding: %s — I am glad to share detail that could be useful for %s whether or not we end up working together.",
		queries, contact.CompanyName)
}

// Signature is the persona sign-off appended to composed reply bodies.
func (g *Generator) Signature() string { return g.signature() }

// ResolveIndustry asks the model for the company's industry label.
func (g *Generator) ResolveIndustry(ctx context.Context, companyName, companyURL string) (string, error) {
	prompt := fmt.Sprintf(industryPromptTemplate, companyName, companyURL)
	industry, err := g.client.Complete(ctx, prompt, 0)
	if err != nil {
		return "", fmt.Errorf("industry resolution failed for %s: %w", companyName, err)
	}
	industry = trimIndustry(industry)
	if industry == "" {
		return "", fmt.Errorf("industry resolution returned empty answer for %s", companyName)
	}
	return industry, nil
}
