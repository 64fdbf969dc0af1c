package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sentiment labels for classified replies.
const (
	SentimentPositive = "POSITIVE"
	SentimentNeutral  = "NEUTRAL"
	SentimentNegative = "NEGATIVE"
)

// Verdict is the structured classification of one inbound reply.
type Verdict struct {
	Sentiment   string `json:"sentiment"`
	Reasoning   string `json:"reasoning"`
	HasQuery    bool   `json:"hasQuery"`
	Queries     string `json:"queries"`
	StopContact bool   `json:"stopContact"`
}

// Classifier turns raw reply text into a Verdict. It never returns an
// error: on any failure it falls back to a NEUTRAL/no-query/no-stop
// verdict so a reply is never silently dropped.
type Classifier struct {
	client *Client
	logger *logrus.Logger
}

func NewClassifier(client *Client, logger *logrus.Logger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

func failSafeVerdict() Verdict {
	return Verdict{Sentiment: SentimentNeutral}
}

func (c *Classifier) Classify(ctx context.Context, replyBody string) Verdict {
	prompt := fmt.Sprintf(classifyPromptTemplate, replyBody)
	raw, err := c.client.CompleteJSON(ctx, prompt, 0.2)
	if err != nil {
		c.logger.Warnf("reply classification failed, defaulting to NEUTRAL: %v", err)
		return failSafeVerdict()
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		c.logger.Warnf("reply classification returned malformed JSON, defaulting to NEUTRAL: %v", err)
		return failSafeVerdict()
	}

	verdict.Sentiment = strings.ToUpper(strings.TrimSpace(verdict.Sentiment))
	switch verdict.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		verdict.Sentiment = SentimentNeutral
	}
	if strings.EqualFold(strings.TrimSpace(verdict.Queries), "none") {
		verdict.Queries = ""
		verdict.HasQuery = false
	}
	return verdict
}

// trimIndustry strips quotes and whitespace from a model's one-word
// industry answer.
func trimIndustry(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'` .")
}
