package llm

import "strings"

// subjectBodySeparator is the format-negotiation contract with the
// model: prompts instruct it to return "subject|||body".
const subjectBodySeparator = "|||"

// SplitSubjectBody parses generated email content into subject and
// body. Fallback chain: canonical "|||" separator, then first line as
// subject, then the supplied defaults so a send can still proceed.
func SplitSubjectBody(content, fallbackSubject, fallbackBody string) (string, string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return fallbackSubject, fallbackBody
	}

	if strings.Contains(content, subjectBodySeparator) {
		parts := strings.SplitN(content, subjectBodySeparator, 2)
		subject := strings.TrimSpace(parts[0])
		body := strings.TrimSpace(parts[1])
		if subject != "" && body != "" {
			return subject, body
		}
	}

	// Line-based heuristic: first non-empty line is the subject.
	lines := strings.Split(content, "\n")
	if len(lines) >= 2 {
		subject := strings.TrimSpace(lines[0])
		body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
		if subject != "" && body != "" {
			return subject, body
		}
	}

	return fallbackSubject, content
}
