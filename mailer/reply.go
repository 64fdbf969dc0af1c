package mailer

import (
	"fmt"
	"strings"
)

// quoteMarkers are the delimiters that start quoted history inside a
// reply body. The reply text is everything before the first marker.
var quoteMarkers = []string{
	"\nOn ",
	"-----Original Message-----",
	"\nFrom:",
	"\n---",
}

// ExtractMainReply strips quoted history from a reply body, cutting at
// the first quote marker found.
func ExtractMainReply(body string) string {
	if body == "" {
		return ""
	}
	// A body that opens with a marker line would survive the
	// newline-prefixed markers, so scan a padded copy.
	padded := "\n" + body
	cut := len(padded)
	for _, marker := range quoteMarkers {
		if idx := strings.Index(padded, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return strings.TrimSpace(padded[:cut])
}

// BuildThreading derives the reply-threading headers for a response to
// an inbound message: In-Reply-To is the inbound Message-ID, References
// is the inbound chain extended with it.
func BuildThreading(in Inbound) Threading {
	return Threading{
		InReplyTo:  strings.TrimSpace(in.MessageID),
		References: mergeReferences(in.References, strings.TrimSpace(in.MessageID)),
	}
}

// QuoteOriginal appends a "> "-quoted copy of the inbound message under
// the new reply text, the way mail clients thread conversations.
func QuoteOriginal(newText string, in Inbound) string {
	original := ExtractMainReply(in.Body)
	var quoted strings.Builder
	for _, line := range strings.Split(original, "\n") {
		quoted.WriteString("> ")
		quoted.WriteString(line)
		quoted.WriteString("\n")
	}
	return fmt.Sprintf("%s\n\nOn %s, %s wrote:\n%s",
		newText, in.Date.Format("Mon, 2 Jan 2006 15:04"), in.From, strings.TrimRight(quoted.String(), "\n"))
}

// ReplySubject prefixes "Re:" unless the subject already carries one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
