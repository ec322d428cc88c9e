package pipeline

import (
	"fmt"
	"strings"
)

const maxErrorLength = 150

// SummarizeFailures collapses the failed attempts of an exhausted parse into
// one operator-readable message. Known technical failures are mapped to
// friendlier text; anything unrecognized passes through truncated.
func SummarizeFailures(attempts []Attempt) string {
	var messages []string

	for _, attempt := range attempts {
		if attempt.Status != AttemptFailed || attempt.ErrorMessage == "" {
			continue
		}

		lowered := strings.ToLower(attempt.ErrorMessage)
		switch {
		case strings.Contains(lowered, "charset") || (strings.Contains(lowered, "decode") && strings.Contains(lowered, "encoding")):
			messages = append(messages, "Email encoding issue - file may be corrupted or in an unsupported format")
		case strings.Contains(lowered, "optional dependency"):
			messages = append(messages, "Parser unavailable - an optional parsing dependency is not installed")
		case strings.Contains(lowered, "does not resemble an email"):
			messages = append(messages, "File does not appear to be a valid email")
		default:
			message := attempt.ErrorMessage
			if len(message) > maxErrorLength {
				message = message[:maxErrorLength] + "..."
			}
			messages = append(messages, fmt.Sprintf("%s: %s", attempt.Name, message))
		}
	}

	if len(messages) == 0 {
		return "No parser strategy available - check that the email file is valid"
	}
	return strings.Join(messages, "; ")
}
