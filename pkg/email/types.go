// Package email turns raw email bytes into the normalized record shape the
// triage pipeline stores and displays.
package email

import (
	"time"
)

// ParsedEmail is the canonical parsed-email record produced by a successful
// parse attempt. It is an immutable value object: constructed once, then
// consumed by the ingestion coordinator or the reparse service.
type ParsedEmail struct {
	Sender                string       `json:"sender,omitempty"`
	CC                    []string     `json:"cc"`
	Subject               string       `json:"subject,omitempty"`
	DateSent              *time.Time   `json:"date_sent,omitempty"`
	BodyHTML              string       `json:"body_html,omitempty"`
	BodyText              string       `json:"body_text,omitempty"`
	SubjectID             string       `json:"subject_id,omitempty"`
	DateReported          *time.Time   `json:"date_reported,omitempty"`
	SendingSourceRaw      string       `json:"sending_source_raw,omitempty"`
	SendingSourceParsed   []string     `json:"sending_source_parsed"`
	URLsRaw               []string     `json:"urls_raw"`
	URLsParsed            []string     `json:"urls_parsed"`
	CallbackNumbersRaw    []string     `json:"callback_numbers_raw"`
	CallbackNumbersParsed []string     `json:"callback_numbers_parsed"`
	AdditionalContacts    string       `json:"additional_contacts,omitempty"`
	ModelConfidence       *float64     `json:"model_confidence,omitempty"`
	MessageID             string       `json:"message_id,omitempty"`
	ImageBase64           string       `json:"image_base64,omitempty"`
	BodyHTMLClean         string       `json:"body_html_clean,omitempty"`
	Attachments           []Attachment `json:"attachments"`
	EmailSize             int          `json:"email_size"`
}

// Attachment is one extracted attachment part. Size always equals
// len(Payload).
type Attachment struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
	Payload     []byte `json:"-"`
	Size        int    `json:"size"`
}

// Envelope carries the decoded message envelope and bodies of one email,
// independent of the container format it was read from. Both the MIME-text
// and the container-binary parsers reduce their input to this shape before
// record assembly.
type Envelope struct {
	Sender      string
	CC          string
	Subject     string
	Date        string
	MessageID   string
	HTML        string
	Text        string
	Attachments []Attachment
}

// ParseDate parses an email date header value. RFC 5322 forms are tried
// first, then ISO-8601 (a trailing Z means UTC; a value without an offset is
// assumed UTC). Returns nil when nothing matches.
func ParseDate(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}

	rfc822Formats := []string{
		time.RFC1123Z,                           // "Mon, 02 Jan 2006 15:04:05 -0700"
		time.RFC1123,                            // "Mon, 02 Jan 2006 15:04:05 MST"
		"Mon, 2 Jan 2006 15:04:05 -0700",        // Single digit day
		"Mon, 2 Jan 2006 15:04:05 MST",          // Single digit day with zone name
		"2 Jan 2006 15:04:05 -0700",             // No day of week
		"2 Jan 2006 15:04:05 MST",               // No day of week with zone name
		"Mon, 02 Jan 2006 15:04:05 -0700 (MST)", // With zone name in parens
		"Mon, 2 Jan 2006 15:04 -0700",           // No seconds
		"2 Jan 2006 15:04 -0700",                // No day of week, no seconds
	}

	for _, format := range rfc822Formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return &t
		}
	}

	isoFormats := []string{
		time.RFC3339, // handles the trailing-Z form
	}

	for _, format := range isoFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return &t
		}
	}

	// Offsetless ISO values are treated as UTC.
	offsetless := []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range offsetless {
		if t, err := time.ParseInLocation(format, dateStr, time.UTC); err == nil {
			return &t
		}
	}

	return nil
}
