package email

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/phishdesk/email-triage/extract"
)

var (
	dataURIPattern = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,([A-Za-z0-9+/=]+)`)

	// Timestamp-shaped subject header, e.g. "2025-01-15T12:30:00+00:00".
	subjectTimestampPattern = regexp.MustCompile(
		`(\d{4})[-/]?(\d{2})[-/]?(\d{2})[T ](\d{2}):?(\d{2}):?(\d{2})`)
)

// SubjectIDLayout is the timestamp form used for derived subject identifiers.
const SubjectIDLayout = "20060102T150405"

// Assemble builds the normalized record from a decoded envelope. It runs the
// structured-field, URL and phone extractors, derives the subject identifier
// and the display HTML, and fixes the record's byte size.
func Assemble(env Envelope, size int, defaultRegion string) *ParsedEmail {
	if size < 0 {
		size = 0
	}

	text := env.Text
	if text == "" && env.HTML != "" {
		text = HTMLToText(env.HTML)
	}

	indicatorText := text
	if indicatorText == "" {
		indicatorText = env.HTML
	}

	fields := ExtractBodyFields(indicatorText)
	urls := extract.ExtractURLs(indicatorText)
	phones := extract.ExtractPhoneNumbers(indicatorText, defaultRegion)

	sendingSource := fields["sending_source"]

	parsed := &ParsedEmail{
		Sender:                env.Sender,
		CC:                    splitAddressList(env.CC),
		Subject:               env.Subject,
		DateSent:              ParseDate(env.Date),
		BodyHTML:              env.HTML,
		BodyText:              text,
		DateReported:          ParseDate(fields["date_reported"]),
		SendingSourceRaw:      sendingSource,
		SendingSourceParsed:   urlDomains(extract.ExtractURLs(sendingSource)),
		URLsRaw:               urlOriginals(urls),
		URLsParsed:            urlDomains(urls),
		CallbackNumbersRaw:    []string{},
		CallbackNumbersParsed: phoneE164s(phones),
		AdditionalContacts:    fields["additional_contacts"],
		ModelConfidence:       parseConfidence(fields["model_confidence"]),
		MessageID:             env.MessageID,
		ImageBase64:           extractInlineImage(env.HTML),
		BodyHTMLClean:         CleanHTML(env.HTML),
		Attachments:           env.Attachments,
		EmailSize:             size,
	}

	if parsed.Attachments == nil {
		parsed.Attachments = []Attachment{}
	}
	if callback := fields["callback_number"]; callback != "" {
		parsed.CallbackNumbersRaw = []string{callback}
	}

	parsed.SubjectID = deriveSubjectID(fields["subject"], parsed)

	return parsed
}

// deriveSubjectID picks the analyst-facing case token: the operator-supplied
// "Subject:" body field when present, else a YYYYMMDDTHHMMSS timestamp from
// the reported date, else a timestamp scraped from the Subject header.
func deriveSubjectID(bodySubject string, parsed *ParsedEmail) string {
	if bodySubject != "" {
		return bodySubject
	}
	if parsed.DateReported != nil {
		return parsed.DateReported.Format(SubjectIDLayout)
	}
	if m := subjectTimestampPattern.FindStringSubmatch(parsed.Subject); m != nil {
		return m[1] + m[2] + m[3] + "T" + m[4] + m[5] + m[6]
	}
	return ""
}

func splitAddressList(value string) []string {
	seen := make(map[string]bool)
	addresses := []string{}
	for _, addr := range strings.Split(value, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		addresses = append(addresses, addr)
	}
	return addresses
}

func urlOriginals(urls []extract.URLParseResult) []string {
	values := []string{}
	seen := make(map[string]bool)
	for _, u := range urls {
		if seen[u.Original] {
			continue
		}
		seen[u.Original] = true
		values = append(values, u.Original)
	}
	return values
}

func urlDomains(urls []extract.URLParseResult) []string {
	values := []string{}
	seen := make(map[string]bool)
	for _, u := range urls {
		if seen[u.Domain] {
			continue
		}
		seen[u.Domain] = true
		values = append(values, u.Domain)
	}
	return values
}

func phoneE164s(phones []extract.PhoneParseResult) []string {
	values := []string{}
	for _, p := range phones {
		values = append(values, p.E164)
	}
	return values
}

func parseConfidence(value string) *float64 {
	if value == "" {
		return nil
	}
	confidence, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &confidence
}

func extractInlineImage(html string) string {
	if html == "" {
		return ""
	}
	if m := dataURIPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}
