package email

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

const reportedBody = `Date Reported: 2025-11-12T19:54:38
Callback Number: (888) 111-1111
URL: https://malicious.example.com/verify
`

func buildPlainEmail(body string) []byte {
	return []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Cc: soc@corp.example.com, manager@corp.example.com",
		"Subject: Suspicious email report",
		"Date: Wed, 12 Nov 2025 19:54:38 +0000",
		"Message-Id: <abc123@corp.example.com>",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n"))
}

func TestParseMIMEReportedFields(t *testing.T) {
	raw := buildPlainEmail(reportedBody)

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}

	if parsed.Sender != "reporter@corp.example.com" {
		t.Errorf("sender = %q", parsed.Sender)
	}
	if len(parsed.CC) != 2 || parsed.CC[0] != "soc@corp.example.com" {
		t.Errorf("cc = %v", parsed.CC)
	}

	if parsed.DateReported == nil {
		t.Fatal("date_reported not extracted")
	}
	want := time.Date(2025, 11, 12, 19, 54, 38, 0, time.UTC)
	if !parsed.DateReported.Equal(want) {
		t.Errorf("date_reported = %v, want %v", parsed.DateReported, want)
	}

	if len(parsed.CallbackNumbersParsed) != 1 || parsed.CallbackNumbersParsed[0] != "+18881111111" {
		t.Errorf("callback_numbers_parsed = %v", parsed.CallbackNumbersParsed)
	}
	if len(parsed.CallbackNumbersRaw) != 1 || parsed.CallbackNumbersRaw[0] != "(888) 111-1111" {
		t.Errorf("callback_numbers_raw = %v", parsed.CallbackNumbersRaw)
	}

	foundDomain := false
	for _, d := range parsed.URLsParsed {
		if d == "example.com" {
			foundDomain = true
		}
	}
	if !foundDomain {
		t.Errorf("urls_parsed = %v, want example.com present", parsed.URLsParsed)
	}

	// Subject ID falls back to the reported-date timestamp.
	if parsed.SubjectID != "20251112T195438" {
		t.Errorf("subject_id = %q", parsed.SubjectID)
	}

	if parsed.EmailSize != len(raw) {
		t.Errorf("email_size = %d, want %d", parsed.EmailSize, len(raw))
	}
}

func TestParseMIMEIdempotent(t *testing.T) {
	raw := buildPlainEmail(reportedBody)

	first, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("first parse failed: %v", err)
	}
	second, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("second parse failed: %v", err)
	}

	if first.SubjectID != second.SubjectID ||
		first.BodyText != second.BodyText ||
		fmt.Sprint(first.URLsParsed) != fmt.Sprint(second.URLsParsed) ||
		fmt.Sprint(first.CallbackNumbersParsed) != fmt.Sprint(second.CallbackNumbersParsed) {
		t.Error("re-parsing the same bytes produced different records")
	}
}

func TestParseMIMEMultipartWithAttachment(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Subject: Report with attachment",
		"Date: Wed, 12 Nov 2025 10:00:00 +0000",
		"Content-Type: multipart/mixed; boundary=frontier",
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"See the attached notes.",
		"--frontier",
		"Content-Type: application/octet-stream; name=notes.txt",
		"Content-Disposition: attachment; filename=notes.txt",
		"",
		"attachment payload",
		"--frontier--",
		"",
	}, "\r\n"))

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}

	if !strings.Contains(parsed.BodyText, "See the attached notes.") {
		t.Errorf("body_text = %q", parsed.BodyText)
	}
	if len(parsed.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(parsed.Attachments))
	}

	att := parsed.Attachments[0]
	if att.FileName != "notes.txt" {
		t.Errorf("attachment file name = %q", att.FileName)
	}
	if att.Size != 18 || len(att.Payload) != 18 {
		t.Errorf("attachment size = %d (payload %d), want 18", att.Size, len(att.Payload))
	}
	if att.ContentType != "text/plain; charset=utf-8" && !strings.HasPrefix(att.ContentType, "text/plain") {
		t.Errorf("attachment content type = %q", att.ContentType)
	}
}

func TestParseMIMEHTMLBody(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Subject: HTML report",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<html><body><table><tr><td>Callback Number</td><td>(888) 111-1111</td></tr></table>`,
		`<p>Visit hxxps://evil[.]example[.]net/login now</p></body></html>`,
	}, "\r\n"))

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}

	if parsed.BodyHTML == "" {
		t.Error("body_html empty")
	}
	if parsed.BodyHTMLClean == "" {
		t.Error("body_html_clean empty")
	}
	if len(parsed.CallbackNumbersParsed) != 1 || parsed.CallbackNumbersParsed[0] != "+18881111111" {
		t.Errorf("callback_numbers_parsed = %v", parsed.CallbackNumbersParsed)
	}

	found := false
	for _, d := range parsed.URLsParsed {
		if d == "example.net" {
			found = true
		}
	}
	if !found {
		t.Errorf("urls_parsed = %v, want example.net (defanged URL)", parsed.URLsParsed)
	}
}

func TestParseMIMEOperatorFieldsAndInlineImage(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Subject: Annotated report",
		"Content-Type: multipart/alternative; boundary=frontier",
		"",
		"--frontier",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Sending Source: hxxps://evil[.]example[.]com/login",
		"Model Confidence: 0.85",
		"--frontier",
		"Content-Type: text/html; charset=utf-8",
		"",
		`<html><body><img src="data:image/png;base64,iVBORw0KGgoAAAANSUhEUg=="></body></html>`,
		"--frontier--",
		"",
	}, "\r\n"))

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}

	if parsed.SendingSourceRaw != "hxxps://evil[.]example[.]com/login" {
		t.Errorf("sending_source_raw = %q", parsed.SendingSourceRaw)
	}
	if len(parsed.SendingSourceParsed) != 1 || parsed.SendingSourceParsed[0] != "example.com" {
		t.Errorf("sending_source_parsed = %v", parsed.SendingSourceParsed)
	}

	if parsed.ModelConfidence == nil {
		t.Fatal("model_confidence not extracted")
	}
	if *parsed.ModelConfidence != 0.85 {
		t.Errorf("model_confidence = %v, want 0.85", *parsed.ModelConfidence)
	}

	if parsed.ImageBase64 != "iVBORw0KGgoAAAANSUhEUg==" {
		t.Errorf("image_base64 = %q", parsed.ImageBase64)
	}
}

func TestParseMIMEOperatorFieldsAbsent(t *testing.T) {
	raw := buildPlainEmail("nothing structured here")

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}

	if parsed.ModelConfidence != nil {
		t.Errorf("model_confidence = %v, want nil", *parsed.ModelConfidence)
	}
	if parsed.ImageBase64 != "" {
		t.Errorf("image_base64 = %q, want empty", parsed.ImageBase64)
	}
	if parsed.SendingSourceRaw != "" || len(parsed.SendingSourceParsed) != 0 {
		t.Errorf("sending source = %q / %v, want empty", parsed.SendingSourceRaw, parsed.SendingSourceParsed)
	}
}

func TestParseMIMEEncodedSubject(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Subject: =?utf-8?q?Suspicious_=C3=A9mail?=",
		"Content-Type: text/plain",
		"",
		"body",
	}, "\r\n"))

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}
	if parsed.Subject != "Suspicious émail" {
		t.Errorf("subject = %q", parsed.Subject)
	}
}

func TestParseMIMESubjectIDFromHeaderTimestamp(t *testing.T) {
	raw := []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Subject: Report 2025-01-15T12:30:00+00:00",
		"Content-Type: text/plain",
		"",
		"no structured fields here",
	}, "\r\n"))

	parsed, err := ParseMIME(raw, "US")
	if err != nil {
		t.Fatalf("ParseMIME failed: %v", err)
	}
	if parsed.SubjectID != "20250115T123000" {
		t.Errorf("subject_id = %q", parsed.SubjectID)
	}
}

func TestParseMIMERejectsGarbage(t *testing.T) {
	if _, err := ParseMIME([]byte{0x00, 0x01, 0x02}, "US"); err == nil {
		t.Error("expected error for non-email bytes")
	}
}

func TestParseDateForms(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"Wed, 12 Nov 2025 19:54:38 +0000", time.Date(2025, 11, 12, 19, 54, 38, 0, time.UTC)},
		{"2025-11-12T19:54:38Z", time.Date(2025, 11, 12, 19, 54, 38, 0, time.UTC)},
		{"2025-11-12T19:54:38", time.Date(2025, 11, 12, 19, 54, 38, 0, time.UTC)},
		{"2025-11-12", time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got := ParseDate(tc.in)
		if got == nil {
			t.Errorf("ParseDate(%q) = nil", tc.in)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if got := ParseDate("not a date"); got != nil {
		t.Errorf("ParseDate(invalid) = %v, want nil", got)
	}
	if got := ParseDate(""); got != nil {
		t.Errorf("ParseDate(\"\") = %v, want nil", got)
	}
}
