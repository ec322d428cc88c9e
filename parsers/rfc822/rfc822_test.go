package rfc822

import (
	"strings"
	"testing"
)

func TestParseBasic(t *testing.T) {
	parser := NewParser("US")

	raw := []byte(strings.Join([]string{
		"From: reporter@corp.example.com",
		"Subject: Suspicious email report",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"URL: https://malicious.example.com/verify",
	}, "\r\n"))

	parsed, err := parser.Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Sender != "reporter@corp.example.com" {
		t.Errorf("sender = %q", parsed.Sender)
	}
	if len(parsed.URLsRaw) != 1 || parsed.URLsRaw[0] != "https://malicious.example.com/verify" {
		t.Errorf("urls_raw = %v", parsed.URLsRaw)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	parser := NewParser("US")

	if _, err := parser.Parse([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("expected error for non-email bytes")
	}
}
