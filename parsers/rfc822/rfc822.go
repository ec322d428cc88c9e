// Package rfc822 is the primary MIME-text parser strategy, built on the
// standard library message decoder.
package rfc822

import (
	"github.com/phishdesk/email-triage/pkg/email"
)

// Version is the strategy version recorded on every parser attempt.
const Version = "1.0.0"

type Parser struct {
	// DefaultRegion is assumed for phone numbers lacking a country code.
	DefaultRegion string
}

func NewParser(defaultRegion string) *Parser {
	return &Parser{DefaultRegion: defaultRegion}
}

// Parse decodes raw RFC-822 bytes into a normalized record.
func (p *Parser) Parse(data []byte) (*email.ParsedEmail, error) {
	return email.ParseMIME(data, p.DefaultRegion)
}
