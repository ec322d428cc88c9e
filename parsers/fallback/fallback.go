// Package fallback is the secondary MIME-text parser strategy. It runs
// enmime's more forgiving decoder against messages the primary parser
// rejects, then feeds the result through the shared record assembly.
package fallback

import (
	"bytes"
	"fmt"

	"github.com/jhillyerd/enmime"

	"github.com/phishdesk/email-triage/parsers/common"
	"github.com/phishdesk/email-triage/pkg/email"
)

const Version = "1.0.0"

type Parser struct {
	DefaultRegion string
}

func NewParser(defaultRegion string) *Parser {
	return &Parser{DefaultRegion: defaultRegion}
}

func (p *Parser) Parse(data []byte) (*email.ParsedEmail, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewParserError(fmt.Sprintf("read envelope: %v", err))
	}

	env := email.Envelope{
		Sender:    envelope.GetHeader("From"),
		CC:        envelope.GetHeader("Cc"),
		Subject:   envelope.GetHeader("Subject"),
		Date:      envelope.GetHeader("Date"),
		MessageID: envelope.GetHeader("Message-Id"),
		HTML:      envelope.HTML,
		Text:      envelope.Text,
	}

	for _, part := range envelope.Attachments {
		payload := part.Content
		env.Attachments = append(env.Attachments, email.Attachment{
			FileName:    part.FileName,
			ContentType: email.InferAttachmentContentType(part.FileName, part.ContentType),
			ContentID:   part.ContentID,
			Payload:     payload,
			Size:        len(payload),
		})
	}

	return email.Assemble(env, len(data), p.DefaultRegion), nil
}
