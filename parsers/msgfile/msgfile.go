// Package msgfile is the container-binary parser strategy for legacy
// compound-document (.msg) messages. The envelope and bodies come from the
// container's MAPI property streams and attachments from its native
// attachment storages, so no MIME walk is needed.
package msgfile

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"

	"github.com/phishdesk/email-triage/parsers/common"
	"github.com/phishdesk/email-triage/pkg/email"
)

const Version = "1.0.0"

// MAPI property streams are named __substg1.0_XXXXTTTT where XXXX is the
// property id and TTTT the type (001F UTF-16, 001E 8-bit, 0102 binary).
const (
	propSubject          = "0037"
	propSenderName       = "0C1A"
	propSenderEmail      = "0C1F"
	propDisplayCc        = "0E03"
	propBodyText         = "1000"
	propBodyHTML         = "1013"
	propMessageID        = "1035"
	propTransportHeaders = "007D"

	propAttachDataObject   = "3701"
	propAttachFilename     = "3704"
	propAttachLongFilename = "3707"
	propAttachMimeTag      = "370E"
	propAttachContentID    = "3712"
)

const (
	typeUnicode = "001F"
	typeString8 = "001E"
	typeBinary  = "0102"
)

var (
	substgPattern     = regexp.MustCompile(`^__substg1\.0_([0-9A-Fa-f]{4})([0-9A-Fa-f]{4})$`)
	attachmentPattern = regexp.MustCompile(`^__attach_version1\.0_#\d{8}$`)
	dateHeaderPattern = regexp.MustCompile(`(?mi)^Date:\s*(.+?)\s*$`)

	utf16Decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
)

type Parser struct {
	DefaultRegion string
}

func NewParser(defaultRegion string) *Parser {
	return &Parser{DefaultRegion: defaultRegion}
}

// Parse reads a compound-document message from raw bytes.
func (p *Parser) Parse(data []byte) (*email.ParsedEmail, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, common.NewCorruptContainerError(err.Error())
	}

	message := make(propertySet)
	attachments := make(map[string]propertySet)

	for entry, err := doc.Next(); err != io.EOF; entry, err = doc.Next() {
		if err != nil {
			return nil, common.NewCorruptContainerError(err.Error())
		}

		m := substgPattern.FindStringSubmatch(entry.Name)
		if m == nil {
			continue
		}
		prop := strings.ToUpper(m[1])
		propType := strings.ToUpper(m[2])

		path := entry.Path
		switch {
		case len(path) == 0:
			message.add(prop, propType, readStream(doc, entry))
		case len(path) == 1 && attachmentPattern.MatchString(path[0]):
			group, ok := attachments[path[0]]
			if !ok {
				group = make(propertySet)
				attachments[path[0]] = group
			}
			group.add(prop, propType, readStream(doc, entry))
		}
	}

	if len(message) == 0 {
		return nil, common.NewCorruptContainerError("no MAPI property streams found")
	}

	env := email.Envelope{
		Sender:    senderOf(message),
		CC:        message.str(propDisplayCc),
		Subject:   message.str(propSubject),
		Date:      dateOf(message),
		MessageID: message.str(propMessageID),
		Text:      message.str(propBodyText),
		HTML:      htmlBodyOf(message),
	}

	// Iteration order over the attachment storages is not defined, so sort
	// by storage name to keep attachment order deterministic.
	for _, name := range sortedKeys(attachments) {
		group := attachments[name]
		fileName := group.str(propAttachLongFilename)
		if fileName == "" {
			fileName = group.str(propAttachFilename)
		}
		if fileName == "" {
			fileName = "attachment"
		}
		payload := group.bin(propAttachDataObject)
		env.Attachments = append(env.Attachments, email.Attachment{
			FileName:    fileName,
			ContentType: email.InferAttachmentContentType(fileName, group.str(propAttachMimeTag)),
			ContentID:   group.str(propAttachContentID),
			Payload:     payload,
			Size:        len(payload),
		})
	}

	return email.Assemble(env, len(data), p.DefaultRegion), nil
}

// propertySet maps property id -> typed raw value.
type propertySet map[string]propertyValue

type propertyValue struct {
	propType string
	raw      []byte
}

func (ps propertySet) add(prop, propType string, raw []byte) {
	// Prefer the unicode variant when a property appears in both encodings.
	if existing, ok := ps[prop]; ok && existing.propType == typeUnicode {
		return
	}
	ps[prop] = propertyValue{propType: propType, raw: raw}
}

// str decodes a string-typed property; binary-typed values are decoded as
// UTF-8 text as a last resort.
func (ps propertySet) str(prop string) string {
	value, ok := ps[prop]
	if !ok {
		return ""
	}
	switch value.propType {
	case typeUnicode:
		return decodeUTF16(value.raw)
	default:
		return strings.TrimRight(string(value.raw), "\x00")
	}
}

func (ps propertySet) bin(prop string) []byte {
	value, ok := ps[prop]
	if !ok {
		return nil
	}
	return value.raw
}

func readStream(doc *mscfb.Reader, entry *mscfb.File) []byte {
	if entry.Size <= 0 {
		return nil
	}
	buf := make([]byte, entry.Size)
	read := 0
	for read < len(buf) {
		n, err := doc.Read(buf[read:])
		read += n
		if err != nil || n == 0 {
			break
		}
	}
	return buf[:read]
}

func decodeUTF16(raw []byte) string {
	decoded, err := utf16Decoder.Bytes(raw)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(decoded), "\x00")
}

func senderOf(message propertySet) string {
	name := message.str(propSenderName)
	address := message.str(propSenderEmail)
	switch {
	case name != "" && address != "" && !strings.EqualFold(name, address):
		return fmt.Sprintf("%s <%s>", name, address)
	case address != "":
		return address
	default:
		return name
	}
}

// dateOf pulls the Date header out of the stored transport headers.
func dateOf(message propertySet) string {
	headers := message.str(propTransportHeaders)
	if headers == "" {
		return ""
	}
	if m := dateHeaderPattern.FindStringSubmatch(headers); m != nil {
		return m[1]
	}
	return ""
}

// htmlBodyOf handles the HTML body arriving either as a string property or
// as raw bytes.
func htmlBodyOf(message propertySet) string {
	value, ok := message[propBodyHTML]
	if !ok {
		return ""
	}
	if value.propType == typeUnicode {
		return decodeUTF16(value.raw)
	}
	return strings.TrimRight(string(value.raw), "\x00")
}

func sortedKeys(groups map[string]propertySet) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
