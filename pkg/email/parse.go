package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"golang.org/x/net/html/charset"
)

// ParseMIME parses raw RFC-822 bytes into a normalized record: envelope
// headers, a body walk separating attachment-disposed parts from the
// text/html and text/plain bodies, then record assembly. Decode errors
// propagate to the caller; deciding what counts as an ingestible failure is
// the orchestrator's job.
func ParseMIME(data []byte, defaultRegion string) (*ParsedEmail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	env := Envelope{
		Sender:    decodeHeader(msg.Header.Get("From")),
		CC:        decodeHeader(msg.Header.Get("Cc")),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		Date:      msg.Header.Get("Date"),
		MessageID: msg.Header.Get("Message-Id"),
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
		params = map[string]string{}
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var walk bodyWalk
	header := textproto.MIMEHeader{}
	for key, values := range msg.Header {
		header[textproto.CanonicalMIMEHeaderKey(key)] = values
	}
	if err := walk.collect(mediaType, params, header, body); err != nil {
		return nil, err
	}

	env.HTML = strings.Join(walk.html, "\n")
	env.Text = strings.Join(walk.text, "\n")
	env.Attachments = walk.attachments

	return Assemble(env, len(data), defaultRegion), nil
}

// bodyWalk accumulates the outcome of walking all MIME parts of a message.
type bodyWalk struct {
	html        []string
	text        []string
	attachments []Attachment
}

func (w *bodyWalk) collect(mediaType string, params map[string]string, header textproto.MIMEHeader, body []byte) error {
	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart message without boundary")
		}
		return w.collectMultipart(body, boundary)
	}

	decoded := decodeTransferEncoding(body, header.Get("Content-Transfer-Encoding"))

	disposition, dispParams, _ := mime.ParseMediaType(header.Get("Content-Disposition"))
	if disposition == "attachment" {
		fileName := attachmentFileName(dispParams, params)
		w.attachments = append(w.attachments, Attachment{
			FileName:    fileName,
			ContentType: InferAttachmentContentType(fileName, mediaType),
			ContentID:   header.Get("Content-Id"),
			Payload:     decoded,
			Size:        len(decoded),
		})
		return nil
	}

	switch mediaType {
	case "text/html":
		w.html = append(w.html, decodeCharset(decoded, params["charset"]))
	case "text/plain":
		w.text = append(w.text, decodeCharset(decoded, params["charset"]))
	}

	return nil
}

func (w *bodyWalk) collectMultipart(body []byte, boundary string) error {
	mr := multipart.NewReader(bytes.NewReader(body), boundary)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read part: %w", err)
		}

		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/plain"
		}

		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil {
			mediaType = "text/plain"
			params = map[string]string{}
		}

		partBody, err := io.ReadAll(part)
		if err != nil {
			continue
		}

		if err := w.collect(mediaType, params, part.Header, partBody); err != nil {
			return err
		}
	}

	return nil
}

func attachmentFileName(dispParams, typeParams map[string]string) string {
	if name := dispParams["filename"]; name != "" {
		return decodeHeader(name)
	}
	if name := typeParams["name"]; name != "" {
		return decodeHeader(name)
	}
	return "attachment"
}

// InferAttachmentContentType fills in a usable content type when the declared
// one is missing or generic. Nested .eml/.msg attachments in particular often
// arrive as application/octet-stream.
func InferAttachmentContentType(fileName, declared string) string {
	generic := declared == "" || declared == "application/octet-stream" || declared == "binary/octet-stream"
	if !generic {
		return declared
	}

	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".eml"):
		return "message/rfc822"
	case strings.HasSuffix(lower, ".msg"):
		return "application/vnd.ms-outlook"
	}

	if idx := strings.LastIndex(lower, "."); idx != -1 {
		if byExt := mime.TypeByExtension(lower[idx:]); byExt != "" {
			return byExt
		}
	}

	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func decodeTransferEncoding(body []byte, encoding string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if r == '\r' || r == '\n' {
				return -1
			}
			return r
		}, string(body))
		if decoded, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
			return decoded
		}
	case "quoted-printable":
		reader := quotedprintable.NewReader(bytes.NewReader(body))
		if decoded, err := io.ReadAll(reader); err == nil {
			return decoded
		}
	}

	return body
}

func decodeCharset(body []byte, label string) string {
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "us-ascii") {
		return string(body)
	}
	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

var headerDecoder = mime.WordDecoder{
	CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
		return charset.NewReaderLabel(label, input)
	},
}

// decodeHeader decodes RFC 2047 encoded words; undecodable headers are
// returned as-is.
func decodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
