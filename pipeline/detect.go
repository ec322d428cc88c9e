// Package pipeline runs candidate files through an ordered list of parser
// strategies and records the outcome of every attempt.
package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format classifies a candidate file's container format.
type Format string

const (
	// FormatMIME is a MIME-text message (.eml, raw RFC-822 bytes).
	FormatMIME Format = "eml"
	// FormatContainer is a legacy compound-document container (.msg).
	FormatContainer Format = "msg"
	// FormatUnknown means no signature or extension matched.
	FormatUnknown Format = "unknown"
)

// Candidate is one file offered to the pipeline for a single parse attempt.
// It is transient: created per attempt and discarded afterwards.
type Candidate struct {
	Path   string
	Data   []byte
	Format Format
	Size   int
}

var (
	oleHeader = []byte{0xd0, 0xcf, 0x11, 0xe0}
	zipHeader = []byte("PK\x03\x04")

	mimeTokens = [][]byte{
		[]byte("content-type"),
		[]byte("mime-version"),
		[]byte("return-path"),
	}
)

// Detect sniffs byte content and extension to classify a file. First match
// wins: the OLE compound-document signature or a .msg extension means
// container-binary; a .eml extension means MIME text; a zip-family signature
// defaults to MIME text (zipped MSG/EML is not specially handled); otherwise
// the first 4KiB is scanned for MIME message tokens.
func Detect(path string, data []byte) Candidate {
	candidate := Candidate{
		Path:   path,
		Data:   data,
		Format: FormatUnknown,
		Size:   len(data),
	}

	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case bytes.HasPrefix(data, oleHeader) || ext == ".msg":
		candidate.Format = FormatContainer
	case ext == ".eml":
		candidate.Format = FormatMIME
	case bytes.HasPrefix(data, zipHeader):
		candidate.Format = FormatMIME
	default:
		sample := bytes.ToLower(data[:min(len(data), 4096)])
		for _, token := range mimeTokens {
			if bytes.Contains(sample, token) {
				candidate.Format = FormatMIME
				break
			}
		}
	}

	return candidate
}

// LooksLikeEmail is the lightweight content sniff run before any parser
// strategy: the sample must be non-empty, at least 60% printable
// ASCII/whitespace and carry at least one header-ish token.
func LooksLikeEmail(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sample := data[:min(len(data), 2048)]
	if len(bytes.TrimSpace(sample)) == 0 {
		return false
	}

	printable := 0
	for _, b := range sample {
		if b >= 9 && b <= 126 {
			printable++
		}
	}
	if float64(printable)/float64(len(sample)) < 0.6 {
		return false
	}

	lowered := bytes.ToLower(sample)
	for _, token := range [][]byte{
		[]byte("subject:"),
		[]byte("from:"),
		[]byte("content-type"),
		[]byte("mime-version"),
	} {
		if bytes.Contains(lowered, token) {
			return true
		}
	}

	return false
}
