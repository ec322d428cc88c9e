// Package ingest coordinates batch ingestion of raw email files and the
// reparsing of previously stored ones.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/phishdesk/email-triage/pipeline"
	"github.com/phishdesk/email-triage/pkg/email"
)

// Parse statuses persisted on a record. Failed ingestions are stored too, so
// operators can see them; nothing is silently dropped.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Record is the stored shape the coordinator needs back from the record
// store; the store's full schema is its own business.
type Record struct {
	ID          uuid.UUID
	ContentHash string
	FileName    string
	ParseStatus string
	ParseError  string
}

// NewRecord is everything persisted for one ingested file: the original
// bytes, the parse outcome (Parsed is nil for failed status) and the attempt
// audit trail.
type NewRecord struct {
	ContentHash string
	FileName    string
	MimeType    string
	Original    []byte
	ParseStatus string
	ParseError  string
	Parsed      *email.ParsedEmail
	Attempts    []pipeline.Attempt
}

// RecordStore is the storage collaborator. Implementations wrap each call in
// their own transactional scope.
type RecordStore interface {
	// FindByContentHash returns nil, nil when no record carries the hash.
	FindByContentHash(ctx context.Context, hash string) (*Record, error)
	PersistRecord(ctx context.Context, rec NewRecord) (uuid.UUID, error)
	// OriginalContent returns the stored raw bytes and original file name.
	OriginalContent(ctx context.Context, id uuid.UUID) (string, []byte, error)
	// OverwriteRecordFields replaces a record's parsed fields in place,
	// preserving its identity and hash, and appends the new attempts.
	OverwriteRecordFields(ctx context.Context, id uuid.UUID, parsed *email.ParsedEmail, attempts []pipeline.Attempt) error
	// MarkParseFailed updates only the status/error annotation and appends
	// the new attempts; previously parsed field values stay untouched.
	MarkParseFailed(ctx context.Context, id uuid.UUID, summary string, attempts []pipeline.Attempt) error
}

// BlobStore persists attachment payloads outside the record store.
type BlobStore interface {
	StoreAttachment(ctx context.Context, recordID uuid.UUID, att email.Attachment) (string, error)
}
