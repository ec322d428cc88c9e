// Package storage provides the Postgres record store and the filesystem
// attachment blob store consumed by the ingestion coordinator.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phishdesk/email-triage/ingest"
	"github.com/phishdesk/email-triage/pipeline"
	"github.com/phishdesk/email-triage/pkg/email"
)

type PostgresDB struct {
	*pgxpool.Pool
}

// NewPostgresDB opens a connection pool against databaseURL and verifies it
// with a ping.
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// schema is applied on startup. Full migration tooling is out of scope; the
// statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS input_emails (
	id UUID PRIMARY KEY,
	content_hash TEXT UNIQUE NOT NULL,
	file_name TEXT,
	parse_status TEXT NOT NULL DEFAULT 'success',
	parse_error TEXT,
	subject_id TEXT,
	sender TEXT,
	cc JSONB NOT NULL DEFAULT '[]',
	subject TEXT,
	date_sent TIMESTAMPTZ,
	date_reported TIMESTAMPTZ,
	sending_source_raw TEXT,
	sending_source_parsed JSONB NOT NULL DEFAULT '[]',
	url_raw JSONB NOT NULL DEFAULT '[]',
	url_parsed JSONB NOT NULL DEFAULT '[]',
	callback_number_raw JSONB NOT NULL DEFAULT '[]',
	callback_number_parsed JSONB NOT NULL DEFAULT '[]',
	additional_contacts TEXT,
	model_confidence DOUBLE PRECISION,
	message_id TEXT,
	image_base64 TEXT,
	body_html TEXT,
	body_text TEXT,
	body_html_clean TEXT,
	email_size BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS original_emails (
	email_id UUID PRIMARY KEY REFERENCES input_emails(id) ON DELETE CASCADE,
	file_name TEXT,
	mime_type TEXT,
	content BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS parser_runs (
	id BIGSERIAL PRIMARY KEY,
	email_id UUID NOT NULL REFERENCES input_emails(id) ON DELETE CASCADE,
	parser_name TEXT NOT NULL,
	version TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attachments (
	id BIGSERIAL PRIMARY KEY,
	email_id UUID NOT NULL REFERENCES input_emails(id) ON DELETE CASCADE,
	file_name TEXT NOT NULL,
	file_type TEXT,
	file_size_bytes BIGINT,
	content_id TEXT,
	content BYTEA,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (email_id, file_name)
);
`

// RecordStore is the pgx-backed implementation of ingest.RecordStore. Each
// logical operation runs in a single transaction so partial per-file
// failures cannot leave a record referencing attachments that were never
// committed.
type RecordStore struct {
	db *PostgresDB
}

func NewRecordStore(db *PostgresDB) *RecordStore {
	return &RecordStore{db: db}
}

// Init applies the idempotent schema.
func (s *RecordStore) Init(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *RecordStore) FindByContentHash(ctx context.Context, hash string) (*ingest.Record, error) {
	var rec ingest.Record
	var fileName, parseError *string

	err := s.db.QueryRow(ctx,
		`SELECT id, content_hash, file_name, parse_status, parse_error
		 FROM input_emails WHERE content_hash = $1`,
		hash,
	).Scan(&rec.ID, &rec.ContentHash, &fileName, &rec.ParseStatus, &parseError)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if fileName != nil {
		rec.FileName = *fileName
	}
	if parseError != nil {
		rec.ParseError = *parseError
	}
	return &rec, nil
}

func (s *RecordStore) PersistRecord(ctx context.Context, rec ingest.NewRecord) (uuid.UUID, error) {
	id := uuid.New()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback(ctx)

	parsed := rec.Parsed
	if parsed == nil {
		// Failed ingestions are stored too, with a distinguished status, so
		// they stay visible to operators.
		parsed = &email.ParsedEmail{
			Subject: fmt.Sprintf("[Parse Failed] %s", rec.FileName),
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO input_emails (
			id, content_hash, file_name, parse_status, parse_error,
			subject_id, sender, cc, subject, date_sent, date_reported,
			sending_source_raw, sending_source_parsed, url_raw, url_parsed,
			callback_number_raw, callback_number_parsed, additional_contacts,
			model_confidence, message_id, image_base64, body_html, body_text,
			body_html_clean, email_size
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
		id, rec.ContentHash, rec.FileName, rec.ParseStatus, nullable(rec.ParseError),
		nullable(parsed.SubjectID), nullable(parsed.Sender), jsonList(parsed.CC),
		nullable(parsed.Subject), parsed.DateSent, parsed.DateReported,
		nullable(parsed.SendingSourceRaw), jsonList(parsed.SendingSourceParsed),
		jsonList(parsed.URLsRaw), jsonList(parsed.URLsParsed),
		jsonList(parsed.CallbackNumbersRaw), jsonList(parsed.CallbackNumbersParsed),
		nullable(parsed.AdditionalContacts), parsed.ModelConfidence,
		nullable(parsed.MessageID), nullable(parsed.ImageBase64),
		nullable(parsed.BodyHTML), nullable(parsed.BodyText),
		nullable(parsed.BodyHTMLClean), parsed.EmailSize,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert input email: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO original_emails (email_id, file_name, mime_type, content)
		 VALUES ($1, $2, $3, $4)`,
		id, rec.FileName, rec.MimeType, rec.Original,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert original email: %w", err)
	}

	if err := insertAttempts(ctx, tx, id, rec.Attempts); err != nil {
		return uuid.Nil, err
	}

	if rec.Parsed != nil {
		for _, att := range rec.Parsed.Attachments {
			_, err = tx.Exec(ctx,
				`INSERT INTO attachments (email_id, file_name, file_type, file_size_bytes, content_id, content)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (email_id, file_name) DO NOTHING`,
				id, att.FileName, nullable(att.ContentType), att.Size, nullable(att.ContentID), att.Payload,
			)
			if err != nil {
				return uuid.Nil, fmt.Errorf("insert attachment %s: %w", att.FileName, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *RecordStore) OriginalContent(ctx context.Context, id uuid.UUID) (string, []byte, error) {
	var fileName *string
	var content []byte

	err := s.db.QueryRow(ctx,
		`SELECT file_name, content FROM original_emails WHERE email_id = $1`,
		id,
	).Scan(&fileName, &content)
	if err != nil {
		return "", nil, err
	}

	name := ""
	if fileName != nil {
		name = *fileName
	}
	return name, content, nil
}

func (s *RecordStore) OverwriteRecordFields(ctx context.Context, id uuid.UUID, parsed *email.ParsedEmail, attempts []pipeline.Attempt) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE input_emails SET
			parse_status = $2, parse_error = NULL, subject_id = $3, sender = $4,
			cc = $5, subject = $6, date_sent = $7, date_reported = $8,
			sending_source_raw = $9, sending_source_parsed = $10, url_raw = $11,
			url_parsed = $12, callback_number_raw = $13, callback_number_parsed = $14,
			additional_contacts = $15, model_confidence = $16, message_id = $17,
			image_base64 = $18, body_html = $19, body_text = $20,
			body_html_clean = $21, email_size = $22, updated_at = now()
		 WHERE id = $1`,
		id, ingest.StatusSuccess, nullable(parsed.SubjectID), nullable(parsed.Sender),
		jsonList(parsed.CC), nullable(parsed.Subject), parsed.DateSent, parsed.DateReported,
		nullable(parsed.SendingSourceRaw), jsonList(parsed.SendingSourceParsed),
		jsonList(parsed.URLsRaw), jsonList(parsed.URLsParsed),
		jsonList(parsed.CallbackNumbersRaw), jsonList(parsed.CallbackNumbersParsed),
		nullable(parsed.AdditionalContacts), parsed.ModelConfidence,
		nullable(parsed.MessageID), nullable(parsed.ImageBase64),
		nullable(parsed.BodyHTML), nullable(parsed.BodyText),
		nullable(parsed.BodyHTMLClean), parsed.EmailSize,
	)
	if err != nil {
		return fmt.Errorf("update input email: %w", err)
	}

	if err := insertAttempts(ctx, tx, id, attempts); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *RecordStore) MarkParseFailed(ctx context.Context, id uuid.UUID, summary string, attempts []pipeline.Attempt) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Only the status/error annotation changes; previously parsed field
	// values stay as they were.
	_, err = tx.Exec(ctx,
		`UPDATE input_emails SET parse_status = $2, parse_error = $3, updated_at = now() WHERE id = $1`,
		id, ingest.StatusFailed, summary,
	)
	if err != nil {
		return fmt.Errorf("update input email: %w", err)
	}

	if err := insertAttempts(ctx, tx, id, attempts); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertAttempts(ctx context.Context, tx pgx.Tx, id uuid.UUID, attempts []pipeline.Attempt) error {
	for _, attempt := range attempts {
		_, err := tx.Exec(ctx,
			`INSERT INTO parser_runs (email_id, parser_name, version, status, error_message)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, attempt.Name, attempt.Version, string(attempt.Status), nullable(attempt.ErrorMessage),
		)
		if err != nil {
			return fmt.Errorf("insert parser run: %w", err)
		}
	}
	return nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func jsonList(values []string) []byte {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return []byte("[]")
	}
	return encoded
}
