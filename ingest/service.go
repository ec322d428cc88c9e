package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/phishdesk/email-triage/pipeline"
	"github.com/phishdesk/email-triage/pkg/email"
)

const (
	// MaxEmailSize caps how large a single input file may be.
	MaxEmailSize = 50 * 1024 * 1024
	// MaxAttachmentSize caps individual attachment payloads.
	MaxAttachmentSize = 10 * 1024 * 1024
)

// Result buckets every file of one ingestion batch. A file lands in exactly
// one of Duplicates, Failures or the success path, each with a reason;
// Skipped collects files dropped before parsing plus per-attachment notes.
// Created lists every record ID written, including failed-status records, so
// a parse failure appears in both Failures and Created.
type Result struct {
	Created    []uuid.UUID
	Duplicates []string
	Failures   []string
	Skipped    []string
}

// Service is the ingestion coordinator. Batches run synchronously on the
// calling goroutine; files are processed in sorted order for determinism.
type Service struct {
	store  RecordStore
	blobs  BlobStore
	runner *pipeline.Runner
}

func NewService(store RecordStore, blobs BlobStore, runner *pipeline.Runner) *Service {
	return &Service{store: store, blobs: blobs, runner: runner}
}

// IngestDirectory ingests every .eml/.msg file found directly in dir.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (*Result, error) {
	files, err := discoverEmailFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("discover email files: %w", err)
	}
	return s.IngestFiles(ctx, files)
}

// IngestFiles ingests an explicit list of paths. Per-file I/O failures are
// recorded as skips and never abort the batch; two byte-identical files are
// the same logical email regardless of filename.
func (s *Service) IngestFiles(ctx context.Context, paths []string) (*Result, error) {
	result := &Result{}

	for _, path := range paths {
		name := filepath.Base(path)

		data, reason := readCandidate(path)
		if reason != "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: %s", name, reason))
			continue
		}

		hash := ContentHash(data)

		existing, err := s.store.FindByContentHash(ctx, hash)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: storage error - %v", name, err))
			continue
		}
		if existing != nil {
			log.Infof("Skipping already ingested email %s", name)
			result.Duplicates = append(result.Duplicates, name)
			continue
		}

		candidate := pipeline.Detect(path, data)
		outcome := s.runner.Run(candidate)

		rec := NewRecord{
			ContentHash: hash,
			FileName:    name,
			MimeType:    mimeTypeFor(candidate.Format),
			Original:    data,
			Attempts:    outcome.Attempts,
		}

		var oversized []string
		if outcome.Email != nil {
			parsed := *outcome.Email
			parsed.Attachments, oversized = filterOversized(name, parsed.Attachments)
			rec.ParseStatus = StatusSuccess
			rec.Parsed = &parsed
		} else {
			summary := pipeline.SummarizeFailures(outcome.Attempts)
			rec.ParseStatus = StatusFailed
			rec.ParseError = summary
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %s", name, summary))
		}

		id, err := s.store.PersistRecord(ctx, rec)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("%s: storage error - %v", name, err))
			continue
		}
		result.Skipped = append(result.Skipped, oversized...)

		if rec.Parsed != nil {
			for _, att := range rec.Parsed.Attachments {
				if _, err := s.blobs.StoreAttachment(ctx, id, att); err != nil {
					log.Errorf("Failed to store attachment %s for %s: %v", att.FileName, name, err)
					result.Skipped = append(result.Skipped,
						fmt.Sprintf("%s: failed to store attachment %q - %v", name, att.FileName, err))
				}
			}
		}

		result.Created = append(result.Created, id)
	}

	log.Infof("Ingested %d emails (%d duplicates, %d parse failures, %d skipped)",
		len(result.Created), len(result.Duplicates), len(result.Failures), len(result.Skipped))

	return result, nil
}

// ContentHash is the deduplication key for raw email bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func discoverEmailFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.eml", "*.msg"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func readCandidate(path string) ([]byte, string) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Sprintf("cannot access file - %v", err)
	}
	if info.Size() > MaxEmailSize {
		return nil, fmt.Sprintf("file is too large (%.1fMB, maximum %dMB)",
			float64(info.Size())/(1024*1024), MaxEmailSize/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Sprintf("cannot read file - %v", err)
	}
	return data, ""
}

// filterOversized drops attachments beyond the size cap, producing a skip
// note per dropped payload.
func filterOversized(fileName string, attachments []email.Attachment) ([]email.Attachment, []string) {
	kept := []email.Attachment{}
	var notes []string
	for _, att := range attachments {
		if att.Size > MaxAttachmentSize {
			log.Warnf("Skipping attachment %s (%d bytes) - exceeds limit", att.FileName, att.Size)
			notes = append(notes, fmt.Sprintf("%s: attachment %q is too large (%.1fMB, maximum %dMB)",
				fileName, att.FileName, float64(att.Size)/(1024*1024), MaxAttachmentSize/(1024*1024)))
			continue
		}
		kept = append(kept, att)
	}
	return kept, notes
}

func mimeTypeFor(format pipeline.Format) string {
	if format == pipeline.FormatContainer {
		return "application/vnd.ms-outlook"
	}
	return "message/rfc822"
}
