package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/phishdesk/email-triage/pipeline"
)

// ReparseResult reports one reparse call.
type ReparseResult struct {
	Success bool
	Message string
}

// Reparse re-runs the parsing pipeline against a record's originally stored
// bytes, typically after a parser fix. On success the record's parsed fields
// are overwritten in place, preserving its identity and hash. On failure
// only the status/error annotation changes; a failed reparse never regresses
// a previously good record's visible data. New attempts are appended either
// way.
func (s *Service) Reparse(ctx context.Context, id uuid.UUID) (*ReparseResult, error) {
	fileName, content, err := s.store.OriginalContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load original content: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("original email content is unavailable; cannot reparse")
	}

	candidate := pipeline.Detect(fileName, content)
	outcome := s.runner.Run(candidate)

	if outcome.Email != nil {
		parsed := *outcome.Email
		parsed.Attachments, _ = filterOversized(fileName, parsed.Attachments)
		if err := s.store.OverwriteRecordFields(ctx, id, &parsed, outcome.Attempts); err != nil {
			return nil, fmt.Errorf("overwrite record fields: %w", err)
		}
		log.Infof("Reparsed email %s successfully", id)
		return &ReparseResult{Success: true, Message: "Parsing successful."}, nil
	}

	summary := pipeline.SummarizeFailures(outcome.Attempts)
	if err := s.store.MarkParseFailed(ctx, id, summary, outcome.Attempts); err != nil {
		return nil, fmt.Errorf("mark parse failed: %w", err)
	}
	log.Warnf("Reparse failed for email %s: %s", id, summary)
	return &ReparseResult{Success: false, Message: summary}, nil
}
