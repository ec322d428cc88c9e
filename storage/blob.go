package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/phishdesk/email-triage/pkg/email"
)

// FileBlobStore writes attachment payloads under a root directory, one
// subdirectory per email record.
type FileBlobStore struct {
	root string
}

func NewFileBlobStore(root string) (*FileBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FileBlobStore{root: root}, nil
}

func (b *FileBlobStore) StoreAttachment(ctx context.Context, recordID uuid.UUID, att email.Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(b.root, recordID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create attachment dir: %w", err)
	}

	name := sanitizeFileName(att.FileName)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, att.Payload, 0o644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return path, nil
}

// sanitizeFileName strips path components and characters that are unsafe in
// a filename. An empty or fully-stripped name gets a placeholder.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ". ")
	if cleaned == "" {
		return "attachment.bin"
	}
	return cleaned
}
