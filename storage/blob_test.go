package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phishdesk/email-triage/pkg/email"
)

func TestFileBlobStoreStoreAttachment(t *testing.T) {
	blobs, err := NewFileBlobStore(t.TempDir())
	require.NoError(t, err)

	id := uuid.New()
	path, err := blobs.StoreAttachment(context.Background(), id, email.Attachment{
		FileName: "notes.txt",
		Payload:  []byte("attachment payload"),
		Size:     18,
	})
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", filepath.Base(path))
	assert.Contains(t, path, id.String())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "attachment payload", string(content))
}

func TestFileBlobStoreSanitizesNames(t *testing.T) {
	blobs, err := NewFileBlobStore(t.TempDir())
	require.NoError(t, err)

	path, err := blobs.StoreAttachment(context.Background(), uuid.New(), email.Attachment{
		FileName: "../../etc/pass:wd",
		Payload:  []byte("x"),
		Size:     1,
	})
	require.NoError(t, err)

	base := filepath.Base(path)
	assert.NotContains(t, base, "/")
	assert.NotContains(t, base, ":")
	assert.Equal(t, "pass_wd", base)
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":     "report.pdf",
		"../../evil.sh":  "evil.sh",
		"":               "attachment.bin",
		"...":            "attachment.bin",
		"inv<oi>ce.html": "inv_oi_ce.html",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeFileName(in), "input %q", in)
	}
}
