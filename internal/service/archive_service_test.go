package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
	"github.com/noah-isme/labreview-api/pkg/storage"
)

func newArchiveService(t *testing.T) *ArchiveService {
	t.Helper()
	archive, err := storage.NewArchive(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadSigner("test-secret", time.Hour)
	svc := NewArchiveService(archive, signer, time.Hour, zap.NewNop())
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func TestArchiveStoreAndDownload(t *testing.T) {
	svc := newArchiveService(t)

	archived, err := svc.Store("course_1_results.csv", []byte("Owner,Total\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, archived.Token)
	assert.True(t, archived.ExpiresAt.After(time.Now()))

	// the write is asynchronous
	require.Eventually(t, func() bool {
		file, _, err := svc.Open(archived.Token)
		if err != nil {
			return false
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		return err == nil && string(content) == "Owner,Total\n"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArchiveOpenRejectsBadToken(t *testing.T) {
	svc := newArchiveService(t)

	_, _, err := svc.Open("not.a.token")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestArchiveOpenUnknownFile(t *testing.T) {
	svc := newArchiveService(t)

	signer := storage.NewDownloadSigner("test-secret", time.Hour)
	token, _, err := signer.Sign("never-written.csv")
	require.NoError(t, err)

	_, _, err = svc.Open(token)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}
