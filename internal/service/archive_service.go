package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
	"github.com/noah-isme/labreview-api/pkg/jobs"
	"github.com/noah-isme/labreview-api/pkg/storage"
)

const (
	jobArchiveWrite = "archive-write"
	jobArchivePrune = "archive-prune"
)

type archivePayload struct {
	Name string
	Data []byte
}

// ArchivedExport describes a stored export and the signed token to fetch it.
type ArchivedExport struct {
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveService keeps rendered exports on disk so staff can share download
// links instead of re-rendering. Writes and retention pruning run on the job
// queue, off the request path.
type ArchiveService struct {
	archive   *storage.Archive
	signer    *storage.DownloadSigner
	queue     *jobs.Queue
	retention time.Duration
	logger    *zap.Logger
}

// NewArchiveService wires the archive, its signer and the worker queue. The
// queue is owned by the service: Start and Stop manage its lifecycle.
func NewArchiveService(archive *storage.Archive, signer *storage.DownloadSigner, retention time.Duration, logger *zap.Logger) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	s := &ArchiveService{
		archive:   archive,
		signer:    signer,
		retention: retention,
		logger:    logger,
	}
	s.queue = jobs.New(s.handle, jobs.Options{Workers: 1}, logger)
	return s
}

// Start launches the background workers and schedules an initial prune.
func (s *ArchiveService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobArchivePrune}); err != nil {
		s.logger.Warn("initial archive prune not scheduled", zap.Error(err))
	}
}

// Stop drains the background workers.
func (s *ArchiveService) Stop() {
	s.queue.Stop()
}

// Store schedules an asynchronous write of the rendered export and returns
// the signed download handle. The token is valid even while the write is
// still queued; a download racing the write sees not-found and retries.
func (s *ArchiveService) Store(name string, payload []byte) (*ArchivedExport, error) {
	token, expiresAt, err := s.signer.Sign(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign export download")
	}

	data := make([]byte, len(payload))
	copy(data, payload)
	err = s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobArchiveWrite,
		Payload: archivePayload{Name: name, Data: data},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule export archive")
	}

	return &ArchivedExport{Name: name, Token: token, ExpiresAt: expiresAt}, nil
}

// Open verifies the download token and returns the archived file.
func (s *ArchiveService) Open(token string) (*os.File, string, error) {
	name, err := s.signer.Verify(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid download token")
	}
	file, err := s.archive.Open(name)
	if err != nil {
		return nil, "", appErrors.ErrNotFound
	}
	return file, name, nil
}

func (s *ArchiveService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobArchiveWrite:
		payload, ok := job.Payload.(archivePayload)
		if !ok {
			return fmt.Errorf("unexpected payload for %s", job.Type)
		}
		if _, err := s.archive.Save(payload.Name, payload.Data); err != nil {
			return err
		}
		s.logger.Debug("export archived", zap.String("name", payload.Name))
		return nil
	case jobArchivePrune:
		deleted, err := s.archive.Prune(s.retention)
		if err != nil {
			return err
		}
		if len(deleted) > 0 {
			s.logger.Info("archive pruned", zap.Int("deleted", len(deleted)))
		}
		return nil
	default:
		return fmt.Errorf("unknown job type %s", job.Type)
	}
}
