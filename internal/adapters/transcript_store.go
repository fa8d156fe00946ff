package adapters

import (
	"context"
	"io"

	"rivo_backend/internal/adapters/storage"
	"rivo_backend/internal/archive"
)

// TranscriptObjectStore adapts the storage service to the archive module.
type TranscriptObjectStore struct {
	storage storage.StorageService
}

func NewTranscriptObjectStore(svc storage.StorageService) *TranscriptObjectStore {
	return &TranscriptObjectStore{storage: svc}
}

func (s *TranscriptObjectStore) PutObject(ctx context.Context, bucket, fileKey, contentType string, reader io.Reader, size int64) error {
	return s.storage.PutObject(ctx, bucket, fileKey, contentType, reader, size)
}

func (s *TranscriptObjectStore) ObjectExists(ctx context.Context, bucket, fileKey string) (bool, error) {
	return s.storage.ObjectExists(ctx, bucket, fileKey)
}

func (s *TranscriptObjectStore) DownloadURL(ctx context.Context, bucket, fileKey string) (string, error) {
	presigned, err := s.storage.GenerateDownloadURL(ctx, bucket, fileKey)
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

var _ archive.ObjectStore = (*TranscriptObjectStore)(nil)
