package audio

import "context"

// DefaultQuota is the byte ceiling for all stored clips (50 MiB).
const DefaultQuota int64 = 50 * 1024 * 1024

type Repository interface {
	Save(ctx context.Context, id string, data Payload, metadata map[string]string, size int64) (string, error)
	Get(ctx context.Context, id string) (*Entry, error)
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]Entry, error)
	Usage(ctx context.Context) (int64, error)
	EvictOldest(ctx context.Context, target int64) (int64, error)
	UpdateMetadata(ctx context.Context, id string, fn func(map[string]string)) error
	Quota() int64
}
