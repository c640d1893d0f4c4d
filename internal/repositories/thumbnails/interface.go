package thumbnails

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Entry, error)
	Put(ctx context.Context, e Entry) error
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]Entry, error)
	Stamps(ctx context.Context) ([]Stamp, error)
}
