package layouts

import "context"

type Repository interface {
	Get(ctx context.Context, id string) (*Layout, error)
	Put(ctx context.Context, l Layout) error
	Delete(ctx context.Context, id string) error
	GetAll(ctx context.Context) ([]Layout, error)
}
