package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/logging"
	"github.com/dmitrijs2005/soundboard/internal/objectstore"
	"github.com/dmitrijs2005/soundboard/internal/schema"
)

const tracerName = "github.com/dmitrijs2005/soundboard/internal/repositories/audio"

// StoreRepository implements Repository over an objectstore.Store.
type StoreRepository struct {
	store  objectstore.Store
	quota  int64
	atomic bool
	now    func() time.Time
	log    logging.Logger
	tracer trace.Tracer
}

var _ Repository = (*StoreRepository)(nil)

type Option func(*StoreRepository)

// WithQuota overrides DefaultQuota.
func WithQuota(bytes int64) Option { return func(r *StoreRepository) { r.quota = bytes } }

// WithAtomicSave runs usage, eviction and write in one transaction.
func WithAtomicSave(on bool) Option { return func(r *StoreRepository) { r.atomic = on } }

// WithClock replaces the createdAt clock.
func WithClock(now func() time.Time) Option { return func(r *StoreRepository) { r.now = now } }

func WithLogger(l logging.Logger) Option { return func(r *StoreRepository) { r.log = l } }

func NewStoreRepository(store objectstore.Store, opts ...Option) *StoreRepository {
	r := &StoreRepository{
		store:  store,
		quota:  DefaultQuota,
		now:    time.Now,
		log:    logging.Discard(),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *StoreRepository) Quota() int64 { return r.quota }

// Save stores a clip, evicting the oldest clips when it would not fit. An
// empty id is replaced by a random UUID. size is advisory: the stored size is
// always recomputed from data.
func (r *StoreRepository) Save(ctx context.Context, id string, data Payload, metadata map[string]string, size int64) (_ string, err error) {
	ctx, span := r.tracer.Start(ctx, "audio.Save")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if id == "" {
		id = uuid.NewString()
	}
	actual := data.Size()
	if size != actual {
		r.log.Warn(ctx, "declared clip size differs from payload", "id", id, "declared", size, "actual", actual)
	}
	span.SetAttributes(attribute.String("audio.id", id), attribute.Int64("audio.size", actual))

	if actual > r.quota {
		return "", fmt.Errorf("%w: clip %s is %d bytes, quota is %d", common.ErrQuotaExceeded, id, actual, r.quota)
	}

	e := Entry{
		ID:        id,
		Data:      data,
		Metadata:  metadata,
		Size:      actual,
		CreatedAt: r.now().UnixMilli(),
		Checksum:  checksum(data),
	}

	if r.atomic {
		err = r.store.Update(ctx, func(ctx context.Context, rw objectstore.ReadWriter) error {
			return r.save(ctx, rw, e)
		})
	} else {
		err = r.save(ctx, r.store, e)
	}
	if err != nil {
		return "", err
	}

	r.log.Debug(ctx, "clip saved", "id", id, "bytes", actual)
	return id, nil
}

func (r *StoreRepository) save(ctx context.Context, rw objectstore.ReadWriter, e Entry) error {
	usage, err := usageExcept(ctx, rw, e.ID)
	if err != nil {
		return err
	}

	if usage+e.Size > r.quota {
		need := usage + e.Size - r.quota
		if _, err := r.evict(ctx, rw, need, e.ID); err != nil {
			return err
		}
		usage, err = usageExcept(ctx, rw, e.ID)
		if err != nil {
			return err
		}
		if usage+e.Size > r.quota {
			return fmt.Errorf("%w: %d bytes used, %d needed, quota %d", common.ErrQuotaExceeded, usage, e.Size, r.quota)
		}
	}

	if _, err := objectstore.PutValue(ctx, rw, schema.AudioFiles, e); err != nil {
		if errors.Is(err, common.ErrStorageFull) {
			return fmt.Errorf("%w: %w", common.ErrQuotaExceeded, err)
		}
		return err
	}
	return nil
}

// Get returns the clip or nil when absent.
func (r *StoreRepository) Get(ctx context.Context, id string) (*Entry, error) {
	e, err := objectstore.GetAs[Entry](ctx, r.store, schema.AudioFiles, id)
	if err != nil || e == nil {
		return nil, err
	}
	if e.Checksum != "" && e.Checksum != checksum(e.Data) {
		return nil, fmt.Errorf("%w: clip %s", common.ErrCorrupted, id)
	}
	return e, nil
}

func (r *StoreRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, schema.AudioFiles, id)
}

// UpdateMetadata rewrites a clip's metadata in place. Size and createdAt are
// kept, so the clip keeps its eviction position. Updating a missing clip is
// not an error.
func (r *StoreRepository) UpdateMetadata(ctx context.Context, id string, fn func(map[string]string)) error {
	return r.store.Update(ctx, func(ctx context.Context, rw objectstore.ReadWriter) error {
		e, err := objectstore.GetAs[Entry](ctx, rw, schema.AudioFiles, id)
		if err != nil || e == nil {
			return err
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string)
		}
		fn(e.Metadata)
		_, err = objectstore.PutValue(ctx, rw, schema.AudioFiles, e)
		return err
	})
}

// GetAll returns every clip in storage order.
func (r *StoreRepository) GetAll(ctx context.Context) ([]Entry, error) {
	return objectstore.GetAllAs[Entry](ctx, r.store, schema.AudioFiles)
}

// Usage sums the sizes of all stored clips.
func (r *StoreRepository) Usage(ctx context.Context) (int64, error) {
	return usageExcept(ctx, r.store, "")
}

// EvictOldest deletes clips oldest first until at least target bytes are
// freed or nothing is left. It returns the bytes actually freed.
func (r *StoreRepository) EvictOldest(ctx context.Context, target int64) (int64, error) {
	return r.evict(ctx, r.store, target, "")
}

func (r *StoreRepository) evict(ctx context.Context, rw objectstore.ReadWriter, target int64, keep string) (freed int64, err error) {
	ctx, span := r.tracer.Start(ctx, "audio.EvictOldest", trace.WithAttributes(attribute.Int64("audio.evict.target", target)))
	defer func() {
		span.SetAttributes(attribute.Int64("audio.evict.freed", freed))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if target <= 0 {
		return 0, nil
	}

	stats, err := scan(ctx, rw)
	if err != nil {
		return 0, err
	}

	for _, s := range stats {
		if freed >= target {
			break
		}
		if s.id == keep {
			continue
		}
		if err := rw.Delete(ctx, schema.AudioFiles, s.id); err != nil {
			return freed, err
		}
		freed += s.size
		r.log.Info(ctx, "evicted clip", "id", s.id, "bytes", s.size, "createdAt", s.createdAt)
	}
	return freed, nil
}

// stat is the part of an entry eviction needs; payloads are never loaded.
type stat struct {
	id        string
	size      int64
	createdAt int64
}

// scan lists clips oldest first, ties by id, over the createdAt index.
func scan(ctx context.Context, rd objectstore.Reader) ([]stat, error) {
	docs, err := rd.Project(ctx, schema.AudioFiles, "createdAt", "id", "size")
	if err != nil {
		return nil, err
	}
	out := make([]stat, 0, len(docs))
	for _, d := range docs {
		out = append(out, statOf(d))
	}
	return out, nil
}

func statOf(doc json.RawMessage) stat {
	f := gjson.GetManyBytes(doc, "id", "size", "createdAt")
	return stat{id: f[0].String(), size: f[1].Int(), createdAt: f[2].Int()}
}

func usageExcept(ctx context.Context, rd objectstore.Reader, id string) (int64, error) {
	stats, err := scan(ctx, rd)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range stats {
		if s.id != id {
			total += s.size
		}
	}
	return total, nil
}
