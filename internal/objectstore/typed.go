package objectstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetAs decodes the document under key into a T. It returns (nil, nil) when
// the key is absent.
func GetAs[T any](ctx context.Context, r Reader, partition, key string) (*T, error) {
	raw, err := r.Get(ctx, partition, key)
	if err != nil || raw == nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", partition, key, err)
	}
	return &v, nil
}

// GetAllAs decodes every document of a partition, in storage order.
func GetAllAs[T any](ctx context.Context, r Reader, partition string) ([]T, error) {
	raws, err := r.GetAll(ctx, partition)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s[%d]: %w", partition, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// PutValue encodes v as JSON and stores it.
func PutValue(ctx context.Context, w Writer, partition string, v any) (string, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", partition, err)
	}
	return w.Put(ctx, partition, doc)
}
