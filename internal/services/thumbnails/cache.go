// Package thumbnails caches remote thumbnails and screenshots in the store
// and hands out local handles for display.
//
// Fetch failures never surface as errors: they are logged and the image is
// reported absent.
package thumbnails

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/logging"
	thumbrepo "github.com/dmitrijs2005/soundboard/internal/repositories/thumbnails"
)

// DefaultRetain is how many images Cleanup keeps.
const DefaultRetain = 50

// maxImageBytes caps one fetched image; larger bodies are rejected whole.
var maxImageBytes int64 = 8 << 20

func ThumbKey(fileID string) string      { return "thumb_" + fileID }
func ScreenshotKey(fileID string) string { return "screenshot_" + fileID }

type Cache struct {
	repo    thumbrepo.Repository
	client  *http.Client
	handles *Handles
	now     func() time.Time
	log     logging.Logger
}

type Option func(*Cache)

func WithHTTPClient(c *http.Client) Option { return func(x *Cache) { x.client = c } }

// WithHandles shares a registry between caches.
func WithHandles(h *Handles) Option { return func(x *Cache) { x.handles = h } }

func WithClock(now func() time.Time) Option { return func(x *Cache) { x.now = now } }

func WithLogger(l logging.Logger) Option { return func(x *Cache) { x.log = l } }

func NewCache(repo thumbrepo.Repository, opts ...Option) *Cache {
	c := &Cache{
		repo:    repo,
		client:  &http.Client{Timeout: 30 * time.Second},
		handles: NewHandles(),
		now:     time.Now,
		log:     logging.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) Handles() *Handles { return c.handles }

// CacheImage returns a handle for the image stored under key, fetching url
// only when nothing is stored yet.
func (c *Cache) CacheImage(ctx context.Context, url, key string) (Handle, bool) {
	if h, ok := c.GetFromCache(ctx, key); ok {
		return h, true
	}

	dataURL, err := c.fetch(ctx, url)
	if err != nil {
		c.log.Warn(ctx, "thumbnail fetch failed", "key", key, "url", url, "error", err)
		return "", false
	}

	e := thumbrepo.Entry{ID: key, Data: dataURL, CreatedAt: c.now().UnixMilli(), OriginalURL: url}
	if err := c.repo.Put(ctx, e); err != nil {
		c.log.Warn(ctx, "thumbnail not persisted", "key", key, "error", err)
	}
	return c.handles.Register(dataURL), true
}

// GetFromCache returns a handle for a stored image without touching the network.
func (c *Cache) GetFromCache(ctx context.Context, key string) (Handle, bool) {
	e, err := c.repo.Get(ctx, key)
	if err != nil {
		c.log.Warn(ctx, "thumbnail lookup failed", "key", key, "error", err)
		return "", false
	}
	if e == nil {
		return "", false
	}
	return c.handles.Register(e.Data), true
}

func (c *Cache) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", common.ErrNetworkFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrNetworkFailure, err)
	}
	if int64(len(body)) > maxImageBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", common.ErrNetworkFailure, maxImageBytes)
	}

	ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || ct == "" {
		ct, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(body), nil
}

// Forget deletes both stored images of fileID.
func (c *Cache) Forget(ctx context.Context, fileID string) error {
	for _, key := range []string{ThumbKey(fileID), ScreenshotKey(fileID)} {
		if err := c.repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Preloaded holds whichever images were available.
type Preloaded struct {
	Thumbnail  Handle
	Screenshot Handle
}

// PreloadThumbnails caches the thumbnail and screenshot of fileID
// concurrently. Either may be missing in the result.
func (c *Cache) PreloadThumbnails(ctx context.Context, fileID, thumbURL, screenshotURL string) Preloaded {
	var (
		out Preloaded
		g   errgroup.Group
	)
	g.Go(func() error {
		if h, ok := c.CacheImage(ctx, thumbURL, ThumbKey(fileID)); ok {
			out.Thumbnail = h
		}
		return nil
	})
	g.Go(func() error {
		if h, ok := c.CacheImage(ctx, screenshotURL, ScreenshotKey(fileID)); ok {
			out.Screenshot = h
		}
		return nil
	})
	_ = g.Wait()
	return out
}

// Cleanup keeps the retain most recently cached images and deletes the rest.
// A negative retain means DefaultRetain. It returns how many were deleted.
func (c *Cache) Cleanup(ctx context.Context, retain int) (int, error) {
	if retain < 0 {
		retain = DefaultRetain
	}
	stamps, err := c.repo.Stamps(ctx)
	if err != nil {
		return 0, err
	}
	if len(stamps) <= retain {
		return 0, nil
	}

	deleted := 0
	for _, st := range stamps[:len(stamps)-retain] {
		if err := c.repo.Delete(ctx, st.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	c.log.Info(ctx, "thumbnail cleanup", "deleted", deleted, "kept", retain)
	return deleted, nil
}
