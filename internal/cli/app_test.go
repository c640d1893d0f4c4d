package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/extract"
	"github.com/dmitrijs2005/soundboard/internal/repositories/layouts"
	"github.com/dmitrijs2005/soundboard/internal/services/quota"
	"github.com/dmitrijs2005/soundboard/internal/services/soundboard"
)

type fakeService struct {
	added   []soundboard.AddRequest
	addErr  error
	sounds  []soundboard.Sound
	deleted []string
	renamed map[string]string
	order   []string
	theme   layouts.Theme
}

func (f *fakeService) AddSound(_ context.Context, req soundboard.AddRequest, progress func(extract.Job)) (*soundboard.Sound, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, req)
	progress(extract.Job{Status: extract.StatusProcessing, Progress: 40})
	progress(extract.Job{Status: extract.StatusProcessing, Progress: 40})
	progress(extract.Job{Status: extract.StatusDone, Progress: 100})
	return &soundboard.Sound{ID: "clip", Title: "Video", Size: 2048}, nil
}

func (f *fakeService) List(context.Context) ([]soundboard.Sound, error) { return f.sounds, nil }

func (f *fakeService) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) Rename(_ context.Context, id, title string) error {
	if f.renamed == nil {
		f.renamed = map[string]string{}
	}
	f.renamed[id] = title
	return nil
}

func (f *fakeService) Reorder(_ context.Context, ids []string) error {
	if len(ids) == 1 {
		return soundboard.ErrBadOrder
	}
	f.order = ids
	return nil
}

func (f *fakeService) SetTheme(_ context.Context, t layouts.Theme) error { f.theme = t; return nil }

func (f *fakeService) ActiveLayout(context.Context) (*layouts.Layout, error) {
	l := layouts.Default()
	return &l, nil
}

type fakeQuota struct{ s quota.Sample }

func (f fakeQuota) Sample(context.Context) (quota.Sample, error) { return f.s, nil }

type fakeThumbs struct{ retain int }

func (f *fakeThumbs) Cleanup(_ context.Context, retain int) (int, error) {
	f.retain = retain
	return 3, nil
}

func newTestApp(svc *fakeService, in string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	app := NewApp(Deps{
		Service:         svc,
		Quota:           fakeQuota{s: quota.Sample{Usage: 45 << 20, Limit: 50 << 20, Percent: 90}},
		Thumbs:          &fakeThumbs{},
		ThumbnailRetain: 7,
		In:              strings.NewReader(in),
		Out:             &out,
	})
	return app, &out
}

func TestApp_Add(t *testing.T) {
	svc := &fakeService{}
	app, out := newTestApp(svc, "https://youtu.be/x\n\n01:05\nMy clip\n")

	require.NoError(t, app.Add(context.Background()))
	require.Len(t, svc.added, 1)
	assert.Equal(t, soundboard.AddRequest{URL: "https://youtu.be/x", Start: 0, End: 65, Title: "My clip"}, svc.added[0])
	assert.Equal(t, 1, strings.Count(out.String(), "processing 40%"))
	assert.Contains(t, out.String(), "done 100%")
	assert.Contains(t, out.String(), `Added "Video" (2.0 KiB) as clip`)
}

func TestApp_AddBadTimestamp(t *testing.T) {
	svc := &fakeService{}
	app, out := newTestApp(svc, "u\n00:00\n1:99\n\n")

	require.Error(t, app.Add(context.Background()))
	assert.Empty(t, svc.added)
	assert.Contains(t, out.String(), "Error:")
}

func TestApp_AddQuotaMessage(t *testing.T) {
	svc := &fakeService{addErr: common.ErrQuotaExceeded}
	app, out := newTestApp(svc, "u\n00:00\n00:10\n\n")

	require.ErrorIs(t, app.Add(context.Background()), common.ErrQuotaExceeded)
	assert.Contains(t, out.String(), "not enough space")
}

func TestApp_AddRefusedOffline(t *testing.T) {
	svc := &fakeService{}
	app, out := newTestApp(svc, "")
	app.ping = func(context.Context) error { return errors.New("down") }

	require.ErrorIs(t, app.Add(context.Background()), errOffline)
	assert.Contains(t, out.String(), "stored sounds are still available")
}

func TestApp_ListShowAndEdit(t *testing.T) {
	svc := &fakeService{sounds: []soundboard.Sound{
		{ID: "a", Title: "Airhorn", SourceURL: "https://youtu.be/a", Start: 1, End: 2.5, Size: 1 << 20, CreatedAt: time.Now()},
		{ID: "b", Title: "Bell", Size: 512, CreatedAt: time.Now()},
	}}
	app, out := newTestApp(svc, "Loud horn\n")
	ctx := context.Background()

	require.NoError(t, app.List(ctx))
	assert.Contains(t, out.String(), "Airhorn")
	assert.Contains(t, out.String(), "1.0 MiB")

	out.Reset()
	require.NoError(t, app.Show(ctx, "a"))
	assert.Contains(t, out.String(), "Range:   1s - 2.5s")
	require.ErrorIs(t, app.Show(ctx, "zzz"), soundboard.ErrNotFound)

	require.NoError(t, app.Rename(ctx, "a"))
	assert.Equal(t, "Loud horn", svc.renamed["a"])

	require.NoError(t, app.Delete(ctx, "b"))
	assert.Equal(t, []string{"b"}, svc.deleted)

	require.NoError(t, app.Reorder(ctx, []string{"b", "a"}))
	assert.Equal(t, []string{"b", "a"}, svc.order)
	require.ErrorIs(t, app.Reorder(ctx, []string{"a"}), soundboard.ErrBadOrder)
}

func TestApp_ListEmpty(t *testing.T) {
	app, out := newTestApp(&fakeService{}, "")
	require.NoError(t, app.List(context.Background()))
	assert.Contains(t, out.String(), "No sounds yet")
}

func TestApp_UsageThemeThumbs(t *testing.T) {
	orig := terminalWidth
	terminalWidth = func() int { return 12 }
	t.Cleanup(func() { terminalWidth = orig })

	svc := &fakeService{}
	app, out := newTestApp(svc, "")
	ctx := context.Background()

	require.NoError(t, app.Usage(ctx))
	assert.Contains(t, out.String(), "Storage: 45 MiB of 50 MiB (90%)")
	assert.Contains(t, out.String(), "[#########.]")

	require.NoError(t, app.Theme(ctx, "dark"))
	assert.Equal(t, layouts.ThemeDark, svc.theme)
	require.Error(t, app.Theme(ctx, "sepia"))

	require.NoError(t, app.CleanupThumbs(ctx))
	assert.Equal(t, 7, app.thumbs.(*fakeThumbs).retain)
	assert.Contains(t, out.String(), "Removed 3 cached images")
}

func TestApp_OnlineWatcher(t *testing.T) {
	app, _ := newTestApp(&fakeService{}, "")
	var up atomic.Bool
	app.ping = func(context.Context) error {
		if up.Load() {
			return nil
		}
		return errors.New("down")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.StartOnlineStatusWatcher(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Equal(t, ModeOffline, app.Mode())
	up.Store(true)
	assert.Eventually(t, func() bool { return app.Mode() == ModeOnline }, time.Second, 5*time.Millisecond)
	up.Store(false)
	assert.Eventually(t, func() bool { return app.Mode() == ModeOffline }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, "(offline)", app.status())
}

func TestApp_Run(t *testing.T) {
	silence(t)
	svc := &fakeService{}
	app, out := newTestApp(svc, "theme light\nexit\n")
	app.ping = func(context.Context) error { return nil }

	app.Run(context.Background())
	assert.Equal(t, layouts.ThemeLight, svc.theme)
	assert.Equal(t, ModeOnline, app.Mode())
	assert.Contains(t, out.String(), "Soundboard CLI")
}
