// Package soundboard ties extraction, clip storage, image caching and layouts
// together into the operations the CLI offers.
package soundboard

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/extract"
	"github.com/dmitrijs2005/soundboard/internal/logging"
	"github.com/dmitrijs2005/soundboard/internal/repositories/audio"
	"github.com/dmitrijs2005/soundboard/internal/repositories/layouts"
	"github.com/dmitrijs2005/soundboard/internal/repositories/settings"
	"github.com/dmitrijs2005/soundboard/internal/services/thumbnails"
)

var (
	ErrInvalidRange = errors.New("end time must be after start time")
	ErrNotFound     = errors.New("sound not found")
	ErrBadOrder     = errors.New("order must list every sound of the layout exactly once")
)

// Metadata keys written on every clip.
const (
	MetaTitle      = "title"
	MetaSourceURL  = "sourceUrl"
	MetaStart      = "start"
	MetaEnd        = "end"
	MetaFileID     = "fileId"
	MetaVideoTitle = "videoTitle"
	MetaMimeType   = "mimeType"
)

// Extractor is the part of extract.Client the service needs.
type Extractor interface {
	Submit(ctx context.Context, r extract.Request) (string, error)
	Wait(ctx context.Context, jobID string, progress func(extract.Job)) (*extract.Job, error)
	Download(ctx context.Context, fileID string) ([]byte, string, error)
	ThumbnailURL(fileID string) string
	ScreenshotURL(fileID string) string
}

// ImageCache is the part of thumbnails.Cache the service needs.
type ImageCache interface {
	PreloadThumbnails(ctx context.Context, fileID, thumbURL, screenshotURL string) thumbnails.Preloaded
	Forget(ctx context.Context, fileID string) error
}

type AddRequest struct {
	URL   string
	Start float64
	End   float64
	// Title defaults to the source video title.
	Title string
	// ID overrides the default "<url>_<start>_<end>".
	ID string
}

type Sound struct {
	ID        string
	Title     string
	SourceURL string
	FileID    string
	Start     float64
	End       float64
	Size      int64
	CreatedAt time.Time
	Images    thumbnails.Preloaded
}

type Service interface {
	AddSound(ctx context.Context, req AddRequest, progress func(extract.Job)) (*Sound, error)
	List(ctx context.Context) ([]Sound, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, title string) error
	Reorder(ctx context.Context, ids []string) error
	SetTheme(ctx context.Context, theme layouts.Theme) error
	ActiveLayout(ctx context.Context) (*layouts.Layout, error)
}

type Deps struct {
	Audio     audio.Repository
	Layouts   layouts.Repository
	Settings  settings.Repository
	Extractor Extractor
	Images    ImageCache
	Logger    logging.Logger
}

type service struct {
	audio     audio.Repository
	layouts   layouts.Repository
	settings  settings.Repository
	extractor Extractor
	images    ImageCache
	log       logging.Logger
}

func NewService(d Deps) Service {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &service{
		audio:     d.Audio,
		layouts:   d.Layouts,
		settings:  d.Settings,
		extractor: d.Extractor,
		images:    d.Images,
		log:       d.Logger,
	}
}

func (s *service) AddSound(ctx context.Context, req AddRequest, progress func(extract.Job)) (*Sound, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return nil, errors.New("source url is empty")
	}
	if req.Start < 0 || req.Start >= req.End {
		return nil, fmt.Errorf("%w: %v..%v", ErrInvalidRange, req.Start, req.End)
	}

	jobID, err := s.extractor.Submit(ctx, extract.Request{URL: req.URL, Start: req.Start, End: req.End})
	if err != nil {
		return nil, fmt.Errorf("submit extraction: %w", err)
	}
	job, err := s.extractor.Wait(ctx, jobID, progress)
	if err != nil {
		return nil, err
	}
	data, mimeType, err := s.extractor.Download(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("download clip: %w", err)
	}

	id := req.ID
	if id == "" {
		id = audio.ClipID(req.URL, req.Start, req.End)
	}
	title := cmp.Or(strings.TrimSpace(req.Title), job.Title(), "Untitled")
	meta := map[string]string{
		MetaTitle:      title,
		MetaSourceURL:  req.URL,
		MetaStart:      formatSeconds(req.Start),
		MetaEnd:        formatSeconds(req.End),
		MetaFileID:     job.FileID,
		MetaVideoTitle: job.Title(),
		MetaMimeType:   mimeType,
	}

	id, err = s.audio.Save(ctx, id, audio.Binary(data), meta, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("save clip: %w", err)
	}

	images := s.images.PreloadThumbnails(ctx, job.FileID,
		s.extractor.ThumbnailURL(job.FileID), s.extractor.ScreenshotURL(job.FileID))

	l, err := s.ActiveLayout(ctx)
	if err != nil {
		return nil, err
	}
	if l.Append(id) {
		if err := s.layouts.Put(ctx, *l); err != nil {
			return nil, err
		}
	}

	s.log.Info(ctx, "sound added", "id", id, "bytes", len(data), "layout", l.ID)
	return &Sound{
		ID:        id,
		Title:     title,
		SourceURL: req.URL,
		FileID:    job.FileID,
		Start:     req.Start,
		End:       req.End,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
		Images:    images,
	}, nil
}

// ActiveLayout returns the selected layout, or a fresh default one.
func (s *service) ActiveLayout(ctx context.Context) (*layouts.Layout, error) {
	id, ok, err := s.settings.Get(ctx, settings.KeyActiveLayout)
	if err != nil {
		return nil, err
	}
	if !ok || id == "" {
		id = layouts.DefaultID
	}
	l, err := s.layouts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		d := layouts.Default()
		d.ID = id
		l = &d
	}
	return l, nil
}

// List returns sounds in the active layout's order, followed by stored
// sounds the layout does not mention, oldest first.
func (s *service) List(ctx context.Context) ([]Sound, error) {
	entries, err := s.audio.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	l, err := s.ActiveLayout(ctx)
	if err != nil {
		return nil, err
	}

	rank := make(map[string]int, len(l.SoundIDs))
	for i, id := range l.SoundIDs {
		rank[id] = i
	}
	slices.SortStableFunc(entries, func(a, b audio.Entry) int {
		ra, oka := rank[a.ID]
		rb, okb := rank[b.ID]
		switch {
		case oka && okb:
			return cmp.Compare(ra, rb)
		case oka:
			return -1
		case okb:
			return 1
		}
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})

	out := make([]Sound, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSound(e))
	}
	return out, nil
}

func toSound(e audio.Entry) Sound {
	start, _ := strconv.ParseFloat(e.Metadata[MetaStart], 64)
	end, _ := strconv.ParseFloat(e.Metadata[MetaEnd], 64)
	return Sound{
		ID:        e.ID,
		Title:     e.Metadata[MetaTitle],
		SourceURL: e.Metadata[MetaSourceURL],
		FileID:    e.Metadata[MetaFileID],
		Start:     start,
		End:       end,
		Size:      e.Size,
		CreatedAt: time.UnixMilli(e.CreatedAt),
	}
}

// Delete removes the clip, its cached images and every layout reference.
func (s *service) Delete(ctx context.Context, id string) error {
	e, err := s.audio.Get(ctx, id)
	if err != nil && !errors.Is(err, common.ErrCorrupted) {
		return err
	}
	if err := s.audio.Delete(ctx, id); err != nil {
		return err
	}
	if e != nil && e.Metadata[MetaFileID] != "" {
		if err := s.images.Forget(ctx, e.Metadata[MetaFileID]); err != nil {
			s.log.Warn(ctx, "cached images not removed", "id", id, "error", err)
		}
	}

	all, err := s.layouts.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, l := range all {
		if l.Remove(id) {
			if err := s.layouts.Put(ctx, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *service) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title is empty")
	}
	e, err := s.audio.Get(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.audio.UpdateMetadata(ctx, id, func(m map[string]string) { m[MetaTitle] = title })
}

func (s *service) Reorder(ctx context.Context, ids []string) error {
	l, err := s.ActiveLayout(ctx)
	if err != nil {
		return err
	}
	if len(ids) != len(l.SoundIDs) {
		return ErrBadOrder
	}
	want := slices.Clone(l.SoundIDs)
	got := slices.Clone(ids)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return ErrBadOrder
	}
	l.SoundIDs = slices.Clone(ids)
	return s.layouts.Put(ctx, *l)
}

func (s *service) SetTheme(ctx context.Context, theme layouts.Theme) error {
	if _, err := layouts.ParseTheme(string(theme)); err != nil {
		return err
	}
	l, err := s.ActiveLayout(ctx)
	if err != nil {
		return err
	}
	l.Theme = theme
	if err := s.layouts.Put(ctx, *l); err != nil {
		return err
	}
	return s.settings.Set(ctx, settings.KeyTheme, string(theme))
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
