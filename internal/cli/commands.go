package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/soundboard/internal/common"
	"github.com/dmitrijs2005/soundboard/internal/extract"
	"github.com/dmitrijs2005/soundboard/internal/repositories/layouts"
	"github.com/dmitrijs2005/soundboard/internal/services/soundboard"
)

var errOffline = errors.New("extraction service is unreachable")

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) fail(ctx context.Context, op string, err error) error {
	a.log.Error(ctx, op+" failed", "error", err)
	a.println("Error:", userMessage(err))
	return err
}

// userMessage turns storage and network errors into something a user can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrQuotaExceeded):
		return "not enough space for this clip; delete some sounds and try again"
	case errors.Is(err, common.ErrStorageFull):
		return "the device is out of storage"
	case errors.Is(err, common.ErrNetworkFailure), errors.Is(err, errOffline):
		return "extraction service is unreachable; stored sounds are still available"
	case errors.Is(err, extract.ErrJobTimeout):
		return "extraction timed out"
	}
	return err.Error()
}

func (a *App) Add(ctx context.Context) error {
	if a.ping != nil && a.Mode() == ModeOffline {
		return a.fail(ctx, "add", errOffline)
	}

	url, err := GetSimpleText(a.reader, "Video URL or ID", a.out)
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	startStr, err := GetDefaultText(a.reader, "Start (MM:SS)", "00:00", a.out)
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	endStr, err := GetSimpleText(a.reader, "End (MM:SS)", a.out)
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	title, err := GetSimpleText(a.reader, "Title (empty for video title)", a.out)
	if err != nil {
		return a.fail(ctx, "add", err)
	}

	start, err := soundboard.ParseTimestamp(startStr)
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	end, err := soundboard.ParseTimestamp(endStr)
	if err != nil {
		return a.fail(ctx, "add", err)
	}

	last := -1
	s, err := a.svc.AddSound(ctx, soundboard.AddRequest{URL: url, Start: start, End: end, Title: title},
		func(j extract.Job) {
			if j.Progress != last {
				last = j.Progress
				fmt.Fprintf(a.out, "%s %d%%\n", j.Status, j.Progress)
			}
		})
	if err != nil {
		return a.fail(ctx, "add", err)
	}
	fmt.Fprintf(a.out, "Added %q (%s) as %s\n", s.Title, humanize.IBytes(uint64(s.Size)), s.ID)
	return nil
}

func (a *App) List(ctx context.Context) error {
	sounds, err := a.svc.List(ctx)
	if err != nil {
		return a.fail(ctx, "list", err)
	}
	if len(sounds) == 0 {
		a.println("No sounds yet. Use 'add' to create one.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tSIZE\tADDED\tID")
	for i, s := range sounds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, s.Title, humanize.IBytes(uint64(s.Size)),
			humanize.Time(s.CreatedAt), s.ID)
	}
	return tw.Flush()
}

func (a *App) find(ctx context.Context, id string) (*soundboard.Sound, error) {
	sounds, err := a.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sounds {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", soundboard.ErrNotFound, id)
}

func (a *App) Show(ctx context.Context, id string) error {
	s, err := a.find(ctx, id)
	if err != nil {
		return a.fail(ctx, "show", err)
	}
	fmt.Fprintf(a.out, "Title:   %s\n", s.Title)
	fmt.Fprintf(a.out, "Source:  %s\n", s.SourceURL)
	fmt.Fprintf(a.out, "Range:   %gs - %gs\n", s.Start, s.End)
	fmt.Fprintf(a.out, "Size:    %s\n", humanize.IBytes(uint64(s.Size)))
	fmt.Fprintf(a.out, "Added:   %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.svc.Delete(ctx, id); err != nil {
		return a.fail(ctx, "delete", err)
	}
	a.println("Deleted", id)
	return nil
}

func (a *App) Rename(ctx context.Context, id string) error {
	title, err := GetSimpleText(a.reader, "New title", a.out)
	if err != nil {
		return a.fail(ctx, "rename", err)
	}
	if err := a.svc.Rename(ctx, id, title); err != nil {
		return a.fail(ctx, "rename", err)
	}
	a.println("Renamed", id)
	return nil
}

func (a *App) Reorder(ctx context.Context, ids []string) error {
	if err := a.svc.Reorder(ctx, ids); err != nil {
		return a.fail(ctx, "reorder", err)
	}
	a.println("Layout updated")
	return nil
}

func (a *App) Usage(ctx context.Context) error {
	s, err := a.quota.Sample(ctx)
	if err != nil {
		return a.fail(ctx, "usage", err)
	}
	fmt.Fprintf(a.out, "Storage: %s of %s (%d%%)\n",
		humanize.IBytes(uint64(s.Usage)), humanize.IBytes(uint64(s.Limit)), s.Percent)
	a.println(renderBar(s.Percent, terminalWidth()))
	return nil
}

func (a *App) Theme(ctx context.Context, name string) error {
	t, err := layouts.ParseTheme(name)
	if err != nil {
		return a.fail(ctx, "theme", err)
	}
	if err := a.svc.SetTheme(ctx, t); err != nil {
		return a.fail(ctx, "theme", err)
	}
	a.println("Theme set to", string(t))
	return nil
}

func (a *App) CleanupThumbs(ctx context.Context) error {
	n, err := a.thumbs.Cleanup(ctx, a.retain)
	if err != nil {
		return a.fail(ctx, "thumbnail cleanup", err)
	}
	fmt.Fprintf(a.out, "Removed %d cached images\n", n)
	return nil
}

// renderBar draws a usage bar fitting in width columns. Percent is clamped
// to 0..100.
func renderBar(percent, width int) string {
	n := min(width-2, 50)
	if n < 10 {
		n = 10
	}
	percent = max(0, min(percent, 100))
	filled := n * percent / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", n-filled) + "]"
}
