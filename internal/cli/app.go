package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/logging"
	"github.com/dmitrijs2005/soundboard/internal/services/quota"
	"github.com/dmitrijs2005/soundboard/internal/services/soundboard"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// QuotaSampler is satisfied by *quota.Monitor.
type QuotaSampler interface {
	Sample(ctx context.Context) (quota.Sample, error)
}

// ThumbCleaner is satisfied by *thumbnails.Cache.
type ThumbCleaner interface {
	Cleanup(ctx context.Context, retain int) (int, error)
}

type Deps struct {
	Service soundboard.Service
	Quota   QuotaSampler
	Thumbs  ThumbCleaner
	// Ping reports whether the extraction service is reachable.
	Ping   func(ctx context.Context) error
	Logger logging.Logger

	OnlineCheckInterval time.Duration
	ThumbnailRetain     int

	In  io.Reader
	Out io.Writer
}

type App struct {
	svc    soundboard.Service
	quota  QuotaSampler
	thumbs ThumbCleaner
	ping   func(ctx context.Context) error
	log    logging.Logger

	checkEvery time.Duration
	retain     int

	reader *bufio.Reader
	out    io.Writer

	mu   sync.Mutex
	mode Mode
}

func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.In == nil {
		d.In = os.Stdin
	}
	if d.Out == nil {
		d.Out = os.Stdout
	}
	if d.OnlineCheckInterval <= 0 {
		d.OnlineCheckInterval = 3 * time.Second
	}
	return &App{
		svc:        d.Service,
		quota:      d.Quota,
		thumbs:     d.Thumbs,
		ping:       d.Ping,
		log:        d.Logger,
		checkEvery: d.OnlineCheckInterval,
		retain:     d.ThumbnailRetain,
		reader:     bufio.NewReader(d.In),
		out:        d.Out,
		mode:       ModeOffline,
	}
}

// Mode returns the connectivity mode last observed by the watcher.
func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, m Mode) {
	a.mu.Lock()
	changed := a.mode != m
	a.mode = m
	a.mu.Unlock()
	if changed {
		a.log.Info(ctx, "connectivity changed", "mode", string(m))
	}
}

// checkOnline pings once and updates the mode.
func (a *App) checkOnline(ctx context.Context) {
	if a.ping == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.ping(pctx)
	cancel()
	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

// StartOnlineStatusWatcher pings every interval until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) status() string {
	return "(" + string(a.Mode()) + ")"
}

// Run blocks in the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.checkEvery)

	a.println("Soundboard CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}
