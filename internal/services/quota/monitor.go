// Package quota reports how much of the audio quota is in use. Reports are
// advisory; nothing here blocks a write.
package quota

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/logging"
)

const (
	DefaultInterval  = 5 * time.Second
	DefaultThreshold = 95
)

// UsageSource is satisfied by audio.Repository.
type UsageSource interface {
	Usage(ctx context.Context) (int64, error)
	Quota() int64
}

type Sample struct {
	Usage   int64
	Limit   int64
	Percent int
}

// Percent is round(100*usage/limit), or 0 when limit is not positive.
func Percent(usage, limit int64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(usage) / float64(limit)))
}

type Monitor struct {
	src      UsageSource
	interval time.Duration
	log      logging.Logger

	threshold int
	onCross   func(Sample)

	mu     sync.Mutex
	subs   map[int]chan Sample
	nextID int
	stop   context.CancelFunc
	done   chan struct{}
	above  bool
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option { return func(m *Monitor) { m.interval = d } }

func WithLogger(l logging.Logger) Option { return func(m *Monitor) { m.log = l } }

// WithThresholdHook calls fn each time a sample reaches pct percent after a
// sample below it.
func WithThresholdHook(pct int, fn func(Sample)) Option {
	return func(m *Monitor) {
		m.threshold = pct
		m.onCross = fn
	}
}

func NewMonitor(src UsageSource, opts ...Option) *Monitor {
	m := &Monitor{
		src:       src,
		interval:  DefaultInterval,
		log:       logging.Discard(),
		threshold: DefaultThreshold,
		subs:      make(map[int]chan Sample),
	}
	for _, o := range opts {
		o(m)
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	return m
}

// Sample takes one reading now.
func (m *Monitor) Sample(ctx context.Context) (Sample, error) {
	usage, err := m.src.Usage(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("read usage: %w", err)
	}
	limit := m.src.Quota()
	s := Sample{Usage: usage, Limit: limit, Percent: Percent(usage, limit)}
	m.observe(s)
	return s, nil
}

func (m *Monitor) observe(s Sample) {
	m.mu.Lock()
	crossed := s.Percent >= m.threshold && !m.above
	m.above = s.Percent >= m.threshold
	m.mu.Unlock()

	if crossed && m.onCross != nil {
		m.onCross(s)
	}
}

// Subscribe returns a channel of periodic samples and a function that ends
// the subscription. Polling runs only while at least one subscription is open.
// Slow readers see the latest sample; older ones are dropped.
func (m *Monitor) Subscribe() (<-chan Sample, func()) {
	ch := make(chan Sample, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	if len(m.subs) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		m.stop = cancel
		m.done = make(chan struct{})
		go m.poll(ctx, m.done)
	}
	m.mu.Unlock()

	var once sync.Once
	return ch, func() { once.Do(func() { m.unsubscribe(id) }) }
}

func (m *Monitor) unsubscribe(id int) {
	m.mu.Lock()
	ch, ok := m.subs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.subs, id)
	close(ch)

	var (
		stop context.CancelFunc
		done chan struct{}
	)
	if len(m.subs) == 0 {
		stop, done = m.stop, m.done
		m.stop, m.done = nil, nil
	}
	m.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

func (m *Monitor) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		if s, err := m.Sample(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn(ctx, "quota sample failed", "error", err)
		} else {
			m.broadcast(s)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (m *Monitor) broadcast(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Active reports whether the polling loop is running.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}
