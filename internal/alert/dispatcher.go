package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mirador/newswire/internal/backoff"
	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

const (
	// DefaultDedupWindow suppresses repeat (event id, keyword) dispatches.
	DefaultDedupWindow = 60 * time.Second

	// DefaultMaxRetries bounds redelivery attempts after a sink failure.
	DefaultMaxRetries = 2
)

// Notification is the payload handed to the external sink. Dedup/tagging by
// event ID is the dispatcher's responsibility, not the sink's.
type Notification struct {
	EventID string `json:"event_id"`
	Keyword string `json:"keyword"`
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source,omitempty"`
}

// Sink is the external notification delivery boundary.
type Sink interface {
	Dispatch(ctx context.Context, n Notification) error
}

type DispatcherConfig struct {
	Sink        Sink
	Deduper     Deduper
	DedupWindow time.Duration
	MaxRetries  int
	Backoff     backoff.Policy
	Logger      *slog.Logger
}

// Dispatcher delivers one notification per (event id, keyword) pair within
// the dedup window. Delivery runs asynchronously with bounded retry so it
// never blocks ingestion; exhausted retries are counted and dropped.
type Dispatcher struct {
	sink        Sink
	dedup       Deduper
	dedupWindow time.Duration
	maxRetries  int
	policy      backoff.Policy
	logger      *slog.Logger

	wg sync.WaitGroup

	mu         sync.Mutex
	dispatched uint64
	suppressed uint64
	dropped    uint64
}

type DispatcherStats struct {
	Dispatched uint64
	Suppressed uint64
	Dropped    uint64
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Deduper == nil {
		cfg.Deduper = NewMemoryDeduper()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff == (backoff.Policy{}) {
		cfg.Backoff = backoff.Policy{
			Base:        500 * time.Millisecond,
			Factor:      2.0,
			Cap:         5 * time.Second,
			MaxExponent: 4,
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		sink:        cfg.Sink,
		dedup:       cfg.Deduper,
		dedupWindow: cfg.DedupWindow,
		maxRetries:  cfg.MaxRetries,
		policy:      cfg.Backoff,
		logger:      cfg.Logger.With("component", "dispatcher"),
	}
}

// Notify dispatches an alert for a matched event. Repeats within the dedup
// window are silently skipped and counted.
func (d *Dispatcher) Notify(ctx context.Context, ev *feedv1.CanonicalEvent, keyword string) {
	if d.sink == nil || ev == nil || keyword == "" {
		return
	}

	key := ev.ID + "|" + keyword
	fresh, err := d.dedup.Mark(ctx, key, d.dedupWindow)
	if err != nil {
		d.logger.Warn("dedup check failed, dispatching anyway", "key", key, "error", err)
		fresh = true
	}
	if !fresh {
		d.mu.Lock()
		d.suppressed++
		d.mu.Unlock()
		d.logger.Debug("duplicate notification suppressed", "key", key)
		return
	}

	n := Notification{
		EventID: ev.ID,
		Keyword: keyword,
		Title:   ev.Title,
		Body:    ev.Body,
		URL:     ev.URL,
		Source:  ev.SourceLabel,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(ctx, n)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.policy.Delay(attempt)):
			}
		}

		if lastErr = d.sink.Dispatch(ctx, n); lastErr == nil {
			d.mu.Lock()
			d.dispatched++
			d.mu.Unlock()
			d.logger.Info("notification dispatched",
				"event_id", n.EventID,
				"keyword", n.Keyword,
			)
			return
		}

		d.logger.Warn("notification dispatch failed",
			"event_id", n.EventID,
			"attempt", attempt+1,
			"error", lastErr,
		)
	}

	d.mu.Lock()
	d.dropped++
	d.mu.Unlock()
	d.logger.Error("notification dropped after retries",
		"event_id", n.EventID,
		"keyword", n.Keyword,
		"error", lastErr,
	)
}

// Wait blocks until in-flight deliveries finish. Shutdown helper.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) Stats() DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DispatcherStats{
		Dispatched: d.dispatched,
		Suppressed: d.suppressed,
		Dropped:    d.dropped,
	}
}
