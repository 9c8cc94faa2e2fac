// Package ingest is the process root of the ingestion core. It owns the
// actor registry (exactly one connection actor per configured source), the
// reconciled store, the dispatcher, and the backfill fetcher, and wires raw
// transport frames through normalization into the store's insert path.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mirador/newswire/internal/alert"
	"github.com/mirador/newswire/internal/backfill"
	"github.com/mirador/newswire/internal/config"
	"github.com/mirador/newswire/internal/conn"
	"github.com/mirador/newswire/internal/normalize"
	"github.com/mirador/newswire/internal/store"
	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

// SourceStatus is the per-source connectivity view exposed to consumers.
type SourceStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

type ServiceConfig struct {
	Config  config.Config
	Sink    alert.Sink
	Deduper alert.Deduper
	Dialer  conn.Dialer
	Logger  *slog.Logger
}

type Service struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	registry   *normalize.Registry
	dispatcher *alert.Dispatcher
	fetcher    *backfill.Fetcher

	mu         sync.RWMutex
	keywords   []feedv1.Keyword
	servers    map[feedv1.SourceSystem]config.ServerConfig
	lastErrors map[feedv1.SourceSystem]string

	actors map[feedv1.SourceSystem]*conn.Actor

	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(sc ServiceConfig) *Service {
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		cfg:        sc.Config,
		logger:     logger.With("component", "ingest"),
		registry:   normalize.NewRegistry(),
		servers:    make(map[feedv1.SourceSystem]config.ServerConfig),
		lastErrors: make(map[feedv1.SourceSystem]string),
		actors:     make(map[feedv1.SourceSystem]*conn.Actor),
		ctx:        ctx,
		cancel:     cancel,
	}

	for _, text := range sc.Config.Keywords {
		s.keywords = append(s.keywords, feedv1.Keyword{
			ID:   uuid.NewString(),
			Text: text,
		})
	}

	s.dispatcher = alert.NewDispatcher(alert.DispatcherConfig{
		Sink:        sc.Sink,
		Deduper:     sc.Deduper,
		DedupWindow: sc.Config.Alert.DedupWindow,
		Logger:      logger,
	})

	s.store = store.New(store.Config{
		MaxSize: sc.Config.MaxStoreSize,
		Logger:  logger,
		Match: func(ev *feedv1.CanonicalEvent) (feedv1.Keyword, bool) {
			return alert.FindMatch(ev, s.Keywords())
		},
		OnInsert: func(ev *feedv1.CanonicalEvent) {
			if ev.MatchedKeyword != "" {
				s.dispatcher.Notify(s.ctx, ev, ev.MatchedKeyword)
			}
		},
	})

	s.fetcher = backfill.NewFetcher(backfill.Config{Logger: logger})

	dialer := sc.Dialer
	if dialer == nil {
		dialer = &conn.WebsocketDialer{}
	}

	for _, server := range sc.Config.Servers {
		source := server.SourceSystem()
		s.servers[source] = server
		s.actors[source] = conn.NewActor(conn.ActorConfig{
			Source:    source,
			Dialer:    dialer,
			Logger:    logger,
			OnMessage: s.frameHandler(source),
			OnUp:      s.upHandler(source),
		})
	}

	return s
}

// Start configures every actor and opens the connections, then runs the
// startup backfill.
func (s *Service) Start(ctx context.Context) {
	s.mu.RLock()
	servers := make(map[feedv1.SourceSystem]config.ServerConfig, len(s.servers))
	for source, server := range s.servers {
		servers[source] = server
	}
	s.mu.RUnlock()

	for source, server := range servers {
		actor := s.actors[source]
		actor.SetConfig(conn.Config{URL: server.WebsocketURL, Token: server.Token})
		actor.Connect()
	}

	if s.cfg.APIFetchEnabled {
		for source := range servers {
			go s.Backfill(ctx, source)
		}
	}
}

// Stop disconnects every actor cleanly, tears them down, and waits for
// in-flight notification deliveries.
func (s *Service) Stop(ctx context.Context) {
	for _, actor := range s.actors {
		actor.Disconnect(ctx)
	}
	for _, actor := range s.actors {
		actor.Cleanup()
	}
	s.cancel()
	s.dispatcher.Wait()
	s.logger.Info("ingestion stopped")
}

// Refresh is the external wake signal (foreground resume, keep-alive tick):
// idempotent per actor, safe to call redundantly.
func (s *Service) Refresh() {
	for _, actor := range s.actors {
		actor.EnsureConnected()
	}
}

// Reconfigure swaps server configuration. Changed actors cycle through a
// full disconnect/reconnect with the new values (copy-on-write, last write
// wins).
func (s *Service) Reconfigure(cfg config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	for _, server := range cfg.Servers {
		s.servers[server.SourceSystem()] = server
	}
	s.mu.Unlock()

	for _, server := range cfg.Servers {
		if actor, ok := s.actors[server.SourceSystem()]; ok {
			actor.SetConfig(conn.Config{URL: server.WebsocketURL, Token: server.Token})
		}
	}
}

// Keywords returns the current filter list.
func (s *Service) Keywords() []feedv1.Keyword {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]feedv1.Keyword, len(s.keywords))
	copy(out, s.keywords)
	return out
}

// SetKeywords replaces the filter list. Order is the matching tie-break.
func (s *Service) SetKeywords(texts []string) {
	keywords := make([]feedv1.Keyword, 0, len(texts))
	for _, text := range texts {
		keywords = append(keywords, feedv1.Keyword{
			ID:   uuid.NewString(),
			Text: text,
		})
	}

	s.mu.Lock()
	s.keywords = keywords
	s.mu.Unlock()
}

// Events returns a read snapshot of the reconciled store, newest first.
func (s *Service) Events() []*feedv1.CanonicalEvent {
	return s.store.Snapshot()
}

// Status reports per-source connectivity for the consumer boundary.
func (s *Service) Status() map[string]SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]SourceStatus, len(s.actors))
	for source, actor := range s.actors {
		out[source.String()] = SourceStatus{
			Name:      s.servers[source].Name,
			Connected: actor.Connected(),
			State:     actor.State().String(),
			LastError: s.lastErrors[source],
		}
	}
	return out
}

// Stats exposes store and dispatcher counters.
func (s *Service) Stats() (store.Stats, alert.DispatcherStats) {
	return s.store.Stats(), s.dispatcher.Stats()
}

// Backfill runs the REST catch-up fetch for one source and feeds the
// results through the normal insert path, so it is idempotent against
// already-seen events.
func (s *Service) Backfill(ctx context.Context, source feedv1.SourceSystem) {
	s.mu.RLock()
	server, ok := s.servers[source]
	enabled := s.cfg.APIFetchEnabled
	s.mu.RUnlock()

	if !ok || !enabled || server.APIURL == "" {
		return
	}

	items, err := s.fetcher.Fetch(ctx, server.APIURL, server.Token)
	if err != nil {
		s.mu.Lock()
		s.lastErrors[source] = err.Error()
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	delete(s.lastErrors, source)
	s.mu.Unlock()

	inserted := 0
	for _, item := range items {
		if s.ingestItem(source, item) {
			inserted++
		}
	}
	s.logger.Info("backfill merged",
		"source", source.String(),
		"fetched", len(items),
		"inserted", inserted,
	)
}

func (s *Service) frameHandler(source feedv1.SourceSystem) func(raw []byte) {
	return func(raw []byte) {
		for _, item := range splitFrame(raw) {
			s.ingestItem(source, item)
		}
	}
}

func (s *Service) upHandler(source feedv1.SourceSystem) func(reconnected bool) {
	return func(reconnected bool) {
		if reconnected {
			s.Backfill(s.ctx, source)
		}
	}
}

func (s *Service) ingestItem(source feedv1.SourceSystem, raw []byte) bool {
	ev := s.registry.Normalize(source, raw)

	s.mu.RLock()
	showReposts := s.cfg.ShowReposts
	s.mu.RUnlock()

	if !showReposts && ev.IsRepost() {
		s.logger.Debug("repost dropped", "id", ev.ID)
		return false
	}

	return s.store.Insert(ev)
}

// splitFrame expands a JSON array frame into its elements; any other frame
// passes through whole.
func splitFrame(raw []byte) [][]byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err == nil {
			out := make([][]byte, len(items))
			for i, item := range items {
				out[i] = item
			}
			return out
		}
	}
	return [][]byte{trimmed}
}
