// Package normalize maps raw source payloads to the canonical event model.
// Normalizers are total: a malformed frame yields a placeholder event, never
// an error, so a single bad frame cannot abort a stream.
package normalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	feedv1 "github.com/mirador/newswire/pkg/feed/v1"
)

// PlaceholderTitle marks events produced from frames that failed to parse.
const PlaceholderTitle = "Error processing item"

type Normalizer interface {
	Source() feedv1.SourceSystem

	// Normalize converts one raw payload item to a canonical event.
	// Never returns nil.
	Normalize(raw []byte) *feedv1.CanonicalEvent
}

type Registry struct {
	normalizers map[feedv1.SourceSystem]Normalizer
}

func NewRegistry() *Registry {
	reg := &Registry{
		normalizers: make(map[feedv1.SourceSystem]Normalizer),
	}

	reg.Register(NewSourceANormalizer())
	reg.Register(NewSourceBNormalizer())

	return reg
}

func (r *Registry) Register(n Normalizer) {
	r.normalizers[n.Source()] = n
}

func (r *Registry) Get(source feedv1.SourceSystem) (Normalizer, bool) {
	n, ok := r.normalizers[source]
	return n, ok
}

// Normalize dispatches to the normalizer registered for source. An unknown
// source degrades to a placeholder like any other malformed input.
func (r *Registry) Normalize(source feedv1.SourceSystem, raw []byte) *feedv1.CanonicalEvent {
	n, ok := r.Get(source)
	if !ok {
		return placeholderEvent(source)
	}
	return n.Normalize(raw)
}

// syntheticID builds a deterministic-prefix unique ID for sources that omit
// one: <source>-<timestampMs>-<random suffix>.
func syntheticID(source feedv1.SourceSystem, timestampMs int64) string {
	return fmt.Sprintf("%s-%d-%s", source, timestampMs, uuid.NewString()[:8])
}

func placeholderEvent(source feedv1.SourceSystem) *feedv1.CanonicalEvent {
	now := time.Now().UnixMilli()
	return &feedv1.CanonicalEvent{
		ID:           syntheticID(source, now),
		Title:        PlaceholderTitle,
		SourceSystem: source,
		TimestampMs:  now,
	}
}
