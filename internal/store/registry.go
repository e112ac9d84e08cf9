package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry maps conversation identity to its buffer. Buffers are created
// lazily on first reference; creation is serialized so concurrent first
// references to the same channel resolve to a single buffer.
type Registry struct {
	mu       sync.Mutex
	buffers  map[string]*Buffer
	capacity int
	log      *MessageLog // nil disables persistence
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. Buffers it creates share the given
// capacity and, when log is non-nil, mirror into it.
func NewRegistry(capacity int, log *MessageLog, logger *slog.Logger) *Registry {
	return &Registry{
		buffers:  make(map[string]*Buffer),
		capacity: capacity,
		log:      log,
		logger:   logger,
	}
}

// GetOrCreate returns the buffer for channelID, creating it if absent.
func (r *Registry) GetOrCreate(ctx context.Context, channelID string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[channelID]
	if !ok {
		buf = NewBuffer(ctx, channelID, r.capacity, r.log, r.logger)
		r.buffers[channelID] = buf
	}
	return buf
}

// Clear empties the buffer for channelID, keeping it registered. Reports
// whether a buffer existed.
func (r *Registry) Clear(ctx context.Context, channelID string) bool {
	r.mu.Lock()
	buf, ok := r.buffers[channelID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	buf.Clear(ctx)
	return true
}

// EvictIdle removes every buffer whose newest message is older than maxIdle,
// or which has no messages at all. Returns the number removed. In-memory
// only; log rows are untouched.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := nowSeconds() - maxIdle.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for channelID, buf := range r.buffers {
		if buf.Len() == 0 || buf.LastTimestamp() < cutoff {
			delete(r.buffers, channelID)
			removed++
		}
	}
	return removed
}

// PurgeLog deletes log rows older than maxAge across all channels,
// independent of what is in memory. Returns 0 when persistence is off.
func (r *Registry) PurgeLog(ctx context.Context, maxAge time.Duration) (int64, error) {
	if r.log == nil {
		return 0, nil
	}
	return r.log.Purge(ctx, maxAge)
}

// Len returns the number of registered buffers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}
