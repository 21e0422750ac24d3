package services

import (
	"context"
	"sync"
	"time"

	"notifyhub/pkg/logging"

	"github.com/redis/go-redis/v9"
)

// eventTTL is how long a processed webhook event id is remembered
const eventTTL = 24 * time.Hour

// EventDeduper remembers webhook event ids so redeliveries are processed once.
type EventDeduper interface {
	// Seen reports whether id was already recorded, recording it otherwise.
	Seen(ctx context.Context, id string) (bool, error)
	// Forget drops id so a redelivery of an event that failed is processed again.
	Forget(ctx context.Context, id string) error
}

// RedisEventDeduper records event ids with SETNX so every instance shares them
type RedisEventDeduper struct {
	client *redis.Client
	prefix string
}

func NewRedisEventDeduper(client *redis.Client) *RedisEventDeduper {
	return &RedisEventDeduper{client: client, prefix: "webhook_event:"}
}

func (d *RedisEventDeduper) Seen(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	created, err := d.client.SetNX(ctx, d.prefix+id, time.Now().Unix(), eventTTL).Result()
	if err != nil {
		return false, err
	}
	return !created, nil
}

func (d *RedisEventDeduper) Forget(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return d.client.Del(ctx, d.prefix+id).Err()
}

// MemoryEventDeduper keeps event ids in process memory
type MemoryEventDeduper struct {
	processed       map[string]time.Time
	mutex           sync.Mutex
	cleanupInterval time.Duration
	ttl             time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryEventDeduper creates the deduper and starts its cleanup goroutine
func NewMemoryEventDeduper() *MemoryEventDeduper {
	d := &MemoryEventDeduper{
		processed:       make(map[string]time.Time),
		cleanupInterval: time.Hour,
		ttl:             eventTTL,
		stopCleanup:     make(chan struct{}),
	}

	go d.startCleanupRoutine()

	return d
}

func (d *MemoryEventDeduper) Seen(_ context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if processedAt, exists := d.processed[id]; exists && time.Since(processedAt) < d.ttl {
		logging.Infof("Webhook redelivery skipped - event_id: %s, first processed at: %v", id, processedAt)
		return true, nil
	}
	d.processed[id] = time.Now()
	return false, nil
}

func (d *MemoryEventDeduper) Forget(_ context.Context, id string) error {
	d.mutex.Lock()
	delete(d.processed, id)
	d.mutex.Unlock()
	return nil
}

func (d *MemoryEventDeduper) startCleanupRoutine() {
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanup()
		case <-d.stopCleanup:
			return
		}
	}
}

func (d *MemoryEventDeduper) cleanup() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	now := time.Now()
	initialCount := len(d.processed)
	for id, processedAt := range d.processed {
		if now.Sub(processedAt) > d.ttl {
			delete(d.processed, id)
		}
	}

	if cleaned := initialCount - len(d.processed); cleaned > 0 {
		logging.Debugf("Webhook dedup cleanup: removed %d expired events, remaining: %d", cleaned, len(d.processed))
	}
}

// Stop stops the cleanup goroutine
func (d *MemoryEventDeduper) Stop() {
	d.stopOnce.Do(func() { close(d.stopCleanup) })
}
