package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zapmesa/zapmesa/pkg/logging"
)

// DefaultDedupWindow is how long a provider message id is remembered.
const DefaultDedupWindow = 15 * time.Minute

// Deduper gates reprocessing of duplicate webhook deliveries. TryRegister
// returns true exactly once per non-empty message id within the retention
// window. An empty id always passes: a message we cannot deduplicate is
// processed rather than dropped.
type Deduper interface {
	TryRegister(ctx context.Context, messageID string) bool
}

// MemoryDeduper is an in-process expiring key set. Entries are swept lazily
// on registration once enough of them have accumulated.
type MemoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

const memoryDeduperSweepThreshold = 1024

// NewMemoryDeduper creates a deduper with the given retention window.
func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &MemoryDeduper{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// TryRegister registers a message id, reporting whether it was first seen
// within the window.
func (d *MemoryDeduper) TryRegister(_ context.Context, messageID string) bool {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expiry, ok := d.seen[messageID]; ok && now.Before(expiry) {
		return false
	}

	if len(d.seen) >= memoryDeduperSweepThreshold {
		for id, expiry := range d.seen {
			if !now.Before(expiry) {
				delete(d.seen, id)
			}
		}
	}

	d.seen[messageID] = now.Add(d.window)
	return true
}

// RedisDeduper shares the dedup window across webhook instances via SET NX.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
	logger *logging.Logger
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(client *redis.Client, window time.Duration, logger *logging.Logger) *RedisDeduper {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisDeduper{client: client, window: window, logger: logger}
}

func dedupeKey(messageID string) string {
	return "dedupe:inbound:" + messageID
}

// TryRegister registers a message id, reporting whether it was first seen
// within the window. A Redis failure passes the message through: duplicate
// processing is preferred over dropping a live message.
func (d *RedisDeduper) TryRegister(ctx context.Context, messageID string) bool {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return true
	}

	ok, err := d.client.SetNX(ctx, dedupeKey(messageID), 1, d.window).Result()
	if err != nil {
		d.logger.Warn("dedupe check failed, letting message through", "error", err, "message_id", messageID)
		return true
	}
	return ok
}

var (
	_ Deduper = (*MemoryDeduper)(nil)
	_ Deduper = (*RedisDeduper)(nil)
)
