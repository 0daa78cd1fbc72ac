package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
	"github.com/prajwal851851/QRCODE-PROJECT/pkg/timeutil"
)

// RedisDeduper remembers sent reminders with SET NX and a TTL
type RedisDeduper struct {
	client redis.Cmdable
	prefix string
}

// NewRedisDeduper creates a deduper storing keys under prefix
func NewRedisDeduper(client redis.Cmdable, prefix string) *RedisDeduper {
	if prefix == "" {
		prefix = "billing:reminder:"
	}
	return &RedisDeduper{client: client, prefix: prefix}
}

// MarkSent implements ports.ReminderDeduper
func (d *RedisDeduper) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	first, err := d.client.SetNX(ctx, d.prefix+key, timeutil.Now().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reminder dedup %s: %w", key, err)
	}
	return first, nil
}

// MemoryDeduper is a process-local ReminderDeduper
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDeduper creates an in-memory deduper
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: map[string]time.Time{}, now: timeutil.Now}
}

// MarkSent implements ports.ReminderDeduper
func (d *MemoryDeduper) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if expires, ok := d.seen[key]; ok && now.Before(expires) {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)
	return true, nil
}

var (
	_ ports.ReminderDeduper = (*RedisDeduper)(nil)
	_ ports.ReminderDeduper = (*MemoryDeduper)(nil)
)
