package inflight

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lease struct {
	token   string
	expires time.Time
}

// MemoryLocker is a process-local Locker. Leases expire after ttl so that a crashed
// toggle cannot wedge a record forever.
type MemoryLocker struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	leases map[string]lease
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &MemoryLocker{
		ttl:    ttl,
		now:    time.Now,
		leases: make(map[string]lease),
	}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return "", ErrInFlight
	}

	token := uuid.NewString()
	l.leases[key] = lease{token: token, expires: now.Add(l.ttl)}
	return token, nil
}

// Unlock releases key only if token still owns it.
func (l *MemoryLocker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.leases[key]; ok && held.token == token {
		delete(l.leases, key)
	}
	return nil
}

func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[key]
	return ok && l.now().Before(held.expires)
}
