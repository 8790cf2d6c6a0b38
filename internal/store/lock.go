package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/google/uuid"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// pollInterval is how often a blocked Lock retries.
const pollInterval = 100 * time.Millisecond

var _ ports.DistributedLocker = (*Locker)(nil)

// Locker implements ports.DistributedLocker with lease rows in the locks
// table, so replicas sharing the database take turns on a thread.
type Locker struct {
	store  *Store
	prefix string
}

// NewLocker creates a locker on the store's database.
func NewLocker(s *Store, prefix string) *Locker {
	return &Locker{store: s, prefix: prefix}
}

// Lock inserts the lease row, or takes it over once expired.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	name := l.prefix + key
	token := uuid.NewString()

	unlock := func(ctx context.Context) error {
		_, err := l.store.exec(ctx, `DELETE FROM locks WHERE name = ? AND token = ?`, name, token)
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.tryLock(ctx, name, token, ttl)
		if err != nil && !errors.Is(err, ports.ErrContention) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		if ok {
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Locker) tryLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := l.store.exec(ctx, `INSERT INTO locks (name, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?`,
		name, token, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
