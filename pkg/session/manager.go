package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

const (
	// DefaultLockTTL bounds how long a crashed replica can hold a thread.
	DefaultLockTTL = 30 * time.Second
	// DefaultAttempts is how many times Do runs a unit of work.
	DefaultAttempts = 3
	// DefaultBackoff is the linear backoff step between attempts.
	DefaultBackoff = 50 * time.Millisecond
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates thread access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	cacheMu sync.RWMutex
	active  map[string]struct{} // threads known to be suspended

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger

	attempts int
	backoff  time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRetry sets the attempts and backoff step used by Do.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(m *Manager) {
		if attempts > 0 {
			m.attempts = attempts
		}
		m.backoff = backoff
	}
}

// NewManager creates a new Session Manager with the given checkpoint store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		active:   make(map[string]struct{}),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(threadID) after unlocking.
func (m *Manager) acquire(threadID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		entry = &lockEntry{}
		m.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, threadID)
	}
}

// WithLock executes a function while holding the lock for the thread.
func (m *Manager) WithLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	entry := m.acquire(threadID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(threadID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, threadID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			// a cancelled request must still release the lock
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Do runs fn under the thread lock. When fn loses a checkpoint race it is
// rerun, up to the configured attempts, with a linear backoff between tries.
func (m *Manager) Do(ctx context.Context, threadID string, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < m.attempts; attempt++ {
		err = m.WithLock(ctx, threadID, fn)
		if !errors.Is(err, domain.ErrStaleCheckpoint) {
			return err
		}

		m.logger.Debug("stale checkpoint, retrying", "thread_id", threadID, "attempt", attempt+1)
		m.Invalidate(threadID)
		if attempt == m.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("thread %q after %d attempts: %w", threadID, m.attempts, err)
}

// IsActive reports whether the thread waits for input, consulting the cache first.
func (m *Manager) IsActive(ctx context.Context, threadID string) (bool, error) {
	m.cacheMu.RLock()
	_, cached := m.active[threadID]
	m.cacheMu.RUnlock()
	if cached {
		return true, nil
	}

	cp, err := m.store.Load(ctx, threadID)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cp.Active() {
		m.MarkActive(threadID)
	}
	return cp.Active(), nil
}

// MarkActive records that the thread is suspended.
func (m *Manager) MarkActive(threadID string) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.active[threadID] = struct{}{}
}

// Invalidate drops the cached state of a thread.
func (m *Manager) Invalidate(threadID string) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	delete(m.active, threadID)
}

// Load retrieves a checkpoint under the thread lock.
func (m *Manager) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	var cp *domain.Checkpoint
	err := m.WithLock(ctx, threadID, func(ctx context.Context) error {
		var err error
		cp, err = m.store.Load(ctx, threadID)
		return err
	})
	return cp, err
}

// Delete removes the checkpoint and forgets the thread.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	return m.WithLock(ctx, threadID, func(ctx context.Context) error {
		return m.DeleteLocked(ctx, threadID)
	})
}

// DeleteLocked is Delete for callers already holding the thread lock.
func (m *Manager) DeleteLocked(ctx context.Context, threadID string) error {
	m.Invalidate(threadID)
	return m.store.Delete(ctx, threadID)
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}
