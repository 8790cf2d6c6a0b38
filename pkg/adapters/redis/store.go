package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces checkpoint keys.
const DefaultPrefix = "incidentbot:thread:"

// noExpiryScore is the index score of checkpoints without TTL (2100-01-01).
const noExpiryScore = 4102444800

var _ ports.CheckpointStore = (*Store)(nil)

// Store implements ports.CheckpointStore using Redis.
// Compare-and-swap is done with WATCH/MULTI on the checkpoint key.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for checkpoints.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for checkpoints.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) key(threadID string) string {
	return s.prefix + threadID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// record is the stored value. A deleted thread keeps a tombstone record with
// its last version so numbering continues when it restarts.
type record struct {
	domain.Checkpoint
	Deleted bool `json:"deleted,omitempty"`
}

// deleteAttempts bounds the WATCH retries of Delete.
const deleteAttempts = 3

// Save persists cp if the stored version still matches.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	key := s.key(cp.ThreadID)
	next := cp.Clone()

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		current, deleted, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		expected := current
		if deleted {
			expected = 0
		}
		if cp.Version != expected {
			return domain.ErrStaleCheckpoint
		}
		next.Version = current + 1

		data, err := json.Marshal(record{Checkpoint: *next})
		if err != nil {
			return fmt.Errorf("failed to marshal checkpoint: %w", err)
		}

		score := float64(time.Now().Add(s.ttl).Unix())
		if s.ttl == 0 {
			score = noExpiryScore
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: cp.ThreadID})
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		cp.Version = next.Version
		return nil
	case errors.Is(err, backend.TxFailedErr):
		return domain.ErrStaleCheckpoint
	case errors.Is(err, domain.ErrStaleCheckpoint):
		return err
	default:
		return fmt.Errorf("failed to save to redis: %w", err)
	}
}

// storedVersion reads only the version of the stored record, 0 if absent.
func storedVersion(ctx context.Context, tx *backend.Tx, key string) (int64, bool, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, backend.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	var head struct {
		Version int64 `json:"version"`
		Deleted bool  `json:"deleted"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return 0, false, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return head.Version, head.Deleted, nil
}

// Load retrieves the checkpoint from Redis.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	val, err := s.client.Get(ctx, s.key(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	if rec.Deleted {
		return nil, domain.ErrCheckpointNotFound
	}
	return &rec.Checkpoint, nil
}

// Delete replaces the checkpoint with a tombstone holding its version.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	key := s.key(threadID)
	var err error
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *backend.Tx) error {
			version, deleted, err := storedVersion(ctx, tx, key)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
				if version > 0 && !deleted {
					tomb, err := json.Marshal(record{
						Checkpoint: domain.Checkpoint{ThreadID: threadID, Version: version},
						Deleted:    true,
					})
					if err != nil {
						return fmt.Errorf("failed to marshal tombstone: %w", err)
					}
					pipe.Set(ctx, key, tomb, s.ttl)
				}
				pipe.ZRem(ctx, s.indexKey(), threadID)
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, backend.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns stored threads, pruning expired entries from the index first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired threads: %w", err)
	}

	threads, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	return threads, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
