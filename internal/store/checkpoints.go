package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

// Save writes cp when the stored version still equals cp.Version.
// Version zero inserts, or revives a deleted row keeping its numbering;
// anything else updates in place.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	now := time.Now().UTC()

	var next int64
	if cp.Version == 0 {
		err = s.queryRow(ctx, `INSERT INTO checkpoints (thread_id, state, pending_node, version, updated_at, deleted)
			VALUES (?, ?, ?, 1, ?, FALSE)
			ON CONFLICT (thread_id) DO UPDATE SET state = excluded.state, pending_node = excluded.pending_node,
				version = checkpoints.version + 1, updated_at = excluded.updated_at, deleted = FALSE
			WHERE checkpoints.deleted
			RETURNING version`,
			cp.ThreadID, string(state), cp.PendingNode, now,
		).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrStaleCheckpoint
		}
		if err != nil {
			s.logger.Error("failed to save checkpoint", "thread_id", cp.ThreadID, "error", err)
			return fmt.Errorf("failed to save checkpoint: %w", classify(err))
		}
	} else {
		next = cp.Version + 1
		res, err := s.exec(ctx, `UPDATE checkpoints SET state = ?, pending_node = ?, version = ?, updated_at = ?
			WHERE thread_id = ? AND version = ? AND NOT deleted`,
			string(state), cp.PendingNode, next, now, cp.ThreadID, cp.Version)
		if err != nil {
			s.logger.Error("failed to save checkpoint", "thread_id", cp.ThreadID, "error", err)
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to save checkpoint: %w", err)
		}
		if n == 0 {
			return domain.ErrStaleCheckpoint
		}
	}

	cp.Version = next
	cp.UpdatedAt = now
	return nil
}

// Load retrieves the checkpoint for a thread.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	var (
		state []byte
		cp    = domain.Checkpoint{ThreadID: threadID}
	)
	err := s.queryRow(ctx, `SELECT state, pending_node, version, updated_at FROM checkpoints
		WHERE thread_id = ? AND NOT deleted`, threadID).
		Scan(&state, &cp.PendingNode, &cp.Version, &cp.UpdatedAt)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal(state, &cp.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &cp, nil
}

// Delete marks the checkpoint deleted and drops its state. The row keeps its
// version so a writer from before the delete stays stale. Missing threads are
// ignored.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	if _, err := s.exec(ctx, `UPDATE checkpoints SET deleted = TRUE, state = ?, pending_node = '', updated_at = ?
		WHERE thread_id = ?`, "{}", time.Now().UTC(), threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns every stored thread id, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT thread_id FROM checkpoints WHERE NOT deleted ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", classify(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
