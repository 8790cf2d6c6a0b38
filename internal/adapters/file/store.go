package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

var _ ports.CheckpointStore = (*Store)(nil)

// Store implements ports.CheckpointStore using the local filesystem.
// It stores one JSON file per thread in a configured directory.
// Version checks are serialized by a process-local mutex, so a directory
// must not be shared between processes.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".incidentbot/threads".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".incidentbot", "threads")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(threadID string) (string, error) {
	if threadID == "" {
		return "", fmt.Errorf("threadID cannot be empty")
	}
	if strings.ContainsAny(threadID, `/\`) || threadID == "." || threadID == ".." {
		return "", fmt.Errorf("invalid threadID %q", threadID)
	}
	return filepath.Join(s.BasePath, threadID+".json"), nil
}

// Save persists the checkpoint to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	destPath, err := s.path(cp.ThreadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var base int64
	current, err := s.read(destPath)
	switch {
	case errors.Is(err, domain.ErrCheckpointNotFound):
		if cp.Version != 0 {
			return domain.ErrStaleCheckpoint
		}
		if base, err = s.readTombstone(cp.ThreadID); err != nil {
			return err
		}
	case err != nil:
		return err
	case current.Version != cp.Version:
		return domain.ErrStaleCheckpoint
	default:
		base = current.Version
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure checkpoint directory: %w", err)
	}

	next := cp.Clone()
	next.Version = base + 1
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// same directory keeps the rename on one filesystem
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+cp.ThreadID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// cannot rename an open file on Windows
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	if err := os.Remove(s.tombstonePath(cp.ThreadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove tombstone: %w", err)
	}

	cp.Version = next.Version
	return nil
}

// tombstonePath holds the last version of a deleted thread.
func (s *Store) tombstonePath(threadID string) string {
	return filepath.Join(s.BasePath, threadID+".deleted")
}

func (s *Store) readTombstone(threadID string) (int64, error) {
	data, err := os.ReadFile(s.tombstonePath(threadID))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tombstone: %w", err)
	}
	var tomb struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &tomb); err != nil {
		return 0, fmt.Errorf("failed to unmarshal tombstone: %w", err)
	}
	return tomb.Version, nil
}

func (s *Store) read(path string) (*domain.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp domain.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Load retrieves the checkpoint from its JSON file.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	path, err := s.path(threadID)
	if err != nil {
		return nil, err
	}
	return s.read(path)
}

// Delete removes the checkpoint file, leaving a tombstone with its version.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	path, err := s.path(threadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read(path)
	if errors.Is(err, domain.ErrCheckpointNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tomb, err := json.Marshal(map[string]int64{"version": current.Version})
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone: %w", err)
	}
	if err := os.WriteFile(s.tombstonePath(threadID), tomb, 0o644); err != nil {
		return fmt.Errorf("failed to write tombstone: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// List returns all stored thread ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}

	var threads []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		threads = append(threads, strings.TrimSuffix(name, ".json"))
	}
	return threads, nil
}
