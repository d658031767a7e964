package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spikemat/spikemat/pkg/core"
)

const snapshotExt = ".smat"

// ErrSnapshotNotFound is returned when no snapshot exists under an id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store handles file-based persistence of model snapshots, one file per
// snapshot under a single directory.
type Store struct {
	dir   string
	codec *Codec
}

// NewStore creates a snapshot store rooted at dir, creating the
// directory if needed.
func NewStore(dir string, compress bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{dir: dir, codec: NewCodec(compress)}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+snapshotExt)
}

// Save persists the model under the given id, or under a fresh UUID when
// id is empty. Returns the id used. The file is written to a temp name
// and renamed so readers never see a partial snapshot.
func (s *Store) Save(id string, m *core.Model) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	snap := &Snapshot{
		ID:        id,
		CreatedAt: time.Now().Unix(),
		Model:     m,
	}
	data, err := s.codec.Encode(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot %s: %w", id, err)
	}

	tmp := s.path(id) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", id, err)
	}
	if err := os.Rename(tmp, s.path(id)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("commit snapshot %s: %w", id, err)
	}
	return id, nil
}

// LoadSnapshot reads and decodes the snapshot stored under id.
func (s *Store) LoadSnapshot(id string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Load returns the model stored under id.
func (s *Store) Load(id string) (*core.Model, error) {
	snap, err := s.LoadSnapshot(id)
	if err != nil {
		return nil, err
	}
	return snap.Model, nil
}

// Exists reports whether a snapshot is stored under id.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// List returns the ids of all stored snapshots.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, snapshotExt))
	}
	return ids, nil
}

// Delete removes the snapshot stored under id.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}
