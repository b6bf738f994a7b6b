package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pairVault/internal/model"
	"pairVault/internal/storage/postgres"
)

// StateStore persists how many ops of a scenario have been applied and journaled.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, applied uint64) error
}

// SnapshotStore persists the pool snapshots taken at the end of a run.
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error
}

// FileStateStore stores run progress in a local JSON file.
type FileStateStore struct {
	Path string
}

type stateRecord struct {
	OpsApplied uint64 `json:"ops_applied"`
	UpdatedAt  string `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read state: %w", err)
	}

	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false, fmt.Errorf("parse state: %w", err)
	}
	return rec.OpsApplied, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, applied uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	rec := stateRecord{
		OpsApplied: applied,
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	return writeJSONAtomic(s.Path, rec)
}

// DBStateStore stores run progress in the sim_runs table.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, applied uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.Name, applied)
}

// FileSnapshotStore writes snapshots as a JSON array, replacing the file.
type FileSnapshotStore struct {
	Path string
}

func (s *FileSnapshotStore) SaveSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if s == nil || s.Path == "" {
		return nil
	}
	return writeJSONAtomic(s.Path, snapshots)
}

// DBSnapshotStore upserts snapshots into the pool_snapshots table under a run name.
type DBSnapshotStore struct {
	Store *postgres.Store
	Run   string
}

func (s *DBSnapshotStore) SaveSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.UpsertPoolSnapshots(ctx, s.Run, snapshots)
}

func writeJSONAtomic(path string, value any) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// SnapshotStores saves to every store in order and stops at the first failure.
type SnapshotStores []SnapshotStore

func (s SnapshotStores) SaveSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	for _, store := range s {
		if err := store.SaveSnapshots(ctx, snapshots); err != nil {
			return err
		}
	}
	return nil
}
