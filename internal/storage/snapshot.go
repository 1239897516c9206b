package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"homehub/internal/events"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const snapshotRowID = 1

// SnapshotStore keeps the single event baseline. Save overwrites it whole.
type SnapshotStore struct {
	db *gorm.DB
	mu sync.Mutex
}

func (d *Database) Snapshots() *SnapshotStore { return d.snapshots }

func loadSnapshot(tx *gorm.DB) (*events.Snapshot, error) {
	var rec SnapshotRecord
	err := tx.Where("id = ?", snapshotRowID).Limit(1).Find(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if rec.ID == 0 {
		return nil, ErrNoSnapshot
	}
	s, err := events.UnmarshalSnapshot([]byte(rec.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return s, nil
}

func saveSnapshot(tx *gorm.DB, s events.Snapshot) error {
	data, err := events.MarshalSnapshot(s)
	if err != nil {
		return err
	}
	rec := SnapshotRecord{ID: snapshotRowID, Data: string(data), UpdatedAt: time.Now()}
	err = tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load returns the baseline. It returns ErrNoSnapshot when nothing was saved
// and an error wrapping ErrCorruptSnapshot when the row cannot be decoded.
func (s *SnapshotStore) Load(ctx context.Context) (*events.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadSnapshot(s.db.WithContext(ctx))
}

func (s *SnapshotStore) Save(ctx context.Context, snap events.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSnapshot(s.db.WithContext(ctx), snap)
}

// Advance replaces the baseline with current in one transaction. fn receives
// the previous baseline, nil when there is none or it is corrupt. If fn fails
// the baseline is left untouched.
//
// Pollers on different schedules call Advance concurrently; each sees the
// baseline written by the one before it.
func (s *SnapshotStore) Advance(ctx context.Context, current events.Snapshot, fn func(prev *events.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prev, err := loadSnapshot(tx)
		if err != nil {
			if !errors.Is(err, ErrNoSnapshot) && !errors.Is(err, ErrCorruptSnapshot) {
				return err
			}
			prev = nil
		}
		if err := fn(prev); err != nil {
			return err
		}
		return saveSnapshot(tx, current)
	})
}
