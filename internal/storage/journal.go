package storage

import (
	"context"
	"fmt"
	"time"

	"homehub/internal/events"

	"gorm.io/gorm"
)

const (
	JournalCapacity     = 300
	DefaultJournalLimit = 200
)

// Journal is a bounded event log; only the newest JournalCapacity entries are kept.
type Journal struct {
	db       *gorm.DB
	capacity int
}

func (d *Database) Journal() *Journal { return d.journal }

// Append stores evs in order, all stamped at, then trims the oldest entries.
func (j *Journal) Append(ctx context.Context, evs []events.Event, at time.Time) error {
	if len(evs) == 0 {
		return nil
	}
	entries := make([]JournalEntry, 0, len(evs))
	for _, e := range evs {
		entries = append(entries, JournalEntry{
			AtMs:   at.UnixMilli(),
			Kind:   string(e.Kind),
			Module: string(e.Module),
			Title:  e.Title,
			Body:   e.Body,
			Reason: e.Reason,
		})
	}

	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("append journal: %w", err)
		}
		keep := tx.Model(&JournalEntry{}).Select("id").Order("id desc").Limit(j.capacity)
		if err := tx.Where("id NOT IN (?)", keep).Delete(&JournalEntry{}).Error; err != nil {
			return fmt.Errorf("trim journal: %w", err)
		}
		return nil
	})
}

// ClampLimit maps a requested listing size into 1..JournalCapacity.
// Zero or negative means DefaultJournalLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultJournalLimit
	case limit > JournalCapacity:
		return JournalCapacity
	}
	return limit
}

// List returns up to limit entries, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]JournalEntry, error) {
	entries := []JournalEntry{}
	err := j.db.WithContext(ctx).Order("id desc").Limit(ClampLimit(limit)).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	return entries, nil
}

func (j *Journal) Clear(ctx context.Context) error {
	return j.db.WithContext(ctx).Where("1 = 1").Delete(&JournalEntry{}).Error
}
