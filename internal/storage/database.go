package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"homehub/internal/status"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db        *gorm.DB
	snapshots *SnapshotStore
	journal   *Journal
}

func NewDatabase(path string) (*Database, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serializes writers; one connection avoids SQLITE_BUSY between pollers.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Reading{}, &SnapshotRecord{}, &JournalEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{
		db:        db,
		snapshots: &SnapshotStore{db: db},
		journal:   &Journal{db: db, capacity: JournalCapacity},
	}, nil
}

// ReadingFromUnified flattens u into a Reading stamped at.
func ReadingFromUnified(u status.Unified, at time.Time) *Reading {
	r := &Reading{Timestamp: at, FromMulticast: u.FromMulticast}
	if inv := u.Inverter; inv != nil {
		r.InverterPresent = true
		r.PvW = inv.PvW
		r.GridW = inv.GridW
		r.LoadW = inv.LoadW
		r.BatterySoc = inv.BatterySoc
		r.BatteryPower = inv.BatteryPower
		r.LineVoltage = inv.LineVoltage
		r.InverterTemp = inv.InverterTemp
		r.GridRelayOn = inv.GridRelayOn
		r.GridPresent = inv.GridPresent
		r.GridMode = inv.Mode
	}
	if lc := u.LoadController; lc != nil {
		r.LoadControllerPresent = true
		r.Boiler1On = lc.Boiler1On
		r.Boiler1Power = lc.BoilerPower
		r.PumpOn = lc.PumpOn
		r.PumpPower = lc.PumpPower
	}
	if g := u.Garage; g != nil {
		r.GaragePresent = true
		r.Boiler2On = g.Boiler2On
		r.Boiler2Power = g.BoilerPower
		r.GateState = g.GateState
	}
	return r
}

func (d *Database) SaveReading(ctx context.Context, u status.Unified, at time.Time) error {
	if u.Empty() {
		return nil
	}
	return d.db.WithContext(ctx).Create(ReadingFromUnified(u, at)).Error
}

func (d *Database) GetLatestReading(ctx context.Context) (*Reading, error) {
	var reading Reading
	result := d.db.WithContext(ctx).Order("timestamp desc").First(&reading)
	if result.Error != nil {
		return nil, result.Error
	}
	return &reading, nil
}

func (d *Database) GetReadingsByRange(ctx context.Context, from, to time.Time) ([]Reading, error) {
	var readings []Reading
	result := d.db.WithContext(ctx).Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp desc").
		Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

func (d *Database) GetReadingsWithLimit(ctx context.Context, limit int) ([]Reading, error) {
	var readings []Reading
	result := d.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

func (d *Database) GetDailyStats(ctx context.Context, date time.Time) (*DailyStats, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)
	day := d.db.WithContext(ctx).Model(&Reading{}).
		Where("timestamp >= ? AND timestamp < ? AND inverter_present = ?", startOfDay, endOfDay, true)

	stats := DailyStats{Date: startOfDay}
	if err := day.Session(&gorm.Session{}).Count(&stats.ReadingsCount).Error; err != nil {
		return nil, err
	}
	if stats.ReadingsCount == 0 {
		return &stats, nil
	}

	var agg struct {
		MaxPv      float64
		AvgVoltage float64
		GridOnline float64
	}
	err := day.Session(&gorm.Session{}).
		Select("MAX(pv_w) AS max_pv, AVG(line_voltage) AS avg_voltage, AVG(CASE WHEN grid_present THEN 1.0 ELSE 0.0 END) AS grid_online").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	stats.MaxPvW = agg.MaxPv
	stats.AvgLineVoltage = agg.AvgVoltage
	stats.GridOnlineRate = agg.GridOnline
	return &stats, nil
}

func (d *Database) CleanOldReadings(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	return d.db.WithContext(ctx).Unscoped().Where("timestamp < ?", cutoff).Delete(&Reading{}).Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
