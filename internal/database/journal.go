package database

import (
	"context"
	"fmt"
	"time"

	"attendance-kiosk/internal/core/models"
	"attendance-kiosk/internal/kiosk"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Journal stores recognitions. It implements kiosk.Recorder.
type Journal struct {
	db *gorm.DB
}

// NewJournal wraps an open database.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// ListOptions filters List.
type ListOptions struct {
	Limit     int
	Since     time.Time
	Name      string
	KnownOnly bool
}

// PruneResult reports what Prune removed.
type PruneResult struct {
	Rows      int64
	Snapshots []string
}

// Record inserts one recognition.
func (j *Journal) Record(ctx context.Context, rec kiosk.Recognition) error {
	row := models.Attendance{
		KioskID:      rec.KioskID,
		Name:         rec.Name,
		Known:        rec.Known,
		Token:        rec.Token,
		RecognizedAt: rec.At,
		SnapshotPath: rec.SnapshotPath,
	}
	if len(rec.Payload) > 0 {
		row.Payload = datatypes.JSON(rec.Payload)
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert attendance: %w", err)
	}
	log.WithFields(log.Fields{"id": row.ID, "name": row.Name, "known": row.Known}).Debug("Attendance recorded")
	return nil
}

// List returns journal rows, newest first.
func (j *Journal) List(ctx context.Context, opts ListOptions) ([]models.Attendance, error) {
	q := j.db.WithContext(ctx).Model(&models.Attendance{}).Order("recognized_at DESC, id DESC")
	if !opts.Since.IsZero() {
		q = q.Where("recognized_at >= ?", opts.Since)
	}
	if opts.Name != "" {
		q = q.Where("name = ?", opts.Name)
	}
	if opts.KnownOnly {
		q = q.Where("known = ?", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var rows []models.Attendance
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	return rows, nil
}

// Stats summarises the journal.
func (j *Journal) Stats(ctx context.Context) (models.Statistics, error) {
	var st models.Statistics
	db := j.db.WithContext(ctx).Model(&models.Attendance{})

	if err := db.Count(&st.Total).Error; err != nil {
		return st, fmt.Errorf("failed to count attendance: %w", err)
	}
	if err := j.db.WithContext(ctx).Model(&models.Attendance{}).Where("known = ?", true).Count(&st.Known).Error; err != nil {
		return st, fmt.Errorf("failed to count known attendance: %w", err)
	}
	st.Unknown = st.Total - st.Known
	if err := j.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("known = ?", true).Distinct("name").Count(&st.People).Error; err != nil {
		return st, fmt.Errorf("failed to count people: %w", err)
	}

	var latest models.Attendance
	res := j.db.WithContext(ctx).Order("recognized_at DESC").Limit(1).Find(&latest)
	if res.Error != nil {
		return st, fmt.Errorf("failed to load latest attendance: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		st.LatestAt = latest.RecognizedAt
	}
	return st, nil
}

// Prune permanently deletes rows recognised before cutoff and returns the
// snapshot files they referenced.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	var result PruneResult
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Model(&models.Attendance{}).
			Where("recognized_at < ? AND snapshot_path <> ''", cutoff).
			Pluck("snapshot_path", &result.Snapshots).Error; err != nil {
			return fmt.Errorf("failed to collect snapshot paths: %w", err)
		}
		res := tx.Unscoped().Where("recognized_at < ?", cutoff).Delete(&models.Attendance{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete attendance: %w", res.Error)
		}
		result.Rows = res.RowsAffected
		return nil
	})
	return result, err
}
