package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"attendance-kiosk/internal/database"

	log "github.com/sirupsen/logrus"
)

// Pruner deletes journal rows older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (database.PruneResult, error)
}

// Result summarises one cleanup cycle.
type Result struct {
	Rows  int64
	Files int
}

// Service handles the automatic cleanup of old data.
type Service struct {
	journal       Pruner
	retentionDays int
	snapshotDir   string
	checkInterval time.Duration
	stopChan      chan struct{}
	now           func() time.Time
}

// NewService creates a new cleanup service. It returns nil when cleanup is
// disabled or there is nothing to clean. journal may be nil when only
// snapshot files are kept.
func NewService(journal Pruner, retentionDays int, snapshotDir string, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil
	}
	if journal == nil && snapshotDir == "" {
		log.Info("Automatic cleanup disabled: no journal and no snapshot directory.")
		return nil
	}
	if checkInterval <= 0 {
		checkInterval = 24 * time.Hour
	}
	log.Infof("Initializing cleanup service: RetentionDays=%d, SnapshotDir='%s', CheckInterval=%s", retentionDays, snapshotDir, checkInterval)
	return &Service{
		journal:       journal,
		retentionDays: retentionDays,
		snapshotDir:   snapshotDir,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
		now:           time.Now,
	}
}

// StartBackgroundCleanup runs a cycle immediately and then every check interval.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go func() {
		s.RunCleanupCycle(context.Background())

		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("Running scheduled cleanup cycle...")
				s.RunCleanupCycle(context.Background())
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background cleanup routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle deletes journal rows and snapshot files older than the
// retention period.
func (s *Service) RunCleanupCycle(ctx context.Context) Result {
	var res Result
	if s == nil {
		return res
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	log.Infof("Cleanup: Deleting records older than %s", cutoff.Format(time.RFC3339))

	if s.journal != nil {
		pruned, err := s.journal.Prune(ctx, cutoff)
		if err != nil {
			log.Errorf("Cleanup: Failed to prune attendance journal: %v", err)
		} else {
			res.Rows = pruned.Rows
			for _, path := range pruned.Snapshots {
				if s.removeFile(path) {
					res.Files++
				}
			}
		}
	}

	// Snapshots outlive their rows when the journal is disabled.
	res.Files += s.removeStaleSnapshots(cutoff)

	log.Infof("Cleanup cycle finished. Rows deleted: %d, Files deleted: %d", res.Rows, res.Files)
	return res
}

func (s *Service) removeStaleSnapshots(cutoff time.Time) int {
	if s.snapshotDir == "" {
		return 0
	}
	entries, err := os.ReadDir(s.snapshotDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warnf("Cleanup: Failed to read snapshot directory '%s': %v", s.snapshotDir, err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if s.removeFile(filepath.Join(s.snapshotDir, e.Name())) {
			removed++
		}
	}
	return removed
}

func (s *Service) removeFile(path string) bool {
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warnf("Cleanup: Failed to delete snapshot file '%s': %v", path, err)
		}
		return false
	}
	log.Debugf("Cleanup: Deleted snapshot file '%s'", path)
	return true
}
