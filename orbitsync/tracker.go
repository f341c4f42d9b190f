package orbitsync

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
)

// Tracker records the lifecycle of sync runs and enforces at-most-one
// concurrent run per (tenant, entity). The mutex is the unique index on
// sync_runs.running_key, so it holds across processes, not just goroutines.
//
// The DB handle is resolved per call: the tracker is constructed before the
// database connects so the server can start listening first.
type Tracker struct {
	db         func() *gorm.DB
	staleAfter time.Duration
	now        func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		db:         config.GetDB,
		staleAfter: time.Duration(intFromEnv("SYNC_STALE_RUN_MINUTES", 30)) * time.Minute,
		now:        time.Now,
	}
}

func runningKey(businessId, entity string) string {
	return businessId + "|" + entity
}

// Start opens a run, failing with ErrSyncAlreadyRunning when another run for
// the same (tenant, entity) is in flight. Runs abandoned by a crashed process
// are reaped first so they cannot block forever.
func (t *Tracker) Start(ctx context.Context, businessId, entity, triggeredBy string) (*models.SyncRun, error) {
	db := t.db()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	t.reapStale(ctx, businessId, entity)

	now := t.now()
	key := runningKey(businessId, entity)
	run := models.SyncRun{
		BusinessId:  businessId,
		EntityType:  entity,
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		RunningKey:  &key,
		StartedAt:   &now,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrSyncAlreadyRunning
		}
		return nil, err
	}
	return &run, nil
}

// Complete closes a run with its final status and counters and releases the
// running key.
func (t *Tracker) Complete(ctx context.Context, run *models.SyncRun, status string, synced, failed, unmapped int, errs []string) error {
	db := t.db()
	if db == nil {
		return gorm.ErrInvalidDB
	}
	now := t.now()
	var durationMs int64
	if run.StartedAt != nil {
		durationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	errsJSON, _ := json.Marshal(errs)

	return db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":         status,
		"running_key":    nil,
		"records_synced": synced,
		"records_failed": failed,
		"unmapped_count": unmapped,
		"errors_json":    errsJSON,
		"completed_at":   now,
		"duration_ms":    durationMs,
	}).Error
}

// IsRunning reports whether a live run exists. Stale rows are reaped first,
// so a run abandoned by a crash never pins the running state on the read path
// either.
func (t *Tracker) IsRunning(ctx context.Context, businessId, entity string) (bool, error) {
	db := t.db()
	if db == nil {
		return false, gorm.ErrInvalidDB
	}
	t.reapStale(ctx, businessId, entity)

	var count int64
	err := db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("business_id = ? AND entity_type = ? AND status = ?", businessId, entity, models.SyncRunStatusRunning).
		Count(&count).Error
	return count > 0, err
}

// LastRun returns the most recent run for an entity, nil when none exists.
func (t *Tracker) LastRun(ctx context.Context, businessId, entity string) (*models.SyncRun, error) {
	db := t.db()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var run models.SyncRun
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_type = ?", businessId, entity).
		Order("id desc").
		Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LastSuccess returns the most recent completed run, nil when none exists.
func (t *Tracker) LastSuccess(ctx context.Context, businessId, entity string) (*models.SyncRun, error) {
	db := t.db()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var run models.SyncRun
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_type = ? AND status = ?", businessId, entity, models.SyncRunStatusCompleted).
		Order("id desc").
		Take(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (t *Tracker) History(ctx context.Context, businessId, entity string, limit int) ([]models.SyncRun, error) {
	db := t.db()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("id desc").
		Limit(limit)
	if entity != "" {
		q = q.Where("entity_type = ?", entity)
	}
	var runs []models.SyncRun
	err := q.Find(&runs).Error
	return runs, err
}

func (t *Tracker) Stats(ctx context.Context, businessId string) ([]StatsEntry, error) {
	db := t.db()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	entities := []string{
		models.SyncEntityClients,
		models.SyncEntityProjects,
		models.SyncEntityEmployees,
		models.SyncEntityTasks,
		models.SyncEntityTimeEntries,
	}

	out := make([]StatsEntry, 0, len(entities))
	for _, entity := range entities {
		var agg struct {
			TotalRuns   int64
			TotalSynced int64
			TotalFailed int64
		}
		err := db.WithContext(ctx).Model(&models.SyncRun{}).
			Select("COUNT(*) AS total_runs, COALESCE(SUM(records_synced), 0) AS total_synced, COALESCE(SUM(records_failed), 0) AS total_failed").
			Where("business_id = ? AND entity_type = ?", businessId, entity).
			Scan(&agg).Error
		if err != nil {
			return nil, err
		}

		last, err := t.LastSuccess(ctx, businessId, entity)
		if err != nil {
			return nil, err
		}
		entry := StatsEntry{
			Entity:      entity,
			TotalRuns:   agg.TotalRuns,
			TotalSynced: agg.TotalSynced,
			TotalFailed: agg.TotalFailed,
		}
		if last != nil {
			entry.LastSuccessAt = formatTime(last.CompletedAt)
		}
		out = append(out, entry)
	}
	return out, nil
}

// reapStale fails runs that have been "running" for longer than the staleness
// cutoff, releasing their running key. Best effort; a reap failure surfaces as
// ErrSyncAlreadyRunning on the following insert.
func (t *Tracker) reapStale(ctx context.Context, businessId, entity string) {
	db := t.db()
	if db == nil {
		return
	}
	cutoff := t.now().Add(-t.staleAfter)
	errsJSON, _ := json.Marshal([]string{"run exceeded " + t.staleAfter.String() + " without completing; marked stale"})

	db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("business_id = ? AND entity_type = ? AND status = ? AND started_at < ?",
			businessId, entity, models.SyncRunStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":       models.SyncRunStatusFailed,
			"running_key":  nil,
			"errors_json":  errsJSON,
			"completed_at": t.now(),
		})
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
