package orbitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
)

// Cap the error list stored per run; everything is still in sync_errors.
const maxRunErrors = 50

// Pipeline runs one entity's fetch, mirror upsert and reconcile pass for one
// tenant, bracketed by tracker Start/Complete. Like the tracker it resolves
// the DB handle per call, since it is constructed before the database
// connects.
type Pipeline struct {
	db      func() *gorm.DB
	client  *Client
	tracker *Tracker
	logger  *logrus.Logger

	pageDelay  time.Duration
	batchDelay time.Duration
	windowDays int
	sleep      func(time.Duration)
	now        func() time.Time
}

func NewPipeline(client *Client, tracker *Tracker, logger *logrus.Logger) *Pipeline {
	return &Pipeline{
		db:         config.GetDB,
		client:     client,
		tracker:    tracker,
		logger:     logger,
		pageDelay:  durationFromEnvSeconds("ORBIT_PAGE_DELAY_SECONDS", 2*time.Second),
		batchDelay: durationFromEnvSeconds("ORBIT_BATCH_DELAY_SECONDS", 10*time.Second),
		windowDays: intFromEnv("ORBIT_MAX_WINDOW_DAYS", 60),
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// runStats accumulates per-record outcomes over one run.
type runStats struct {
	synced   int
	failed   int
	unmapped int
	errors   []string
	fatal    error
}

func (s *runStats) fail(msg string) {
	s.failed++
	if len(s.errors) < maxRunErrors {
		s.errors = append(s.errors, msg)
	}
}

// statusForRun derives the final run status from the accumulated counts: a
// fatal error with nothing synced is failed; any failures, unmapped records or
// a fatal error after progress is partial; otherwise completed.
func statusForRun(s *runStats) string {
	switch {
	case s.fatal != nil && s.synced == 0:
		return models.SyncRunStatusFailed
	case s.fatal != nil || s.failed > 0 || s.unmapped > 0:
		return models.SyncRunStatusPartial
	default:
		return models.SyncRunStatusCompleted
	}
}

// SyncEntity executes a full run for one entity. ErrSyncAlreadyRunning is
// returned untouched so callers can map it to a conflict.
func (p *Pipeline) SyncEntity(ctx context.Context, businessId, entity, triggeredBy string) (*SyncResponse, error) {
	run, err := p.tracker.Start(ctx, businessId, entity, triggeredBy)
	if err != nil {
		return nil, err
	}

	stats := &runStats{}
	switch entity {
	case models.SyncEntityClients:
		p.syncClients(ctx, businessId, run, stats)
	case models.SyncEntityProjects:
		p.syncProjects(ctx, businessId, run, stats)
	case models.SyncEntityEmployees:
		p.syncEmployees(ctx, businessId, run, stats)
	case models.SyncEntityTasks:
		p.syncTasks(ctx, businessId, run, stats)
	case models.SyncEntityTimeEntries:
		p.syncTimeEntries(ctx, businessId, run, stats)
	default:
		stats.fatal = fmt.Errorf("unknown sync entity %q", entity)
	}

	if stats.fatal != nil && len(stats.errors) < maxRunErrors {
		stats.errors = append(stats.errors, stats.fatal.Error())
	}
	status := statusForRun(stats)
	if err := p.tracker.Complete(ctx, run, status, stats.synced, stats.failed, stats.unmapped, stats.errors); err != nil {
		config.LogError(p.logger, "orbitsync", "SyncEntity", "complete run", run.ID, err)
	}

	p.logger.WithFields(logrus.Fields{
		"module":      "orbitsync",
		"business_id": businessId,
		"entity":      entity,
		"status":      status,
		"synced":      stats.synced,
		"failed":      stats.failed,
		"unmapped":    stats.unmapped,
	}).Info("sync run finished")

	return &SyncResponse{
		Success:  status == models.SyncRunStatusCompleted,
		Entity:   entity,
		Synced:   stats.synced,
		Failed:   stats.failed,
		Unmapped: stats.unmapped,
		Errors:   stats.errors,
		Message:  "sync " + status,
	}, nil
}

// SyncAll fans the independent core entities out concurrently and joins before
// reporting. Tasks and time entries depend on projects and employees being
// mirrored first, so they run after the join.
func (p *Pipeline) SyncAll(ctx context.Context, businessId, triggeredBy string) []*SyncResponse {
	core := []string{models.SyncEntityClients, models.SyncEntityProjects, models.SyncEntityEmployees}
	out := make([]*SyncResponse, len(core))

	var wg sync.WaitGroup
	for i, entity := range core {
		wg.Add(1)
		go func(i int, entity string) {
			defer wg.Done()
			out[i] = p.syncOne(ctx, businessId, entity, triggeredBy)
		}(i, entity)
	}
	wg.Wait()

	for _, entity := range []string{models.SyncEntityTasks, models.SyncEntityTimeEntries} {
		out = append(out, p.syncOne(ctx, businessId, entity, triggeredBy))
	}
	return out
}

func (p *Pipeline) syncOne(ctx context.Context, businessId, entity, triggeredBy string) *SyncResponse {
	resp, err := p.SyncEntity(ctx, businessId, entity, triggeredBy)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, ErrSyncAlreadyRunning) {
			msg = "skipped: already running"
		}
		return &SyncResponse{Entity: entity, Message: msg}
	}
	return resp
}

// walkPages visits every page of a paged collection. A failed page is recorded
// and the walk moves to the next page; an authentication failure aborts the
// whole walk since every later call would fail the same way. A failure before
// any page succeeded also aborts: the collection size is still unknown at that
// point, so continuing would silently end the walk after one page.
func (p *Pipeline) walkPages(ctx context.Context, path string, params url.Values, stats *runStats, handle func(raw json.RawMessage)) {
	page := 1
	totalPages := 1
	sizeKnown := false
	for page <= totalPages {
		env, err := p.client.ListPage(ctx, path, params, page)
		if err != nil {
			if errors.Is(err, ErrAuthenticationFailed) {
				stats.fatal = err
				return
			}
			if !sizeKnown {
				stats.fatal = fmt.Errorf("%s page %d failed before the page count was known: %w", path, page, err)
				return
			}
			stats.fail(fmt.Sprintf("%s page %d: %v", path, page, err))
			page++
			continue
		}
		if !env.Succeeded {
			if !sizeKnown {
				stats.fatal = fmt.Errorf("%s page %d: api reported failure before the page count was known", path, page)
				return
			}
			stats.fail(fmt.Sprintf("%s page %d: api reported failure", path, page))
			page++
			continue
		}
		if env.TotalPages > 0 {
			totalPages = env.TotalPages
		}
		sizeKnown = true

		for _, raw := range env.Data {
			handle(raw)
		}

		page++
		if page <= totalPages {
			p.sleep(p.pageDelay)
		}
	}
}

func (p *Pipeline) recordError(ctx context.Context, run *models.SyncRun, entityType, externalId, code string, cause error, payload []byte) {
	rec := models.SyncError{
		SyncRunId:   run.ID,
		BusinessId:  run.BusinessId,
		EntityType:  entityType,
		ExternalId:  externalId,
		ErrorCode:   code,
		Message:     cause.Error(),
		PayloadJSON: payload,
		Retryable:   true,
	}
	if err := p.db().WithContext(ctx).Create(&rec).Error; err != nil {
		config.LogError(p.logger, "orbitsync", "recordError", code, externalId, err)
	}
}

func (p *Pipeline) syncClients(ctx context.Context, businessId string, run *models.SyncRun, stats *runStats) {
	p.walkPages(ctx, "/api/v1/clients", nil, stats, func(raw json.RawMessage) {
		rec, _, err := upsertClientRecord(ctx, p.db(), businessId, raw, p.now())
		if err != nil {
			stats.fail("client: " + err.Error())
			p.recordError(ctx, run, models.SyncEntityClients, "", "upsert_failed", err, raw)
			return
		}
		if _, err := reconcileClient(ctx, p.db(), businessId, rec); err != nil {
			stats.fail("client " + rec.ExternalId + ": " + err.Error())
			p.recordError(ctx, run, models.SyncEntityClients, rec.ExternalId, "reconcile_failed", err, raw)
			return
		}
		stats.synced++
	})
}

func (p *Pipeline) syncProjects(ctx context.Context, businessId string, run *models.SyncRun, stats *runStats) {
	p.walkPages(ctx, "/api/v1/projects", nil, stats, func(raw json.RawMessage) {
		rec, _, err := upsertProjectRecord(ctx, p.db(), businessId, raw, p.now())
		if err != nil {
			stats.fail("project: " + err.Error())
			p.recordError(ctx, run, models.SyncEntityProjects, "", "upsert_failed", err, raw)
			return
		}
		if _, err := reconcileProject(ctx, p.db(), businessId, rec); err != nil {
			stats.fail("project " + rec.ExternalId + ": " + err.Error())
			p.recordError(ctx, run, models.SyncEntityProjects, rec.ExternalId, "reconcile_failed", err, raw)
			return
		}
		stats.synced++
	})
}

func (p *Pipeline) syncEmployees(ctx context.Context, businessId string, run *models.SyncRun, stats *runStats) {
	p.walkPages(ctx, "/api/v1/employees", nil, stats, func(raw json.RawMessage) {
		rec, _, err := upsertEmployeeRecord(ctx, p.db(), businessId, raw, p.now())
		if err != nil {
			stats.fail("employee: " + err.Error())
			p.recordError(ctx, run, models.SyncEntityEmployees, "", "upsert_failed", err, raw)
			return
		}
		if _, err := reconcileEmployee(ctx, p.db(), businessId, rec); err != nil {
			stats.fail("employee " + rec.ExternalId + ": " + err.Error())
			p.recordError(ctx, run, models.SyncEntityEmployees, rec.ExternalId, "reconcile_failed", err, raw)
			return
		}
		stats.synced++
	})
}

// syncTasks walks the mirrored projects and pulls each project's task list
// from the nested sub-resource endpoint.
func (p *Pipeline) syncTasks(ctx context.Context, businessId string, run *models.SyncRun, stats *runStats) {
	var projects []models.OrbitProjectRecord
	if err := p.db().WithContext(ctx).Where("business_id = ?", businessId).Find(&projects).Error; err != nil {
		stats.fatal = err
		return
	}

	for i, proj := range projects {
		if i > 0 {
			p.sleep(p.pageDelay)
		}
		items, err := p.client.ListNested(ctx, "/api/v1/projects/"+proj.ExternalId+"/tasks", nil)
		if err != nil {
			if errors.Is(err, ErrAuthenticationFailed) {
				stats.fatal = err
				return
			}
			stats.fail("tasks of project " + proj.ExternalId + ": " + err.Error())
			continue
		}

		for _, raw := range items {
			rec, _, err := upsertTaskRecord(ctx, p.db(), businessId, proj.ExternalId, raw, p.now())
			if err != nil {
				stats.fail("task: " + err.Error())
				p.recordError(ctx, run, models.SyncEntityTasks, "", "upsert_failed", err, raw)
				continue
			}
			if _, err := reconcileTask(ctx, p.db(), businessId, rec); err != nil {
				stats.fail("task " + rec.ExternalId + ": " + err.Error())
				p.recordError(ctx, run, models.SyncEntityTasks, rec.ExternalId, "reconcile_failed", err, raw)
				continue
			}
			stats.synced++
		}
	}
}

// syncTimeEntries walks the reporting endpoint window by window, since the API
// caps the date span per request. Between windows the batch delay applies.
func (p *Pipeline) syncTimeEntries(ctx context.Context, businessId string, run *models.SyncRun, stats *runStats) {
	p.reResolveUnmapped(ctx, businessId, run, stats)

	start := p.syncStartDate(ctx, businessId)
	windows := SplitRange(start, p.now(), p.windowDays)

	for i, window := range windows {
		if i > 0 {
			p.sleep(p.batchDelay)
		}

		params := url.Values{}
		params.Set("startDate", window.Start.Format("2006-01-02"))
		params.Set("endDate", window.End.Format("2006-01-02"))

		p.walkPages(ctx, "/api/v1/timeentries", params, stats, func(raw json.RawMessage) {
			rec, _, err := upsertTimeEntryRecord(ctx, p.db(), businessId, raw, p.now())
			if err != nil {
				stats.fail("time entry: " + err.Error())
				p.recordError(ctx, run, models.SyncEntityTimeEntries, "", "upsert_failed", err, raw)
				return
			}
			unmapped, reason, err := reconcileTimeEntry(ctx, p.db(), businessId, rec)
			if err != nil {
				stats.fail("time entry " + rec.ExternalId + ": " + err.Error())
				p.recordError(ctx, run, models.SyncEntityTimeEntries, rec.ExternalId, "reconcile_failed", err, raw)
				return
			}
			if unmapped {
				stats.unmapped++
				p.logger.WithFields(logrus.Fields{
					"module":      "orbitsync",
					"business_id": businessId,
					"external_id": rec.ExternalId,
					"reason":      reason,
				}).Debug("time entry retained unmapped")
				return
			}
			stats.synced++
		})

		if stats.fatal != nil {
			return
		}
	}
}

// reResolveUnmapped retries reconciliation for retained orphan entries from
// their mirror rows. Entries whose entry date predates the fetch window heal
// here once the missing employee or project syncs, without another fetch.
// Entries that stay unmapped are not re-counted; they remain visible through
// the unmapped listing.
func (p *Pipeline) reResolveUnmapped(ctx context.Context, businessId string, run *models.SyncRun, stats *runStats) {
	db := p.db()
	var recs []models.OrbitTimeEntryRecord
	err := db.WithContext(ctx).
		Select("orbit_time_entry_records.*").
		Joins("JOIN effort_entries ON effort_entries.business_id = orbit_time_entry_records.business_id AND effort_entries.external_id = orbit_time_entry_records.external_id").
		Where("orbit_time_entry_records.business_id = ? AND effort_entries.unmapped = ?", businessId, true).
		Find(&recs).Error
	if err != nil {
		stats.fail("re-resolve unmapped: " + err.Error())
		return
	}

	for i := range recs {
		rec := &recs[i]
		unmapped, _, err := reconcileTimeEntry(ctx, db, businessId, rec)
		if err != nil {
			stats.fail("re-resolve " + rec.ExternalId + ": " + err.Error())
			p.recordError(ctx, run, models.SyncEntityTimeEntries, rec.ExternalId, "reconcile_failed", err, rec.RawPayload)
			continue
		}
		if !unmapped {
			stats.synced++
		}
	}
}

// syncStartDate picks where the time-entry backfill begins: an explicit env
// override, else a trailing overlap behind the last completed run so late
// edits are re-fetched, else 90 days back for a first sync.
func (p *Pipeline) syncStartDate(ctx context.Context, businessId string) time.Time {
	if v := strings.TrimSpace(os.Getenv("ORBIT_SYNC_START_DATE")); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}

	last, err := p.tracker.LastSuccess(ctx, businessId, models.SyncEntityTimeEntries)
	if err == nil && last != nil && last.CompletedAt != nil {
		return last.CompletedAt.AddDate(0, 0, -7)
	}
	return p.now().AddDate(0, 0, -90)
}
