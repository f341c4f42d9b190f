package orbitsync

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

// Scheduler triggers entity syncs on cron expressions. Each tick walks every
// active tenant; an in-flight run for a (tenant, entity) is skipped with a log
// line, and one tenant's failure never stops the walk.
type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	logger   *logrus.Logger
}

// StartScheduler wires the cron entries and starts ticking. Returns nil when
// SYNC_SCHEDULER_ENABLED is off, which is the default.
func StartScheduler(pipeline *Pipeline, logger *logrus.Logger) *Scheduler {
	if !envBoolDefault("SYNC_SCHEDULER_ENABLED", false) {
		logger.WithField("module", "orbitsync").Info("sync scheduler disabled")
		return nil
	}

	s := &Scheduler{
		cron:     cron.New(),
		pipeline: pipeline,
		logger:   logger,
	}

	schedules := map[string]string{
		models.SyncEntityClients:     envOrDefault("SYNC_CLIENTS_SCHEDULE", "0 2 * * *"),
		models.SyncEntityProjects:    envOrDefault("SYNC_PROJECTS_SCHEDULE", "15 2 * * *"),
		models.SyncEntityEmployees:   envOrDefault("SYNC_EMPLOYEES_SCHEDULE", "30 2 * * *"),
		models.SyncEntityTasks:       envOrDefault("SYNC_TASKS_SCHEDULE", "45 2 * * *"),
		models.SyncEntityTimeEntries: envOrDefault("SYNC_TIME_ENTRIES_SCHEDULE", "0 3 * * *"),
	}
	for entity, expr := range schedules {
		entity := entity
		if _, err := s.cron.AddFunc(expr, func() { s.tick(entity) }); err != nil {
			config.LogError(logger, "orbitsync", "StartScheduler", "add schedule "+entity, expr, err)
		}
	}

	if expr := strings.TrimSpace(os.Getenv("SYNC_ALL_SCHEDULE")); expr != "" {
		if _, err := s.cron.AddFunc(expr, s.tickAll); err != nil {
			config.LogError(logger, "orbitsync", "StartScheduler", "add schedule all", expr, err)
		}
	}

	s.cron.Start()
	logger.WithField("module", "orbitsync").Info("sync scheduler started")
	return s
}

func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Stop()
}

func (s *Scheduler) tick(entity string) {
	ctx := context.Background()

	// Best-effort guard so multiple replicas don't all fire the same tick.
	// The running_key unique index stays the authoritative mutex either way.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "orbitsync:tick:"+entity, 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	businessIds, err := models.ActiveBusinessIds(ctx)
	if err != nil {
		config.LogError(s.logger, "orbitsync", "tick", "list active businesses", entity, err)
		return
	}

	for _, businessId := range businessIds {
		tenantCtx := utils.SetBusinessIdInContext(ctx, businessId)

		running, err := s.pipeline.tracker.IsRunning(tenantCtx, businessId, entity)
		if err != nil {
			config.LogError(s.logger, "orbitsync", "tick", "check running", businessId, err)
			continue
		}
		if running {
			s.logger.WithFields(logrus.Fields{
				"module":      "orbitsync",
				"business_id": businessId,
				"entity":      entity,
			}).Info("sync still running; skipping scheduled run")
			continue
		}

		if _, err := s.pipeline.SyncEntity(tenantCtx, businessId, entity, models.SyncTriggeredScheduled); err != nil {
			if errors.Is(err, ErrSyncAlreadyRunning) {
				continue
			}
			config.LogError(s.logger, "orbitsync", "tick", "sync "+entity, businessId, err)
		}
	}
}

func (s *Scheduler) tickAll() {
	for _, entity := range []string{
		models.SyncEntityClients,
		models.SyncEntityProjects,
		models.SyncEntityEmployees,
		models.SyncEntityTasks,
		models.SyncEntityTimeEntries,
	} {
		s.tick(entity)
	}
}
