package orbitsync

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

var syncEntities = map[string]bool{
	models.SyncEntityClients:     true,
	models.SyncEntityProjects:    true,
	models.SyncEntityEmployees:   true,
	models.SyncEntityTasks:       true,
	models.SyncEntityTimeEntries: true,
}

func normalizeEntity(raw string) string {
	entity := strings.ToLower(strings.TrimSpace(raw))
	switch entity {
	case "time-entries", "timeentries":
		return models.SyncEntityTimeEntries
	default:
		return entity
	}
}

// resolveBusinessId reads the caller's tenant from the session context. An
// admin may act on another tenant via the business_id query param.
func resolveBusinessId(c *gin.Context) (string, bool) {
	businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
	if !ok || businessId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no business in session"})
		return "", false
	}

	if override := strings.TrimSpace(c.Query("business_id")); override != "" && override != businessId {
		if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "business_id override requires admin role"})
			return "", false
		}
		businessId = override
	}
	return businessId, true
}

// TriggerSyncHandler handles POST /api/sync/:entity. Answers 200 on a clean
// run, 207 on a partial one, 409 when a run is already in flight.
func TriggerSyncHandler(pipeline *Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		entity := normalizeEntity(c.Param("entity"))

		if entity == "all" {
			results := pipeline.SyncAll(ctx, businessId, models.SyncTriggeredManual)
			combined := SyncResponse{Success: true, Entity: "all", Message: "sync completed"}
			for _, r := range results {
				combined.Synced += r.Synced
				combined.Failed += r.Failed
				combined.Unmapped += r.Unmapped
				combined.Errors = append(combined.Errors, r.Errors...)
				if !r.Success {
					combined.Success = false
					combined.Message = "sync partial"
				}
			}
			status := http.StatusOK
			if !combined.Success {
				status = http.StatusMultiStatus
			}
			c.JSON(status, combined)
			return
		}

		if !syncEntities[entity] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync entity: " + entity})
			return
		}

		resp, err := pipeline.SyncEntity(ctx, businessId, entity, models.SyncTriggeredManual)
		if err != nil {
			if errors.Is(err, ErrSyncAlreadyRunning) {
				c.JSON(http.StatusConflict, gin.H{
					"success": false,
					"entity":  entity,
					"message": "a sync is already running for this entity",
				})
				return
			}
			config.LogError(config.GetLogger(), "orbitsync", "TriggerSyncHandler", entity, businessId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if !resp.Success {
			status = http.StatusMultiStatus
		}
		c.JSON(status, resp)
	}
}

// SyncStatusHandler handles GET /api/sync/status: one entry per entity with
// the in-flight flag and the latest outcomes.
func SyncStatusHandler(tracker *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		entities := []string{
			models.SyncEntityClients,
			models.SyncEntityProjects,
			models.SyncEntityEmployees,
			models.SyncEntityTasks,
			models.SyncEntityTimeEntries,
		}

		out := make([]StatusEntry, 0, len(entities))
		for _, entity := range entities {
			entry := StatusEntry{Entity: entity}

			last, err := tracker.LastRun(ctx, businessId, entity)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if last != nil {
				entry.Running = last.Status == models.SyncRunStatusRunning
				entry.LastStatus = last.Status
				entry.LastRunAt = formatTime(last.StartedAt)
			}

			success, err := tracker.LastSuccess(ctx, businessId, entity)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if success != nil {
				entry.LastSuccessAt = formatTime(success.CompletedAt)
			}
			out = append(out, entry)
		}
		c.JSON(http.StatusOK, out)
	}
}

// SyncHistoryHandler handles GET /api/sync/history?entity=&limit=.
func SyncHistoryHandler(tracker *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		entity := normalizeEntity(c.Query("entity"))
		if entity != "" && !syncEntities[entity] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync entity: " + entity})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		runs, err := tracker.History(ctx, businessId, entity, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := HistoryResponse{Items: make([]RunResponse, 0, len(runs))}
		for _, run := range runs {
			item := RunResponse{
				ID:            run.ID,
				Entity:        run.EntityType,
				Status:        run.Status,
				TriggeredBy:   run.TriggeredBy,
				StartedAt:     formatTime(run.StartedAt),
				CompletedAt:   formatTime(run.CompletedAt),
				DurationMs:    run.DurationMs,
				RecordsSynced: run.RecordsSynced,
				RecordsFailed: run.RecordsFailed,
				UnmappedCount: run.UnmappedCount,
			}
			if len(run.ErrorsJSON) > 0 {
				_ = json.Unmarshal(run.ErrorsJSON, &item.Errors)
			}
			resp.Items = append(resp.Items, item)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// SyncStatsHandler handles GET /api/sync/stats.
func SyncStatsHandler(tracker *Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		stats, err := tracker.Stats(ctx, businessId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// UnmappedEntriesHandler handles GET /api/sync/unmapped: synced effort entries
// still waiting for their employee or project to resolve.
func UnmappedEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		var entries []models.EffortEntry
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND unmapped = ?", businessId, true).
			Order("entry_date desc").
			Limit(limit).
			Find(&entries).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
