package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

type newEffortEntry struct {
	EmployeeId int        `json:"employeeId" binding:"required"`
	ProjectId  *int       `json:"projectId"`
	TaskId     *int       `json:"taskId"`
	EntryDate  *time.Time `json:"entryDate" binding:"required"`
	Hours      string     `json:"hours" binding:"required"`
	Notes      string     `json:"notes"`
}

// ListEffortEntriesHandler handles GET /api/effort-entries with optional
// employee_id, project_id and from/to date filters.
func ListEffortEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		p := pageParamsFrom(c)

		q := config.GetDB().WithContext(ctx).Model(&models.EffortEntry{}).Where("business_id = ?", businessId)
		if employeeId := strings.TrimSpace(c.Query("employee_id")); employeeId != "" {
			q = q.Where("employee_id = ?", employeeId)
		}
		if projectId := strings.TrimSpace(c.Query("project_id")); projectId != "" {
			q = q.Where("project_id = ?", projectId)
		}
		if from := strings.TrimSpace(c.Query("from")); from != "" {
			if t, err := time.Parse("2006-01-02", from); err == nil {
				q = q.Where("entry_date >= ?", t)
			}
		}
		if to := strings.TrimSpace(c.Query("to")); to != "" {
			if t, err := time.Parse("2006-01-02", to); err == nil {
				q = q.Where("entry_date <= ?", t)
			}
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var entries []models.EffortEntry
		if err := q.Order("entry_date desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondList(c, entries, total, p)
	}
}

// CreateEffortEntryHandler handles POST /api/effort-entries for manually
// logged time. Synced entries are owned by the integration and cannot be
// created here.
func CreateEffortEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		var input newEffortEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		hours, err := decimal.NewFromString(strings.TrimSpace(input.Hours))
		if err != nil || hours.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
			return
		}

		var count int64
		if err := config.GetDB().WithContext(ctx).Model(&models.Employee{}).
			Where("business_id = ? AND id = ?", businessId, input.EmployeeId).
			Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employee not found"})
			return
		}

		entry := models.EffortEntry{
			BusinessId: businessId,
			EmployeeId: &input.EmployeeId,
			ProjectId:  input.ProjectId,
			TaskId:     input.TaskId,
			EntryDate:  input.EntryDate,
			Hours:      hours,
			Notes:      input.Notes,
			Source:     models.EffortSourceManual,
		}
		if err := config.GetDB().WithContext(ctx).Create(&entry).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

// DeleteEffortEntryHandler handles DELETE /api/effort-entries/:id. Only
// manual entries can be deleted; synced ones would just come back on the next
// run.
func DeleteEffortEntryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		var entry models.EffortEntry
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "effort entry not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if entry.Source != models.EffortSourceManual {
			c.JSON(http.StatusConflict, gin.H{"error": "synced entries cannot be deleted"})
			return
		}

		if err := config.GetDB().WithContext(ctx).Delete(&entry).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
