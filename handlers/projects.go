package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

// ListProjectsHandler handles GET /api/projects with optional q, status and
// client_id filters.
func ListProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		p := pageParamsFrom(c)

		q := config.GetDB().WithContext(ctx).Model(&models.Project{}).Where("business_id = ?", businessId)
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			q = q.Where("title LIKE ?", "%"+search+"%")
		}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			q = q.Where("status = ?", status)
		}
		if clientId := strings.TrimSpace(c.Query("client_id")); clientId != "" {
			q = q.Where("client_id = ?", clientId)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var projects []models.Project
		if err := q.Order("title").Offset(p.Offset()).Limit(p.PageSize).Find(&projects).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondList(c, projects, total, p)
	}
}

func GetProjectHandler() gin.HandlerFunc {
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

		var project models.Project
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&project).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// ListProjectTasksHandler handles GET /api/projects/:id/tasks. Tasks of one
// project are returned as a bare array, not a paged envelope.
func ListProjectTasksHandler() gin.HandlerFunc {
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

		var count int64
		if err := config.GetDB().WithContext(ctx).Model(&models.Project{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}

		var tasks []models.ProjectTask
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND project_id = ?", businessId, id).
			Order("id").
			Find(&tasks).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func CreateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		var input models.NewProject
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		estimated, err := parseHours(input.EstimatedHours)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid estimatedHours"})
			return
		}
		status := input.Status
		if status == "" {
			status = models.ProjectStatusActive
		}

		project := models.Project{
			BusinessId:     businessId,
			ClientId:       input.ClientId,
			Title:          strings.TrimSpace(input.Title),
			Status:         status,
			StartDate:      input.StartDate,
			EndDate:        input.EndDate,
			EstimatedHours: estimated,
		}
		if err := config.GetDB().WithContext(ctx).Create(&project).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, project)
	}
}

func UpdateProjectHandler() gin.HandlerFunc {
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

		var input models.NewProject
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		estimated, err := parseHours(input.EstimatedHours)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid estimatedHours"})
			return
		}

		var project models.Project
		dbErr := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&project).Error
		if errors.Is(dbErr, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		if dbErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": dbErr.Error()})
			return
		}

		updates := map[string]interface{}{
			"title":           strings.TrimSpace(input.Title),
			"start_date":      input.StartDate,
			"end_date":        input.EndDate,
			"estimated_hours": estimated,
		}
		if input.Status != "" {
			updates["status"] = input.Status
		}
		if input.ClientId != nil {
			updates["client_id"] = *input.ClientId
		}
		if err := config.GetDB().WithContext(ctx).Model(&project).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

func parseHours(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
