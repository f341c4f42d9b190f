package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

// ListClientsHandler handles GET /api/clients with optional q filter.
func ListClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		p := pageParamsFrom(c)

		q := config.GetDB().WithContext(ctx).Model(&models.Client{}).Where("business_id = ?", businessId)
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			like := "%" + search + "%"
			q = q.Where("name LIKE ? OR email LIKE ?", like, like)
		}
		if c.Query("include_inactive") != "true" {
			q = q.Where("active = ?", true)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var clients []models.Client
		if err := q.Order("name").Offset(p.Offset()).Limit(p.PageSize).Find(&clients).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondList(c, clients, total, p)
	}
}

func GetClientHandler() gin.HandlerFunc {
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

		if cached, err := utils.RetrieveRedis[models.Client](id); err == nil && cached != nil && cached.BusinessId == businessId {
			c.JSON(http.StatusOK, cached)
			return
		}

		var client models.Client
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&client).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = utils.StoreRedis[models.Client](&client, client.ID)
		c.JSON(http.StatusOK, client)
	}
}

func CreateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		client := models.Client{
			BusinessId: businessId,
			Name:       strings.TrimSpace(input.Name),
			Email:      strings.TrimSpace(input.Email),
			Phone:      strings.TrimSpace(input.Phone),
			Active:     true,
		}
		if err := config.GetDB().WithContext(ctx).Create(&client).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, client)
	}
}

func UpdateClientHandler() gin.HandlerFunc {
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

		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		var client models.Client
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&client).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		updates := map[string]interface{}{
			"name":  strings.TrimSpace(input.Name),
			"email": strings.TrimSpace(input.Email),
			"phone": strings.TrimSpace(input.Phone),
		}
		if err := config.GetDB().WithContext(ctx).Model(&client).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = utils.InvalidateRedis[models.Client](client.ID)
		c.JSON(http.StatusOK, client)
	}
}

// DeactivateClientHandler handles DELETE /api/clients/:id as a soft
// deactivate; projects keep their client reference.
func DeactivateClientHandler() gin.HandlerFunc {
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

		res := config.GetDB().WithContext(ctx).Model(&models.Client{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Update("active", false)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
			return
		}

		_ = utils.InvalidateRedis[models.Client](id)
		c.Status(http.StatusNoContent)
	}
}
