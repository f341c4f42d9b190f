package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

// ListBookingsHandler handles GET /api/bookings with optional employee_id,
// project_id and active_on (date) filters.
func ListBookingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		p := pageParamsFrom(c)

		q := config.GetDB().WithContext(ctx).Model(&models.ResourceBooking{}).Where("business_id = ?", businessId)
		if employeeId := strings.TrimSpace(c.Query("employee_id")); employeeId != "" {
			q = q.Where("employee_id = ?", employeeId)
		}
		if projectId := strings.TrimSpace(c.Query("project_id")); projectId != "" {
			q = q.Where("project_id = ?", projectId)
		}
		if activeOn := strings.TrimSpace(c.Query("active_on")); activeOn != "" {
			if t, err := time.Parse("2006-01-02", activeOn); err == nil {
				q = q.Where("start_date <= ? AND end_date >= ?", t, t)
			}
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var bookings []models.ResourceBooking
		if err := q.Order("start_date desc, id desc").Offset(p.Offset()).Limit(p.PageSize).Find(&bookings).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondList(c, bookings, total, p)
	}
}

// CreateBookingHandler handles POST /api/bookings. DailyHours is derived from
// the total spread over working days; it is never taken from the request.
func CreateBookingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		var input models.NewResourceBooking
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		if input.EndDate.Before(input.StartDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "endDate is before startDate"})
			return
		}
		total, err := decimal.NewFromString(strings.TrimSpace(input.TotalHours))
		if err != nil || total.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid totalHours"})
			return
		}

		booking := models.ResourceBooking{
			BusinessId: businessId,
			EmployeeId: input.EmployeeId,
			ProjectId:  input.ProjectId,
			StartDate:  input.StartDate,
			EndDate:    input.EndDate,
			TotalHours: total,
			Notes:      input.Notes,
		}
		booking.DailyHours = booking.DeriveDailyHours()

		if err := config.GetDB().WithContext(ctx).Create(&booking).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, booking)
	}
}

// DeleteBookingHandler handles DELETE /api/bookings/:id.
func DeleteBookingHandler() gin.HandlerFunc {
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

		res := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Delete(&models.ResourceBooking{})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
