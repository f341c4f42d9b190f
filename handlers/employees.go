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

// ListEmployeesHandler handles GET /api/employees with optional q (name or
// email substring) and department filters.
func ListEmployeesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		p := pageParamsFrom(c)

		q := config.GetDB().WithContext(ctx).Model(&models.Employee{}).Where("business_id = ?", businessId)
		if search := strings.TrimSpace(c.Query("q")); search != "" {
			like := "%" + search + "%"
			q = q.Where("first_name LIKE ? OR last_name LIKE ? OR email LIKE ?", like, like, like)
		}
		if dept := strings.TrimSpace(c.Query("department")); dept != "" {
			q = q.Where("department = ?", dept)
		}
		if c.Query("include_inactive") != "true" {
			q = q.Where("active = ?", true)
		}

		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var employees []models.Employee
		if err := q.Order("last_name, first_name").Offset(p.Offset()).Limit(p.PageSize).Find(&employees).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		respondList(c, employees, total, p)
	}
}

func GetEmployeeHandler() gin.HandlerFunc {
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

		if cached, err := utils.RetrieveRedis[models.Employee](id); err == nil && cached != nil && cached.BusinessId == businessId {
			c.JSON(http.StatusOK, cached)
			return
		}

		var employee models.Employee
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&employee).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = utils.StoreRedis[models.Employee](&employee, employee.ID)
		c.JSON(http.StatusOK, employee)
	}
}

func CreateEmployeeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, ok := resolveBusinessId(c)
		if !ok {
			return
		}
		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)

		var input models.NewEmployee
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		employee := models.Employee{
			BusinessId:  businessId,
			FirstName:   input.FirstName,
			LastName:    input.LastName,
			Email:       strings.ToLower(strings.TrimSpace(input.Email)),
			Department:  input.Department,
			Designation: input.Designation,
			JoinedAt:    input.JoinedAt,
			Active:      true,
		}
		if err := config.GetDB().WithContext(ctx).Create(&employee).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, employee)
	}
}

func UpdateEmployeeHandler() gin.HandlerFunc {
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

		var input models.NewEmployee
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}

		var employee models.Employee
		err := config.GetDB().WithContext(ctx).
			Where("business_id = ? AND id = ?", businessId, id).
			Take(&employee).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		updates := map[string]interface{}{
			"first_name":  input.FirstName,
			"last_name":   input.LastName,
			"email":       strings.ToLower(strings.TrimSpace(input.Email)),
			"department":  input.Department,
			"designation": input.Designation,
			"joined_at":   input.JoinedAt,
		}
		if err := config.GetDB().WithContext(ctx).Model(&employee).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		_ = utils.InvalidateRedis[models.Employee](employee.ID)
		c.JSON(http.StatusOK, employee)
	}
}

// DeactivateEmployeeHandler handles DELETE /api/employees/:id. Employees are
// referenced by effort entries, so deletion is a soft deactivate.
func DeactivateEmployeeHandler() gin.HandlerFunc {
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

		res := config.GetDB().WithContext(ctx).Model(&models.Employee{}).
			Where("business_id = ? AND id = ?", businessId, id).
			Update("active", false)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
			return
		}

		_ = utils.InvalidateRedis[models.Employee](id)
		c.Status(http.StatusNoContent)
	}
}
