package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

// ListEnvelope is the response shape for every paged list endpoint.
type ListEnvelope struct {
	Succeeded    bool        `json:"succeeded"`
	Data         interface{} `json:"data"`
	TotalRecords int64       `json:"totalRecords"`
	TotalPages   int         `json:"totalPages"`
	PageNumber   int         `json:"pageNumber"`
}

type pageParams struct {
	Page     int
	PageSize int
}

func (p pageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func pageParamsFrom(c *gin.Context) pageParams {
	page, _ := strconv.Atoi(c.DefaultQuery("pageNumber", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	if size < 1 || size > 200 {
		size = 50
	}
	return pageParams{Page: page, PageSize: size}
}

func respondList(c *gin.Context, data interface{}, total int64, p pageParams) {
	totalPages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	c.JSON(http.StatusOK, ListEnvelope{
		Succeeded:    true,
		Data:         data,
		TotalRecords: total,
		TotalPages:   totalPages,
		PageNumber:   p.Page,
	})
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

// bindError answers a 400 with per-field tags for validation failures and the
// raw message for everything else (malformed JSON and the like).
func bindError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
