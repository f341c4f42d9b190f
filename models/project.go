package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
)

type Project struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"uniqueIndex:idx_project_external,priority:1;index;not null" json:"business_id"`
	ExternalId     *string         `gorm:"uniqueIndex:idx_project_external,priority:2;size:128" json:"external_id"`
	ClientId       *int            `gorm:"index" json:"client_id"`
	Title          string          `gorm:"index;size:255;not null" json:"title"`
	Status         string          `gorm:"size:20" json:"status"`
	StartDate      *time.Time      `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
	EstimatedHours decimal.Decimal `gorm:"type:decimal(10,2)" json:"estimated_hours"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProjectTask struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"uniqueIndex:idx_task_external,priority:1;index;not null" json:"business_id"`
	ExternalId     *string         `gorm:"uniqueIndex:idx_task_external,priority:2;size:128" json:"external_id"`
	ProjectId      int             `gorm:"index;not null" json:"project_id"`
	Title          string          `gorm:"size:255;not null" json:"title"`
	Status         string          `gorm:"size:20" json:"status"`
	EstimatedHours decimal.Decimal `gorm:"type:decimal(10,2)" json:"estimated_hours"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProject struct {
	ClientId       *int       `json:"clientId"`
	Title          string     `json:"title" binding:"required"`
	Status         string     `json:"status" binding:"omitempty,oneof=active on_hold completed"`
	StartDate      *time.Time `json:"startDate"`
	EndDate        *time.Time `json:"endDate"`
	EstimatedHours string     `json:"estimatedHours"`
}
