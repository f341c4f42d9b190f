package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EffortSourceManual = "manual"
	EffortSourceOrbit  = "orbit"
)

// EffortEntry is one unit of worked time. Synced entries must reference local
// foreign keys once reconciled; entries whose employee or project cannot be
// resolved yet are retained with Unmapped=true instead of being dropped.
type EffortEntry struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BusinessId     string          `gorm:"uniqueIndex:idx_effort_external,priority:1;index;not null" json:"business_id"`
	ExternalId     *string         `gorm:"uniqueIndex:idx_effort_external,priority:2;size:128" json:"external_id"`
	EmployeeId     *int            `gorm:"index" json:"employee_id"`
	ProjectId      *int            `gorm:"index" json:"project_id"`
	TaskId         *int            `gorm:"index" json:"task_id"`
	EntryDate      *time.Time      `gorm:"index" json:"entry_date"`
	Hours          decimal.Decimal `gorm:"type:decimal(6,2)" json:"hours"`
	Notes          string          `gorm:"type:text" json:"notes"`
	ApprovalStatus string          `gorm:"size:20" json:"approval_status"`
	Source         string          `gorm:"size:20" json:"source"`
	Unmapped       bool            `gorm:"index;default:false" json:"unmapped"`
	UnmappedReason string          `gorm:"size:255" json:"unmapped_reason"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
