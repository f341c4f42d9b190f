package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mirror tables hold a faithful, periodically refreshed copy of each Orbit
// record, keyed by (business_id, external_id). RawPayload keeps the complete
// source record so future projections don't require a re-fetch.

type OrbitClientRecord struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex:idx_orbit_client,priority:1;not null" json:"business_id"`
	ExternalId string    `gorm:"uniqueIndex:idx_orbit_client,priority:2;size:128;not null" json:"external_id"`
	Name       string    `gorm:"size:255" json:"name"`
	Email      string    `gorm:"size:255" json:"email"`
	Phone      string    `gorm:"size:64" json:"phone"`
	Status     string    `gorm:"size:32" json:"status"`
	RawPayload []byte    `gorm:"type:json" json:"raw_payload"`
	SyncedAt   time.Time `json:"synced_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrbitProjectRecord struct {
	ID               uint            `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"uniqueIndex:idx_orbit_project,priority:1;not null" json:"business_id"`
	ExternalId       string          `gorm:"uniqueIndex:idx_orbit_project,priority:2;size:128;not null" json:"external_id"`
	ClientExternalId string          `gorm:"index;size:128" json:"client_external_id"`
	Title            string          `gorm:"size:255" json:"title"`
	Status           string          `gorm:"size:32" json:"status"`
	StartDate        *time.Time      `json:"start_date"`
	EndDate          *time.Time      `json:"end_date"`
	EstimatedHours   decimal.Decimal `gorm:"type:decimal(10,2)" json:"estimated_hours"`
	RawPayload       []byte          `gorm:"type:json" json:"raw_payload"`
	SyncedAt         time.Time       `json:"synced_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrbitEmployeeRecord struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	BusinessId  string     `gorm:"uniqueIndex:idx_orbit_employee,priority:1;not null" json:"business_id"`
	ExternalId  string     `gorm:"uniqueIndex:idx_orbit_employee,priority:2;size:128;not null" json:"external_id"`
	FirstName   string     `gorm:"size:128" json:"first_name"`
	LastName    string     `gorm:"size:128" json:"last_name"`
	Email       string     `gorm:"index;size:255" json:"email"`
	Department  string     `gorm:"size:128" json:"department"`
	Designation string     `gorm:"size:128" json:"designation"`
	JoinedAt    *time.Time `json:"joined_at"`
	Status      string     `gorm:"size:32" json:"status"`
	RawPayload  []byte     `gorm:"type:json" json:"raw_payload"`
	SyncedAt    time.Time  `json:"synced_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrbitTaskRecord struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"uniqueIndex:idx_orbit_task,priority:1;not null" json:"business_id"`
	ExternalId        string          `gorm:"uniqueIndex:idx_orbit_task,priority:2;size:128;not null" json:"external_id"`
	ProjectExternalId string          `gorm:"index;size:128" json:"project_external_id"`
	Title             string          `gorm:"size:255" json:"title"`
	Status            string          `gorm:"size:32" json:"status"`
	EstimatedHours    decimal.Decimal `gorm:"type:decimal(10,2)" json:"estimated_hours"`
	RawPayload        []byte          `gorm:"type:json" json:"raw_payload"`
	SyncedAt          time.Time       `json:"synced_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrbitTimeEntryRecord struct {
	ID                 uint            `gorm:"primary_key" json:"id"`
	BusinessId         string          `gorm:"uniqueIndex:idx_orbit_time_entry,priority:1;not null" json:"business_id"`
	ExternalId         string          `gorm:"uniqueIndex:idx_orbit_time_entry,priority:2;size:128;not null" json:"external_id"`
	EmployeeExternalId string          `gorm:"index;size:128" json:"employee_external_id"`
	ProjectExternalId  string          `gorm:"index;size:128" json:"project_external_id"`
	TaskExternalId     string          `gorm:"size:128" json:"task_external_id"`
	EntryDate          *time.Time      `gorm:"index" json:"entry_date"`
	Hours              decimal.Decimal `gorm:"type:decimal(6,2)" json:"hours"`
	Notes              string          `gorm:"type:text" json:"notes"`
	ApprovalStatus     string          `gorm:"size:32" json:"approval_status"`
	RawPayload         []byte          `gorm:"type:json" json:"raw_payload"`
	SyncedAt           time.Time       `json:"synced_at"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
