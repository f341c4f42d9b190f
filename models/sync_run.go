package models

import "time"

const (
	SyncEntityClients     = "clients"
	SyncEntityProjects    = "projects"
	SyncEntityEmployees   = "employees"
	SyncEntityTasks       = "tasks"
	SyncEntityTimeEntries = "time_entries"
)

const (
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
	SyncRunStatusPartial   = "partial"
)

const (
	SyncTriggeredManual    = "manual"
	SyncTriggeredScheduled = "scheduled"
)

// SyncRun is one bounded execution of the pipeline for one entity and tenant.
// RunningKey is "<business_id>|<entity_type>" while the run is in flight and
// NULL afterwards; its unique index is what enforces at-most-one concurrent
// run per (tenant, entity) at the storage layer, not just in application code.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	BusinessId    string     `gorm:"index;not null" json:"business_id"`
	EntityType    string     `gorm:"index;size:32;not null" json:"entity_type"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy   string     `gorm:"size:20" json:"triggered_by"`
	RunningKey    *string    `gorm:"uniqueIndex;size:128" json:"-"`
	RecordsSynced int        `json:"records_synced"`
	RecordsFailed int        `json:"records_failed"`
	UnmappedCount int        `json:"unmapped_count"`
	ErrorsJSON    []byte     `gorm:"type:json" json:"errors"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	BusinessId  string    `gorm:"index;not null" json:"business_id"`
	EntityType  string    `gorm:"size:32" json:"entity_type"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
