package models

import "time"

type Employee struct {
	ID          int        `gorm:"primary_key" json:"id"`
	BusinessId  string     `gorm:"uniqueIndex:idx_employee_external,priority:1;index;not null" json:"business_id"`
	ExternalId  *string    `gorm:"uniqueIndex:idx_employee_external,priority:2;size:128" json:"external_id"`
	FirstName   string     `gorm:"size:128" json:"first_name"`
	LastName    string     `gorm:"size:128" json:"last_name"`
	Email       string     `gorm:"index;size:255" json:"email"`
	Department  string     `gorm:"size:128" json:"department"`
	Designation string     `gorm:"size:128" json:"designation"`
	JoinedAt    *time.Time `json:"joined_at"`
	Active      bool       `gorm:"default:true" json:"active"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEmployee struct {
	FirstName   string     `json:"firstName" binding:"required"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email" binding:"omitempty,email"`
	Department  string     `json:"department"`
	Designation string     `json:"designation"`
	JoinedAt    *time.Time `json:"joinedAt"`
}
