package models

import "time"

type Client struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex:idx_client_external,priority:1;index;not null" json:"business_id"`
	ExternalId *string   `gorm:"uniqueIndex:idx_client_external,priority:2;size:128" json:"external_id"`
	Name       string    `gorm:"index;size:255;not null" json:"name"`
	Email      string    `gorm:"size:255" json:"email"`
	Phone      string    `gorm:"size:64" json:"phone"`
	Active     bool      `gorm:"default:true" json:"active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewClient struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
}
