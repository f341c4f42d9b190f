package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResourceBooking allocates a person to a project over a date range.
// DailyHours is derived from TotalHours spread over the working days in range.
type ResourceBooking struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id"`
	EmployeeId int             `gorm:"index;not null" json:"employee_id"`
	ProjectId  int             `gorm:"index;not null" json:"project_id"`
	StartDate  time.Time       `gorm:"not null" json:"start_date"`
	EndDate    time.Time       `gorm:"not null" json:"end_date"`
	TotalHours decimal.Decimal `gorm:"type:decimal(8,2)" json:"total_hours"`
	DailyHours decimal.Decimal `gorm:"type:decimal(6,2)" json:"daily_hours"`
	Notes      string          `gorm:"size:255" json:"notes"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewResourceBooking struct {
	EmployeeId int       `json:"employeeId" binding:"required"`
	ProjectId  int       `json:"projectId" binding:"required"`
	StartDate  time.Time `json:"startDate" binding:"required"`
	EndDate    time.Time `json:"endDate" binding:"required"`
	TotalHours string    `json:"totalHours" binding:"required"`
	Notes      string    `json:"notes"`
}

// WorkdaysBetween counts Monday-Friday days in [start, end], inclusive.
func WorkdaysBetween(start, end time.Time) int {
	start = dateOnly(start)
	end = dateOnly(end)
	if end.Before(start) {
		return 0
	}
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

// DeriveDailyHours spreads TotalHours over the working days of the booking.
// A range with no working days gets the full total as a single-day figure.
func (b *ResourceBooking) DeriveDailyHours() decimal.Decimal {
	days := WorkdaysBetween(b.StartDate, b.EndDate)
	if days <= 0 {
		return b.TotalHours
	}
	return b.TotalHours.DivRound(decimal.NewFromInt(int64(days)), 2)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
