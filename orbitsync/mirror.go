package orbitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/portfolio_backend/models"
)

// WriteOutcome says whether an upsert inserted a new mirror row or refreshed
// an existing one.
type WriteOutcome int

const (
	OutcomeInserted WriteOutcome = iota
	OutcomeUpdated
)

// departmentGroupTypes maps Orbit "groups" type codes onto mirror fields. The
// group schema is not documented, so the mapping is data a new code can be
// added to without touching projection logic.
var departmentGroupTypes = map[string]bool{
	"DEPT":       true,
	"DEPARTMENT": true,
	"G01":        true,
}

func departmentFromGroups(groups []orbitGroup) string {
	for _, g := range groups {
		if departmentGroupTypes[strings.ToUpper(strings.TrimSpace(g.GroupType))] {
			return strings.TrimSpace(g.GroupName)
		}
	}
	return ""
}

// parseDate normalizes Orbit date strings. Sentinel zero dates and anything
// unparseable map to nil rather than a bogus timestamp.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" || value == "0000-00-00" || strings.HasPrefix(value, "0001-01-01") {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func decimalFromNumber(num json.Number) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(num.String()))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func writeOutcome(rowsAffected int64) WriteOutcome {
	// MySQL reports 2 affected rows for an ON DUPLICATE KEY update.
	if rowsAffected > 1 {
		return OutcomeUpdated
	}
	return OutcomeInserted
}

func mirrorConflict(updateColumns []string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(append(updateColumns, "raw_payload", "synced_at", "updated_at")),
	}
}

func upsertClientRecord(ctx context.Context, db *gorm.DB, businessId string, raw json.RawMessage, now time.Time) (*models.OrbitClientRecord, WriteOutcome, error) {
	var src orbitClient
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, 0, fmt.Errorf("invalid client payload: %w", err)
	}
	extID := strings.TrimSpace(src.ID)
	if extID == "" {
		return nil, 0, errors.New("client payload has no id")
	}

	rec := models.OrbitClientRecord{
		BusinessId: businessId,
		ExternalId: extID,
		Name:       strings.TrimSpace(src.Name),
		Email:      strings.TrimSpace(src.Email),
		Phone:      strings.TrimSpace(src.Phone),
		Status:     strings.TrimSpace(src.Status),
		RawPayload: raw,
		SyncedAt:   now,
	}

	res := db.WithContext(ctx).
		Clauses(mirrorConflict([]string{"name", "email", "phone", "status"})).
		Create(&rec)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	return &rec, writeOutcome(res.RowsAffected), nil
}

func upsertProjectRecord(ctx context.Context, db *gorm.DB, businessId string, raw json.RawMessage, now time.Time) (*models.OrbitProjectRecord, WriteOutcome, error) {
	var src orbitProject
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, 0, fmt.Errorf("invalid project payload: %w", err)
	}
	extID := strings.TrimSpace(src.ID)
	if extID == "" {
		return nil, 0, errors.New("project payload has no id")
	}

	rec := models.OrbitProjectRecord{
		BusinessId:       businessId,
		ExternalId:       extID,
		ClientExternalId: strings.TrimSpace(src.ClientId),
		Title:            strings.TrimSpace(src.Title),
		Status:           strings.TrimSpace(src.Status),
		StartDate:        parseDate(src.StartDate),
		EndDate:          parseDate(src.DeadlineDate),
		EstimatedHours:   decimalFromNumber(src.EstimatedHours),
		RawPayload:       raw,
		SyncedAt:         now,
	}

	res := db.WithContext(ctx).
		Clauses(mirrorConflict([]string{"client_external_id", "title", "status", "start_date", "end_date", "estimated_hours"})).
		Create(&rec)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	return &rec, writeOutcome(res.RowsAffected), nil
}

func upsertEmployeeRecord(ctx context.Context, db *gorm.DB, businessId string, raw json.RawMessage, now time.Time) (*models.OrbitEmployeeRecord, WriteOutcome, error) {
	var src orbitEmployee
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, 0, fmt.Errorf("invalid employee payload: %w", err)
	}
	extID := strings.TrimSpace(src.ID)
	if extID == "" {
		return nil, 0, errors.New("employee payload has no id")
	}

	rec := models.OrbitEmployeeRecord{
		BusinessId:  businessId,
		ExternalId:  extID,
		FirstName:   strings.TrimSpace(src.FirstName),
		LastName:    strings.TrimSpace(src.LastName),
		Email:       strings.ToLower(strings.TrimSpace(src.Email)),
		Department:  departmentFromGroups(src.Groups),
		Designation: strings.TrimSpace(src.Designation),
		JoinedAt:    parseDate(src.DateOfJoining),
		Status:      strings.TrimSpace(src.Status),
		RawPayload:  raw,
		SyncedAt:    now,
	}

	res := db.WithContext(ctx).
		Clauses(mirrorConflict([]string{"first_name", "last_name", "email", "department", "designation", "joined_at", "status"})).
		Create(&rec)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	return &rec, writeOutcome(res.RowsAffected), nil
}

func upsertTaskRecord(ctx context.Context, db *gorm.DB, businessId, projectExternalId string, raw json.RawMessage, now time.Time) (*models.OrbitTaskRecord, WriteOutcome, error) {
	var src orbitTask
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, 0, fmt.Errorf("invalid task payload: %w", err)
	}
	extID := strings.TrimSpace(src.ID)
	if extID == "" {
		return nil, 0, errors.New("task payload has no id")
	}
	// Nested task payloads omit projectId; the parent resource supplies it.
	if strings.TrimSpace(src.ProjectId) != "" {
		projectExternalId = strings.TrimSpace(src.ProjectId)
	}

	rec := models.OrbitTaskRecord{
		BusinessId:        businessId,
		ExternalId:        extID,
		ProjectExternalId: projectExternalId,
		Title:             strings.TrimSpace(src.Title),
		Status:            strings.TrimSpace(src.Status),
		EstimatedHours:    decimalFromNumber(src.EstimatedHours),
		RawPayload:        raw,
		SyncedAt:          now,
	}

	res := db.WithContext(ctx).
		Clauses(mirrorConflict([]string{"project_external_id", "title", "status", "estimated_hours"})).
		Create(&rec)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	return &rec, writeOutcome(res.RowsAffected), nil
}

func upsertTimeEntryRecord(ctx context.Context, db *gorm.DB, businessId string, raw json.RawMessage, now time.Time) (*models.OrbitTimeEntryRecord, WriteOutcome, error) {
	var src orbitTimeEntry
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, 0, fmt.Errorf("invalid time entry payload: %w", err)
	}
	extID := strings.TrimSpace(src.ID)
	if extID == "" {
		return nil, 0, errors.New("time entry payload has no id")
	}

	rec := models.OrbitTimeEntryRecord{
		BusinessId:         businessId,
		ExternalId:         extID,
		EmployeeExternalId: strings.TrimSpace(src.EmployeeId),
		ProjectExternalId:  strings.TrimSpace(src.ProjectId),
		TaskExternalId:     strings.TrimSpace(src.TaskId),
		EntryDate:          parseDate(src.EntryDate),
		Hours:              decimalFromNumber(src.Hours),
		Notes:              src.Notes,
		ApprovalStatus:     strings.TrimSpace(src.ApprovalStatus),
		RawPayload:         raw,
		SyncedAt:           now,
	}

	res := db.WithContext(ctx).
		Clauses(mirrorConflict([]string{"employee_external_id", "project_external_id", "task_external_id", "entry_date", "hours", "notes", "approval_status"})).
		Create(&rec)
	if res.Error != nil {
		return nil, 0, res.Error
	}
	return &rec, writeOutcome(res.RowsAffected), nil
}
