package orbitsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/portfolio_backend/models"
)

// Reconciliation links a mirror row to a first-class local row. Matching is
// always (business_id, external_id) first, then a natural key to absorb
// records that were entered by hand before the integration existed, and only
// then a create. Natural-key adoption stamps the external id so later passes
// hit the fast path.

func reconcileClient(ctx context.Context, db *gorm.DB, businessId string, rec *models.OrbitClientRecord) (*models.Client, error) {
	active := !strings.EqualFold(rec.Status, "archived")
	fields := map[string]interface{}{
		"email":  rec.Email,
		"phone":  rec.Phone,
		"active": active,
	}
	if rec.Name != "" {
		fields["name"] = rec.Name
	}

	var local models.Client
	err := db.WithContext(ctx).
		Where("business_id = ? AND external_id = ?", businessId, rec.ExternalId).
		Take(&local).Error
	if err == nil {
		return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if rec.Name != "" {
		err = db.WithContext(ctx).
			Where("business_id = ? AND external_id IS NULL AND name = ?", businessId, rec.Name).
			Take(&local).Error
		if err == nil {
			fields["external_id"] = rec.ExternalId
			return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	name := rec.Name
	if name == "" {
		name = "Orbit Client " + rec.ExternalId
	}
	local = models.Client{
		BusinessId: businessId,
		ExternalId: &rec.ExternalId,
		Name:       name,
		Email:      rec.Email,
		Phone:      rec.Phone,
		Active:     active,
	}
	return &local, db.WithContext(ctx).Create(&local).Error
}

func reconcileEmployee(ctx context.Context, db *gorm.DB, businessId string, rec *models.OrbitEmployeeRecord) (*models.Employee, error) {
	active := !strings.EqualFold(rec.Status, "inactive") && !strings.EqualFold(rec.Status, "terminated")
	fields := map[string]interface{}{
		"first_name":  rec.FirstName,
		"last_name":   rec.LastName,
		"department":  rec.Department,
		"designation": rec.Designation,
		"joined_at":   rec.JoinedAt,
		"active":      active,
	}
	if rec.Email != "" {
		fields["email"] = rec.Email
	}

	var local models.Employee
	err := db.WithContext(ctx).
		Where("business_id = ? AND external_id = ?", businessId, rec.ExternalId).
		Take(&local).Error
	if err == nil {
		return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if rec.Email != "" {
		err = db.WithContext(ctx).
			Where("business_id = ? AND external_id IS NULL AND email = ?", businessId, rec.Email).
			Take(&local).Error
		if err == nil {
			fields["external_id"] = rec.ExternalId
			return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	local = models.Employee{
		BusinessId:  businessId,
		ExternalId:  &rec.ExternalId,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		Email:       rec.Email,
		Department:  rec.Department,
		Designation: rec.Designation,
		JoinedAt:    rec.JoinedAt,
		Active:      active,
	}
	return &local, db.WithContext(ctx).Create(&local).Error
}

func reconcileProject(ctx context.Context, db *gorm.DB, businessId string, rec *models.OrbitProjectRecord) (*models.Project, error) {
	clientId, err := lookupClientId(ctx, db, businessId, rec.ClientExternalId)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		"status":          projectStatus(rec.Status),
		"start_date":      rec.StartDate,
		"end_date":        rec.EndDate,
		"estimated_hours": rec.EstimatedHours,
	}
	if rec.Title != "" {
		fields["title"] = rec.Title
	}
	if clientId != nil {
		fields["client_id"] = *clientId
	}

	var local models.Project
	err = db.WithContext(ctx).
		Where("business_id = ? AND external_id = ?", businessId, rec.ExternalId).
		Take(&local).Error
	if err == nil {
		return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if rec.Title != "" {
		err = db.WithContext(ctx).
			Where("business_id = ? AND external_id IS NULL AND title = ?", businessId, rec.Title).
			Take(&local).Error
		if err == nil {
			fields["external_id"] = rec.ExternalId
			return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	title := rec.Title
	if title == "" {
		title = "Orbit Project " + rec.ExternalId
	}
	local = models.Project{
		BusinessId:     businessId,
		ExternalId:     &rec.ExternalId,
		ClientId:       clientId,
		Title:          title,
		Status:         projectStatus(rec.Status),
		StartDate:      rec.StartDate,
		EndDate:        rec.EndDate,
		EstimatedHours: rec.EstimatedHours,
	}
	return &local, db.WithContext(ctx).Create(&local).Error
}

func reconcileTask(ctx context.Context, db *gorm.DB, businessId string, rec *models.OrbitTaskRecord) (*models.ProjectTask, error) {
	projectId, err := lookupProjectId(ctx, db, businessId, rec.ProjectExternalId)
	if err != nil {
		return nil, err
	}
	if projectId == nil {
		return nil, fmt.Errorf("project %s not mapped yet", rec.ProjectExternalId)
	}

	fields := map[string]interface{}{
		"project_id":      *projectId,
		"status":          rec.Status,
		"estimated_hours": rec.EstimatedHours,
	}
	if rec.Title != "" {
		fields["title"] = rec.Title
	}

	var local models.ProjectTask
	err = db.WithContext(ctx).
		Where("business_id = ? AND external_id = ?", businessId, rec.ExternalId).
		Take(&local).Error
	if err == nil {
		return &local, db.WithContext(ctx).Model(&local).Updates(fields).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	title := rec.Title
	if title == "" {
		title = "Orbit Task " + rec.ExternalId
	}
	local = models.ProjectTask{
		BusinessId:     businessId,
		ExternalId:     &rec.ExternalId,
		ProjectId:      *projectId,
		Title:          title,
		Status:         rec.Status,
		EstimatedHours: rec.EstimatedHours,
	}
	return &local, db.WithContext(ctx).Create(&local).Error
}

// reconcileTimeEntry upserts the local effort entry for a mirrored time entry.
// Entries whose employee or project cannot be resolved yet are written with
// Unmapped=true and a reason; a later pass re-resolves them once the missing
// side syncs. Nothing is ever attributed to a guessed record.
func reconcileTimeEntry(ctx context.Context, db *gorm.DB, businessId string, rec *models.OrbitTimeEntryRecord) (bool, string, error) {
	var employeeId, projectId, taskId *int

	if rec.EmployeeExternalId != "" {
		var emp models.Employee
		err := db.WithContext(ctx).
			Where("business_id = ? AND external_id = ?", businessId, rec.EmployeeExternalId).
			Take(&emp).Error
		if err == nil {
			employeeId = &emp.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "", err
		}
	}

	var err error
	projectId, err = lookupProjectId(ctx, db, businessId, rec.ProjectExternalId)
	if err != nil {
		return false, "", err
	}

	if rec.TaskExternalId != "" {
		var task models.ProjectTask
		err := db.WithContext(ctx).
			Where("business_id = ? AND external_id = ?", businessId, rec.TaskExternalId).
			Take(&task).Error
		if err == nil {
			taskId = &task.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "", err
		}
	}

	unmapped, reason := timeEntryResolution(employeeId != nil, rec.ProjectExternalId != "", projectId != nil)

	entry := models.EffortEntry{
		BusinessId:     businessId,
		ExternalId:     &rec.ExternalId,
		EmployeeId:     employeeId,
		ProjectId:      projectId,
		TaskId:         taskId,
		EntryDate:      rec.EntryDate,
		Hours:          rec.Hours,
		Notes:          rec.Notes,
		ApprovalStatus: rec.ApprovalStatus,
		Source:         models.EffortSourceOrbit,
		Unmapped:       unmapped,
		UnmappedReason: reason,
	}

	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "business_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"employee_id", "project_id", "task_id", "entry_date", "hours",
			"notes", "approval_status", "unmapped", "unmapped_reason", "updated_at",
		}),
	}).Create(&entry)
	return unmapped, reason, res.Error
}

// timeEntryResolution decides whether a synced entry can carry real foreign
// keys yet. An entry with no project reference at all is valid unassigned
// time, not an orphan.
func timeEntryResolution(employeeOK, hasProjectRef, projectOK bool) (bool, string) {
	switch {
	case !employeeOK && hasProjectRef && !projectOK:
		return true, "employee and project not mapped"
	case !employeeOK:
		return true, "employee not mapped"
	case hasProjectRef && !projectOK:
		return true, "project not mapped"
	default:
		return false, ""
	}
}

func lookupClientId(ctx context.Context, db *gorm.DB, businessId, externalId string) (*int, error) {
	if externalId == "" {
		return nil, nil
	}
	var c models.Client
	err := db.WithContext(ctx).
		Where("business_id = ? AND external_id = ?", businessId, externalId).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c.ID, nil
}

func lookupProjectId(ctx context.Context, db *gorm.DB, businessId, externalId string) (*int, error) {
	if externalId == "" {
		return nil, nil
	}
	var p models.Project
	err := db.WithContext(ctx).
		Where("business_id = ? AND external_id = ?", businessId, externalId).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p.ID, nil
}

func projectStatus(orbitStatus string) string {
	switch strings.ToLower(strings.TrimSpace(orbitStatus)) {
	case "onhold", "on_hold", "paused":
		return models.ProjectStatusOnHold
	case "completed", "closed", "finished":
		return models.ProjectStatusCompleted
	default:
		return models.ProjectStatusActive
	}
}
