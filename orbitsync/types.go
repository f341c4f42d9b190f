package orbitsync

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// ListEnvelope is the Orbit response shape for paged collection endpoints.
// Nested sub-resources (tasks of a project) come back as bare arrays instead.
type ListEnvelope struct {
	Succeeded    bool              `json:"succeeded"`
	Data         []json.RawMessage `json:"data"`
	TotalRecords int               `json:"totalRecords"`
	TotalPages   int               `json:"totalPages"`
	PageNumber   int               `json:"pageNumber"`
}

// Orbit payload shapes. Only the fields projected into mirror columns are
// typed; the full record is kept verbatim in raw_payload.

type orbitClient struct {
	ID     string `json:"id"`
	Name   string `json:"companyName"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

type orbitGroup struct {
	GroupType string `json:"groupType"`
	GroupName string `json:"groupName"`
}

type orbitEmployee struct {
	ID            string       `json:"id"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	Email         string       `json:"email"`
	Designation   string       `json:"designation"`
	DateOfJoining string       `json:"dateOfJoining"`
	Status        string       `json:"status"`
	Groups        []orbitGroup `json:"groups"`
}

type orbitProject struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	ClientId       string      `json:"clientId"`
	Status         string      `json:"status"`
	StartDate      string      `json:"startDate"`
	DeadlineDate   string      `json:"deadlineDate"`
	EstimatedHours json.Number `json:"estimatedHours"`
}

type orbitTask struct {
	ID             string      `json:"id"`
	ProjectId      string      `json:"projectId"`
	Title          string      `json:"title"`
	Status         string      `json:"status"`
	EstimatedHours json.Number `json:"estimatedHours"`
}

type orbitTimeEntry struct {
	ID             string      `json:"id"`
	EmployeeId     string      `json:"employeeId"`
	ProjectId      string      `json:"projectId"`
	TaskId         string      `json:"taskId"`
	EntryDate      string      `json:"entryDate"`
	Hours          json.Number `json:"hours"`
	Notes          string      `json:"notes"`
	ApprovalStatus string      `json:"approvalStatus"`
}

// Administrative surface responses.

type SyncResponse struct {
	Success  bool     `json:"success"`
	Entity   string   `json:"entity"`
	Synced   int      `json:"synced"`
	Failed   int      `json:"failed"`
	Unmapped int      `json:"unmapped"`
	Errors   []string `json:"errors"`
	Message  string   `json:"message"`
}

type StatusEntry struct {
	Entity        string  `json:"entity"`
	Running       bool    `json:"running"`
	LastStatus    string  `json:"lastStatus"`
	LastRunAt     *string `json:"lastRunAt"`
	LastSuccessAt *string `json:"lastSuccessAt"`
}

type RunResponse struct {
	ID            uint     `json:"id"`
	Entity        string   `json:"entity"`
	Status        string   `json:"status"`
	TriggeredBy   string   `json:"triggeredBy"`
	StartedAt     *string  `json:"startedAt"`
	CompletedAt   *string  `json:"completedAt"`
	DurationMs    int64    `json:"durationMs"`
	RecordsSynced int      `json:"recordsSynced"`
	RecordsFailed int      `json:"recordsFailed"`
	UnmappedCount int      `json:"unmappedCount"`
	Errors        []string `json:"errors,omitempty"`
}

type HistoryResponse struct {
	Items []RunResponse `json:"items"`
}

type StatsEntry struct {
	Entity        string  `json:"entity"`
	TotalRuns     int64   `json:"totalRuns"`
	TotalSynced   int64   `json:"totalSynced"`
	TotalFailed   int64   `json:"totalFailed"`
	LastSuccessAt *string `json:"lastSuccessAt"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationFromEnvSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
