package orbitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/models"
)

func TestStatusForRun(t *testing.T) {
	cases := []struct {
		name     string
		stats    runStats
		expected string
	}{
		{"clean run", runStats{synced: 120}, models.SyncRunStatusCompleted},
		{"empty clean run", runStats{}, models.SyncRunStatusCompleted},
		{"fatal before progress", runStats{fatal: errors.New("auth")}, models.SyncRunStatusFailed},
		{"fatal after progress", runStats{synced: 40, fatal: errors.New("auth")}, models.SyncRunStatusPartial},
		{"record failures", runStats{synced: 8, failed: 2}, models.SyncRunStatusPartial},
		{"unmapped only", runStats{synced: 8, unmapped: 2}, models.SyncRunStatusPartial},
	}
	for _, tc := range cases {
		if got := statusForRun(&tc.stats); got != tc.expected {
			t.Fatalf("%s: got %s, expected %s", tc.name, got, tc.expected)
		}
	}
}

func TestRunStats_FailCapsStoredErrors(t *testing.T) {
	stats := &runStats{}
	for i := 0; i < maxRunErrors+25; i++ {
		stats.fail("record failed")
	}
	if stats.failed != maxRunErrors+25 {
		t.Fatalf("failed count = %d, expected %d", stats.failed, maxRunErrors+25)
	}
	if len(stats.errors) != maxRunErrors {
		t.Fatalf("stored errors = %d, expected cap %d", len(stats.errors), maxRunErrors)
	}
}

func TestRunningKey(t *testing.T) {
	if got := runningKey("biz-1", models.SyncEntityClients); got != "biz-1|clients" {
		t.Fatalf("runningKey = %q", got)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if !isDuplicateKey(gorm.ErrDuplicatedKey) {
		t.Fatal("gorm.ErrDuplicatedKey not recognized")
	}
	if !isDuplicateKey(errors.New("Error 1062: Duplicate entry 'biz-1|clients' for key 'running_key'")) {
		t.Fatal("mysql duplicate message not recognized")
	}
	if isDuplicateKey(errors.New("connection refused")) {
		t.Fatal("unrelated error treated as duplicate")
	}
}

func newTestPipeline(client *Client) *Pipeline {
	return &Pipeline{
		client:     client,
		pageDelay:  0,
		batchDelay: 0,
		windowDays: 60,
		sleep:      func(time.Duration) {},
		now:        time.Now,
	}
}

func TestWalkPages_VisitsEveryPage(t *testing.T) {
	const totalPages = 3
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNumber"))
		json.NewEncoder(w).Encode(ListEnvelope{
			Succeeded:    true,
			Data:         []json.RawMessage{json.RawMessage(fmt.Sprintf(`{"id":"rec-%d"}`, page))},
			TotalRecords: totalPages,
			TotalPages:   totalPages,
			PageNumber:   page,
		})
	})

	p := newTestPipeline(client)
	stats := &runStats{}
	var handled int
	p.walkPages(context.Background(), "/api/v1/clients", nil, stats, func(json.RawMessage) { handled++ })

	if handled != totalPages {
		t.Fatalf("handled %d records, expected %d", handled, totalPages)
	}
	if stats.failed != 0 || stats.fatal != nil {
		t.Fatalf("unexpected failures: %+v", stats)
	}
}

func TestWalkPages_RecordsFailedPageAndContinues(t *testing.T) {
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNumber"))
		if page == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ListEnvelope{
			Succeeded:  true,
			Data:       []json.RawMessage{json.RawMessage(`{"id":"x"}`)},
			TotalPages: 3,
			PageNumber: page,
		})
	})

	p := newTestPipeline(client)
	stats := &runStats{}
	var handled int
	p.walkPages(context.Background(), "/api/v1/employees", nil, stats, func(json.RawMessage) { handled++ })

	if handled != 2 {
		t.Fatalf("handled %d records, expected pages 1 and 3", handled)
	}
	if stats.failed != 1 {
		t.Fatalf("failed = %d, expected 1", stats.failed)
	}
}

func TestWalkPages_AuthFailureIsFatal(t *testing.T) {
	var calls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		t.Error("data endpoint reached without a token")
	}))
	defer srv.Close()
	client := newClientForTest(srv.URL, srv.URL+"/oauth/token", srv.Client())

	p := newTestPipeline(client)
	stats := &runStats{}
	p.walkPages(context.Background(), "/api/v1/clients", nil, stats, func(json.RawMessage) {
		t.Error("handler must not run on a fatal walk")
	})

	if !errors.Is(stats.fatal, ErrAuthenticationFailed) {
		t.Fatalf("fatal = %v, expected ErrAuthenticationFailed", stats.fatal)
	}
}

// A fresh sync of a large tenant: every page of every window is visited and
// every record handled exactly once.
func TestWalkPages_LargeBackfillAcrossWindows(t *testing.T) {
	const pagesPerWindow = 50
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNumber"))
		json.NewEncoder(w).Encode(ListEnvelope{
			Succeeded:  true,
			Data:       []json.RawMessage{json.RawMessage(`{"id":"e"}`)},
			TotalPages: pagesPerWindow,
			PageNumber: page,
		})
	})

	p := newTestPipeline(client)
	windows := SplitRange(time.Now().AddDate(0, 0, -179), time.Now(), p.windowDays)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows for a 180 day backfill, got %d", len(windows))
	}

	var handled int
	for range windows {
		stats := &runStats{}
		p.walkPages(context.Background(), "/api/v1/timeentries", nil, stats, func(json.RawMessage) { handled++ })
		if stats.fatal != nil || stats.failed != 0 {
			t.Fatalf("unexpected failure: %+v", stats)
		}
	}
	if handled != 3*pagesPerWindow {
		t.Fatalf("handled %d records, expected %d", handled, 3*pagesPerWindow)
	}
}

// A failure before the collection size is known aborts the walk instead of
// quietly ending it after one recorded page.
func TestWalkPages_FirstPageFailureIsFatal(t *testing.T) {
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	p := newTestPipeline(client)
	stats := &runStats{}
	p.walkPages(context.Background(), "/api/v1/clients", nil, stats, func(json.RawMessage) {
		t.Error("handler must not run when no page ever succeeded")
	})

	if stats.fatal == nil {
		t.Fatal("expected a fatal error when the first page fails")
	}
	if stats.failed != 0 {
		t.Fatalf("failed = %d; a fatal abort must not pose as a single lost page", stats.failed)
	}
}

// An orphan retained before the backfill horizon heals from its mirror row
// once the missing employee syncs, without another fetch.
func TestReResolveUnmapped_HealsOrphanFromMirror(t *testing.T) {
	gdb, mock := newMockDB(t)
	p := newTestPipeline(nil)
	p.db = func() *gorm.DB { return gdb }

	mock.ExpectQuery(regexp.QuoteMeta("SELECT orbit_time_entry_records.* FROM `orbit_time_entry_records` JOIN effort_entries")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "external_id", "employee_external_id", "project_external_id"}).
			AddRow(1, "biz-1", "te-9", "emp-1", ""))

	// The employee that was missing when the entry synced exists now.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `employees` WHERE business_id = ? AND external_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `effort_entries` .+ ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(3, 2))
	mock.ExpectCommit()

	stats := &runStats{}
	run := &models.SyncRun{ID: 1, BusinessId: "biz-1"}
	p.reResolveUnmapped(context.Background(), "biz-1", run, stats)

	if stats.failed != 0 {
		t.Fatalf("unexpected failures: %v", stats.errors)
	}
	if stats.synced != 1 {
		t.Fatalf("synced = %d, expected the healed orphan", stats.synced)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
