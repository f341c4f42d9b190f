package orbitsync

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bitbucket.org/mmdatafocus/portfolio_backend/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Discard,
		TranslateError:       true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return gdb, mock
}

func newTestTracker(gdb *gorm.DB) *Tracker {
	return &Tracker{
		db:         func() *gorm.DB { return gdb },
		staleAfter: 30 * time.Minute,
		now:        time.Now,
	}
}

func expectStaleReap(mock sqlmock.Sqlmock, reaped int64) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `sync_runs` SET")).
		WillReturnResult(sqlmock.NewResult(0, reaped))
	mock.ExpectCommit()
}

func expectRunningCount(mock sqlmock.Sqlmock, count int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `sync_runs`")).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(count))
}

// The tracker is constructed before the database connects. Until then its
// methods must return a clean error, and once the handle resolves they must
// use it.
func TestTracker_ConstructedBeforeDatabaseConnects(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker()

	if _, err := tr.Start(ctx, "biz-1", models.SyncEntityClients, models.SyncTriggeredManual); !errors.Is(err, gorm.ErrInvalidDB) {
		t.Fatalf("Start before connect: err = %v, expected gorm.ErrInvalidDB", err)
	}
	if _, err := tr.IsRunning(ctx, "biz-1", models.SyncEntityClients); !errors.Is(err, gorm.ErrInvalidDB) {
		t.Fatalf("IsRunning before connect: err = %v, expected gorm.ErrInvalidDB", err)
	}

	gdb, mock := newMockDB(t)
	tr.db = func() *gorm.DB { return gdb }

	expectStaleReap(mock, 0)
	expectRunningCount(mock, 0)

	running, err := tr.IsRunning(ctx, "biz-1", models.SyncEntityClients)
	if err != nil {
		t.Fatalf("IsRunning after connect: %v", err)
	}
	if running {
		t.Fatal("no runs exist, expected not running")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// IsRunning must reap abandoned runs before counting, so a crashed run stops
// blocking scheduled runs once the staleness cutoff passes.
func TestTracker_IsRunningReapsStaleRuns(t *testing.T) {
	gdb, mock := newMockDB(t)
	tr := newTestTracker(gdb)

	expectStaleReap(mock, 1)
	expectRunningCount(mock, 0)

	running, err := tr.IsRunning(context.Background(), "biz-1", models.SyncEntityTimeEntries)
	if err != nil {
		t.Fatalf("IsRunning: %v", err)
	}
	if running {
		t.Fatal("stale run should have been reaped before the count")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("reap did not run before the count: %v", err)
	}
}

func TestTracker_StartOpensRunningRow(t *testing.T) {
	gdb, mock := newMockDB(t)
	tr := newTestTracker(gdb)

	expectStaleReap(mock, 0)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `sync_runs`")).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	run, err := tr.Start(context.Background(), "biz-1", models.SyncEntityClients, models.SyncTriggeredManual)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.ID != 7 || run.Status != models.SyncRunStatusRunning {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.RunningKey == nil || *run.RunningKey != "biz-1|clients" {
		t.Fatalf("running key = %v", run.RunningKey)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A second concurrent run for the same (tenant, entity) hits the unique
// running_key index and surfaces as ErrSyncAlreadyRunning.
func TestTracker_StartRejectsConcurrentRun(t *testing.T) {
	gdb, mock := newMockDB(t)
	tr := newTestTracker(gdb)

	expectStaleReap(mock, 0)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `sync_runs`")).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'biz-1|clients' for key 'sync_runs.running_key'"))
	mock.ExpectRollback()

	_, err := tr.Start(context.Background(), "biz-1", models.SyncEntityClients, models.SyncTriggeredManual)
	if !errors.Is(err, ErrSyncAlreadyRunning) {
		t.Fatalf("err = %v, expected ErrSyncAlreadyRunning", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
