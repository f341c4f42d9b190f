package orbitsync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestDepartmentFromGroups(t *testing.T) {
	cases := []struct {
		name     string
		groups   []orbitGroup
		expected string
	}{
		{"dept code", []orbitGroup{{GroupType: "DEPT", GroupName: "Engineering"}}, "Engineering"},
		{"long code", []orbitGroup{{GroupType: "Department", GroupName: "Finance"}}, "Finance"},
		{"legacy code", []orbitGroup{{GroupType: "g01", GroupName: "Design"}}, "Design"},
		{"first match wins", []orbitGroup{
			{GroupType: "TEAM", GroupName: "Platform"},
			{GroupType: "DEPT", GroupName: "Engineering"},
			{GroupType: "DEPT", GroupName: "Legacy"},
		}, "Engineering"},
		{"unknown types only", []orbitGroup{{GroupType: "TEAM", GroupName: "Platform"}}, ""},
		{"no groups", nil, ""},
		{"whitespace trimmed", []orbitGroup{{GroupType: " DEPT ", GroupName: "  Sales  "}}, "Sales"},
	}

	for _, tc := range cases {
		if got := departmentFromGroups(tc.groups); got != tc.expected {
			t.Fatalf("%s: got %q, expected %q", tc.name, got, tc.expected)
		}
	}
}

func TestParseDate(t *testing.T) {
	nilCases := []string{"", "0000-00-00", "0001-01-01T00:00:00Z", "not-a-date", "   "}
	for _, in := range nilCases {
		if got := parseDate(in); got != nil {
			t.Fatalf("parseDate(%q) expected nil, got %v", in, got)
		}
	}

	valid := map[string]string{
		"2025-04-01":           "2025-04-01",
		"2025-04-01T10:30:00":  "2025-04-01",
		"2025-04-01T10:30:00Z": "2025-04-01",
	}
	for in, expected := range valid {
		got := parseDate(in)
		if got == nil {
			t.Fatalf("parseDate(%q) expected value, got nil", in)
		}
		if got.Format("2006-01-02") != expected {
			t.Fatalf("parseDate(%q) = %v, expected date %s", in, got, expected)
		}
	}
}

func TestDecimalFromNumber(t *testing.T) {
	cases := []struct {
		in       json.Number
		expected string
	}{
		{"12.5", "12.5"},
		{"0", "0"},
		{"", "0"},
		{"garbage", "0"},
	}
	for _, tc := range cases {
		if got := decimalFromNumber(tc.in); got.String() != tc.expected {
			t.Fatalf("decimalFromNumber(%q) = %s, expected %s", tc.in, got, tc.expected)
		}
	}
}

func TestWriteOutcome(t *testing.T) {
	if writeOutcome(1) != OutcomeInserted {
		t.Fatal("1 affected row should be an insert")
	}
	if writeOutcome(2) != OutcomeUpdated {
		t.Fatal("2 affected rows should be an update")
	}
}

// A malformed nested object must not fail the whole record decode; the typed
// field just stays zero and the raw payload keeps the original.
func TestOrbitEmployeeDecode_ToleratesPartialPayloads(t *testing.T) {
	raw := []byte(`{"id":"e9","firstName":"Mya","groups":[{"groupType":"DEPT","groupName":"HR"}],"dateOfJoining":"0000-00-00"}`)

	var src orbitEmployee
	if err := json.Unmarshal(raw, &src); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if src.ID != "e9" || src.FirstName != "Mya" {
		t.Fatalf("unexpected decode: %+v", src)
	}
	if departmentFromGroups(src.Groups) != "HR" {
		t.Fatalf("department not extracted from %+v", src.Groups)
	}
	if parseDate(src.DateOfJoining) != nil {
		t.Fatal("zero joining date should map to nil")
	}
}

// Replaying the same record must go through the conflict clause so the mirror
// row is refreshed in place instead of erroring on the unique index.
func TestUpsertClientRecord_ReplayRefreshesInPlace(t *testing.T) {
	gdb, mock := newMockDB(t)
	raw := json.RawMessage(`{"id":"c-1","companyName":"Acme","status":"active"}`)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orbit_client_records` .+ ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec, outcome, err := upsertClientRecord(context.Background(), gdb, "biz-1", raw, time.Now())
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if outcome != OutcomeInserted {
		t.Fatalf("first upsert outcome = %v, expected insert", outcome)
	}
	if rec.ExternalId != "c-1" || rec.Name != "Acme" {
		t.Fatalf("unexpected mirror row: %+v", rec)
	}

	// MySQL reports two affected rows when the conflict branch fires.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `orbit_client_records` .+ ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	_, outcome, err = upsertClientRecord(context.Background(), gdb, "biz-1", raw, time.Now())
	if err != nil {
		t.Fatalf("replayed upsert: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Fatalf("replayed upsert outcome = %v, expected update", outcome)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
