package orbitsync

import "testing"

func TestTimeEntryResolution(t *testing.T) {
	cases := []struct {
		name          string
		employeeOK    bool
		hasProjectRef bool
		projectOK     bool
		unmapped      bool
		reason        string
	}{
		{"fully resolved", true, true, true, false, ""},
		{"no project reference is valid unassigned time", true, false, false, false, ""},
		{"employee missing", false, true, true, true, "employee not mapped"},
		{"project missing", true, true, false, true, "project not mapped"},
		{"both missing", false, true, false, true, "employee and project not mapped"},
		{"employee missing without project ref", false, false, false, true, "employee not mapped"},
	}

	for _, tc := range cases {
		unmapped, reason := timeEntryResolution(tc.employeeOK, tc.hasProjectRef, tc.projectOK)
		if unmapped != tc.unmapped || reason != tc.reason {
			t.Fatalf("%s: got (%v, %q), expected (%v, %q)", tc.name, unmapped, reason, tc.unmapped, tc.reason)
		}
	}
}

func TestProjectStatus(t *testing.T) {
	cases := map[string]string{
		"Active":    "active",
		"onHold":    "on_hold",
		"paused":    "on_hold",
		"Completed": "completed",
		"closed":    "completed",
		"":          "active",
		"weird":     "active",
	}
	for in, expected := range cases {
		if got := projectStatus(in); got != expected {
			t.Fatalf("projectStatus(%q) = %q, expected %q", in, got, expected)
		}
	}
}
