package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndComparePassword(t *testing.T) {
	t.Setenv("HASH_COST", "4")

	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(string(hashed), "s3cret"); err != nil {
		t.Fatalf("compare with correct password: %v", err)
	}
	if err := ComparePassword(string(hashed), "wrong"); err == nil {
		t.Fatal("compare accepted a wrong password")
	}
	if cost, _ := bcrypt.Cost(hashed); cost != 4 {
		t.Fatalf("cost = %d, expected HASH_COST override 4", cost)
	}
}

func TestPasswordCost(t *testing.T) {
	cases := []struct {
		name     string
		env      string
		expected int
	}{
		{"unset", "", bcrypt.DefaultCost},
		{"not a number", "abc", bcrypt.DefaultCost},
		{"below range", "2", bcrypt.DefaultCost},
		{"above range", "99", bcrypt.DefaultCost},
		{"valid", "12", 12},
	}
	for _, tc := range cases {
		t.Setenv("HASH_COST", tc.env)
		if got := passwordCost(); got != tc.expected {
			t.Fatalf("%s: got %d, expected %d", tc.name, got, tc.expected)
		}
	}
}
