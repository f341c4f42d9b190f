package utils

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost reads HASH_COST, falling back to the bcrypt default when the
// value is missing or outside the range bcrypt accepts.
func passwordCost() int {
	v := strings.TrimSpace(os.Getenv("HASH_COST"))
	if v == "" {
		return bcrypt.DefaultCost
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < bcrypt.MinCost || n > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return n
}

func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), passwordCost())
}

func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
