package id

import (
	"github.com/google/uuid"
)

// Generate generates a new unique ID.
func Generate() string {
	return uuid.New().String()
}

// GeneratePlan generates a plan identifier.
func GeneratePlan() string {
	return "plan-" + uuid.New().String()[:8]
}
