package model

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// SweepSummary is the structured result returned by every sweep entry point.
type SweepSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Merge folds another summary into this one. Used by the combined sweep driver.
func (s *SweepSummary) Merge(other SweepSummary) {
	s.Processed += other.Processed
	s.Skipped += other.Skipped
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
}
