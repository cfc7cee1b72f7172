package models

import (
	"time"

	"kuruma/internal/compliance"
)

// Report is what callers of the compliance service receive: the evaluated
// status plus display copy and remaining quotas.
type Report struct {
	Status               compliance.Status
	Message              compliance.Message
	RemainingListings    int
	RemainingAnnualSales int
	EvaluatedAt          time.Time
}
