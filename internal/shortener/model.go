package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to its target URL.
type Link struct {
	ID            uuid.UUID
	Code          string
	TargetURL     string
	VisitCount    int64
	CreatedAt     time.Time
	LastVisitedAt *time.Time
}

// Summary aggregates the whole links table.
type Summary struct {
	Links  int64
	Visits int64
}
