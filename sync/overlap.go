// ABOUTME: Cross-source overlap detection for workout deduplication
// ABOUTME: Non-authoritative workouts yield to authoritative ones covering the same time
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/fitsync/models"
)

type overlapQuerier interface {
	FindOverlapping(ctx context.Context, source models.Source, start, end time.Time) ([]models.SyncRecord, error)
}

// OverlapResolver decides whether an authoritative record already covers a window.
type OverlapResolver struct {
	ledger        overlapQuerier
	authoritative models.Source
}

func NewOverlapResolver(ledger overlapQuerier) *OverlapResolver {
	return &OverlapResolver{ledger: ledger, authoritative: models.AuthoritativeSource}
}

// HasOverlap reports whether an authoritative record overlaps [start, end).
// Authoritative candidates are never suppressed.
func (r *OverlapResolver) HasOverlap(ctx context.Context, candidate models.Source, start, end time.Time) (bool, error) {
	if candidate == r.authoritative {
		return false, nil
	}
	records, err := r.ledger.FindOverlapping(ctx, r.authoritative, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return len(records) > 0, nil
}
