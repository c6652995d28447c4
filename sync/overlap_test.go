package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/fitsync/models"
)

type stubQuerier struct {
	records []models.SyncRecord
	err     error
	calls   int
	source  models.Source
}

func (s *stubQuerier) FindOverlapping(_ context.Context, source models.Source, _, _ time.Time) ([]models.SyncRecord, error) {
	s.calls++
	s.source = source
	return s.records, s.err
}

func TestHasOverlapIgnoresAuthoritativeCandidate(t *testing.T) {
	q := &stubQuerier{records: []models.SyncRecord{{}}}
	r := NewOverlapResolver(q)

	overlap, err := r.HasOverlap(context.Background(), models.SourceStrava, time.Now(), time.Now().Add(time.Hour))
	assert.NoError(t, err)
	assert.False(t, overlap)
	assert.Equal(t, 0, q.calls)
}

func TestHasOverlapQueriesAuthoritativeSource(t *testing.T) {
	q := &stubQuerier{records: []models.SyncRecord{{Source: models.SourceStrava}}}
	r := NewOverlapResolver(q)

	overlap, err := r.HasOverlap(context.Background(), models.SourceWhoop, time.Now(), time.Now().Add(time.Hour))
	assert.NoError(t, err)
	assert.True(t, overlap)
	assert.Equal(t, models.SourceStrava, q.source)
}

func TestHasOverlapPropagatesErrors(t *testing.T) {
	r := NewOverlapResolver(&stubQuerier{err: errors.New("disk I/O error")})

	_, err := r.HasOverlap(context.Background(), models.SourceWhoop, time.Now(), time.Now().Add(time.Hour))
	assert.Error(t, err)
}
