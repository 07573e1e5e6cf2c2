package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCutoff(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	cutoff := Cutoff(now, DefaultRetention)
	assert.Equal(t, time.Date(2026, 2, 12, 12, 0, 0, 0, time.UTC), cutoff)

	archivedAt := now.Add(-31 * 24 * time.Hour)
	assert.True(t, archivedAt.Before(cutoff), "31 days old is expired")

	archivedAt = now.Add(-29 * 24 * time.Hour)
	assert.False(t, archivedAt.Before(cutoff), "29 days old is kept")

	// Exactly on the boundary is kept; expiry is strict.
	assert.False(t, cutoff.Before(cutoff))
}

func TestOptions(t *testing.T) {
	s := New(nil, nil,
		WithRetention(7*24*time.Hour),
		WithConcurrency(2),
		WithClock(func() time.Time { return time.Unix(0, 0) }),
	)
	assert.Equal(t, 7*24*time.Hour, s.retention)
	assert.Equal(t, 2, s.concurrency)
	assert.Equal(t, time.Unix(0, 0), s.now())
}
