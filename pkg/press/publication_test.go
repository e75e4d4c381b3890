package press

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPublished(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name        string
		publish     bool
		publishedAt *time.Time
		want        bool
	}{
		{"flag set, past timestamp", true, &past, true},
		{"flag set, exact timestamp", true, &now, true},
		{"flag set, future timestamp", true, &future, false},
		{"flag set, no timestamp", true, nil, false},
		{"flag unset, past timestamp", false, &past, false},
		{"flag unset, no timestamp", false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPublished(tt.publish, tt.publishedAt, now))
		})
	}
}

func TestPublishedBoundaryIsInclusive(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &Postable{Publish: true, PublishedAt: &at}

	assert.False(t, p.Published(at.Add(-time.Nanosecond)))
	assert.True(t, p.Published(at))
	assert.True(t, p.Published(at.Add(time.Nanosecond)))
}

func TestPublishedCondition(t *testing.T) {
	cond := PublishedCondition("$1")

	assert.Contains(t, cond, "publish = TRUE")
	assert.Contains(t, cond, "published_at IS NOT NULL")
	assert.Contains(t, cond, "published_at <= $1")
	// The predicate is embedded in WHERE clauses verbatim.
	assert.False(t, strings.Contains(cond, ";"))
}
