package press

import (
	"fmt"
	"time"
)

// IsPublished computes public visibility from the two independent fields.
// True iff the author flagged the record for publication AND a publish time
// is set AND that time is not in the future. There is no stored denormalized
// "published" boolean; this predicate is the only definition.
func IsPublished(publish bool, publishedAt *time.Time, now time.Time) bool {
	return publish && publishedAt != nil && !publishedAt.After(now)
}

// PublishedCondition returns the SQL predicate equivalent of IsPublished with
// the reference time bound to the given placeholder. Query-side and
// in-process evaluation must agree for the same now, so repositories use this
// fragment rather than restating the rule.
func PublishedCondition(placeholder string) string {
	return fmt.Sprintf("publish = TRUE AND published_at IS NOT NULL AND published_at <= %s", placeholder)
}
