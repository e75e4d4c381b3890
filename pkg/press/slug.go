package press

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// slugFallback is used when normalization yields nothing, e.g. a title made
// entirely of punctuation.
const slugFallback = "untitled"

// maxSlugAttempts bounds the retry loop against insert-time collisions from
// true concurrent writers. The unique index is the real backstop.
const maxSlugAttempts = 5

// Slugify normalizes a title to a URL-safe base token: lowercased, runs of
// non-alphanumeric characters collapsed to single hyphens, leading and
// trailing hyphens trimmed. A non-empty title never yields an empty slug.
func Slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) && r < unicode.MaxASCII || unicode.IsDigit(r) && r < unicode.MaxASCII {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
	}
	if b.Len() == 0 {
		return slugFallback
	}
	return b.String()
}

// allocateSlug returns the first candidate derived from title that no record
// other than excludeID currently holds: the base token first, then base-1,
// base-2, strictly incrementing. Deterministic for a stable title and a
// stable set of existing slugs.
//
// The check-then-write sequence is not atomic against concurrent writers;
// callers retry on ErrSlugTaken from the subsequent persist.
func (s *service) allocateSlug(ctx context.Context, title string, excludeID uuid.UUID) (string, error) {
	base := Slugify(title)
	candidate := base
	for n := 1; ; n++ {
		exists, err := s.repository.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("slug lookup: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
