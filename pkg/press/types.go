package press

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostableKind distinguishes the two variants of a content record.
type PostableKind string

// Postable kind constants (typed).
const (
	PostableKindPost PostableKind = "post"
	PostableKindPage PostableKind = "page"
)

// Valid reports whether k is a known kind.
func (k PostableKind) Valid() bool {
	return k == PostableKindPost || k == PostableKindPage
}

// Cover image constraints.
const (
	MaxCoverImageBytes = 10 << 20 // 10 MiB
)

// ValidCoverImageTypes lists the MIME types accepted for cover images.
var ValidCoverImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ValidCoverImageType reports whether mimeType is an accepted cover image type.
func ValidCoverImageType(mimeType string) bool {
	for _, t := range ValidCoverImageTypes {
		if strings.EqualFold(mimeType, t) {
			return true
		}
	}
	return false
}

// Postable is a publishable content record: a post or a page.
//
// Slug is never empty once the record is persisted; it is allocated from the
// title when absent and regenerated when the title changes without an
// explicit slug edit.
type Postable struct {
	ID          uuid.UUID    `json:"id"`
	Kind        PostableKind `json:"kind"`
	Title       string       `json:"title"`
	Slug        string       `json:"slug"`
	Excerpt     string       `json:"excerpt,omitempty"`
	Body        string       `json:"body,omitempty"`
	Publish     bool         `json:"publish"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
	CoverImage  *CoverImage  `json:"cover_image,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Published reports whether the record is publicly visible at now.
func (p *Postable) Published(now time.Time) bool {
	return IsPublished(p.Publish, p.PublishedAt, now)
}

// HasCoverImage reports whether a cover image is attached.
func (p *Postable) HasCoverImage() bool {
	return p.CoverImage != nil && p.CoverImage.Key != ""
}

// Path returns the public URL path for the record.
func (p *Postable) Path() string {
	if p.Kind == PostableKindPage {
		return "/pages/" + p.Slug
	}
	return "/posts/" + p.Slug
}

// DisplayExcerpt returns the explicit excerpt when present, otherwise the
// first paragraph of the body, truncated to a readable length.
func (p *Postable) DisplayExcerpt() string {
	if p.Excerpt != "" {
		return p.Excerpt
	}

	plain := strings.TrimSpace(p.Body)
	if plain == "" {
		return ""
	}

	paragraphs := splitParagraphs(plain)
	if len(paragraphs) > 1 {
		first := collapseNewlines(paragraphs[0])
		// A very short lead paragraph (a heading, say) makes a poor excerpt.
		if len(first) < 20 {
			return truncate(collapseNewlines(plain), 200)
		}
		return truncate(first, 300)
	}
	return truncate(collapseNewlines(plain), 200)
}

func splitParagraphs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "\n\n") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func collapseNewlines(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n-3]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// CoverImage references the original uploaded cover asset in object storage.
// The key is derived from the content hash of the upload, so originals are
// write-once.
type CoverImage struct {
	Key      string `json:"key"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type"`
	ByteSize int64  `json:"byte_size"`
}

// DerivedVariant records one generated derivative of a source asset. Its
// existence is the single source of truth for readiness: rows are created
// once the derivative has been stored and are never mutated afterwards.
type DerivedVariant struct {
	SourceKey string    `json:"source_key"`
	Digest    string    `json:"digest"`
	Variant   string    `json:"variant"`
	Key       string    `json:"key"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	ByteSize  int64     `json:"byte_size"`
	CreatedAt time.Time `json:"created_at"`
}

// MenuItem is an entry in the navigation menu. Position is unique among all
// items at all times, as is PageID (one entry per page).
type MenuItem struct {
	ID        uuid.UUID `json:"id"`
	PageID    uuid.UUID `json:"page_id"`
	Position  int       `json:"position"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MenuEntry is the read model served to navigation rendering: the enabled
// menu items whose target pages are currently published, in order.
type MenuEntry struct {
	ID       uuid.UUID `json:"id"`
	PageID   uuid.UUID `json:"page_id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Position int       `json:"position"`
}

// Setting is a single site configuration value.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSettings are the fallback values used when no stored setting exists.
var DefaultSettings = map[string]string{
	"site_name":        "Gutter Press",
	"site_description": "A modern blogging platform",
	"site_tagline":     "Share your stories with the world",
	"posts_per_page":   "10",
	"allow_comments":   "true",
	"contact_email":    "",
	"footer_text":      "© 2025 Gutter Press. All rights reserved.",
	"social_twitter":   "",
	"social_github":    "",
	"social_linkedin":  "",
	"analytics_code":   "",
	"hero_enabled":     "false",
	"hero_title":       "Welcome to Our Blog",
	"hero_subtitle":    "Discover amazing stories and insights",
}

// Cache keys and TTLs shared by the read-through caches and the dispatch lock.
const (
	MenuCacheKey     = "menu:active"
	SettingsCacheKey = "settings:all"

	MenuCacheTTL     = time.Hour
	SettingsCacheTTL = time.Hour

	// DispatchLockTTL bounds the window in which duplicate derivative jobs
	// can be scheduled for the same source asset.
	DispatchLockTTL = 5 * time.Minute
)
