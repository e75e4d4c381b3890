package press

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostablePath(t *testing.T) {
	post := &Postable{Kind: PostableKindPost, Slug: "hello"}
	page := &Postable{Kind: PostableKindPage, Slug: "about"}

	assert.Equal(t, "/posts/hello", post.Path())
	assert.Equal(t, "/pages/about", page.Path())
}

func TestValidCoverImageType(t *testing.T) {
	assert.True(t, ValidCoverImageType("image/jpeg"))
	assert.True(t, ValidCoverImageType("image/png"))
	assert.True(t, ValidCoverImageType("image/webp"))
	assert.True(t, ValidCoverImageType("IMAGE/PNG"))

	assert.False(t, ValidCoverImageType("image/gif"))
	assert.False(t, ValidCoverImageType("application/pdf"))
	assert.False(t, ValidCoverImageType(""))
}

func TestDisplayExcerpt(t *testing.T) {
	tests := []struct {
		name    string
		excerpt string
		body    string
		want    string
	}{
		{
			name:    "explicit excerpt wins",
			excerpt: "hand-written summary",
			body:    "a very long body",
			want:    "hand-written summary",
		},
		{
			name: "first paragraph of multi-paragraph body",
			body: "This is the opening paragraph of the article.\n\nAnd this is the second one.",
			want: "This is the opening paragraph of the article.",
		},
		{
			name: "short lead paragraph falls back to whole body",
			body: "Intro\n\nThe real content starts here and goes on for a while.",
			want: "Intro The real content starts here and goes on for a while.",
		},
		{
			name: "empty body",
			body: "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Postable{Excerpt: tt.excerpt, Body: tt.body}
			assert.Equal(t, tt.want, p.DisplayExcerpt())
		})
	}
}

func TestDisplayExcerptTruncates(t *testing.T) {
	p := &Postable{Body: strings.Repeat("word ", 100)}

	got := p.DisplayExcerpt()
	assert.LessOrEqual(t, len(got), 200)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestVariantSpecDigestIsStable(t *testing.T) {
	a := VariantSpec{Name: "thumbnail", Mode: 0, Width: 300, Height: 200}
	b := VariantSpec{Name: "renamed", Mode: 0, Width: 300, Height: 200}
	c := VariantSpec{Name: "thumbnail", Mode: 0, Width: 301, Height: 200}

	// The digest depends only on the transform, not the display name.
	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())
	assert.Len(t, a.Digest(), 64)
}
