package press

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gutterpress/gutterpress/pkg/press/imaging"
)

// Variant name constants.
const (
	VariantThumbnail = "thumbnail"
	VariantHero      = "hero"
)

// VariantSpec describes one image derivative: a name, a fit mode and a
// target geometry.
type VariantSpec struct {
	Name   string
	Mode   imaging.Mode
	Width  int
	Height int
}

// Digest returns the deterministic hash of the transform. Together with the
// source asset key it identifies a derived variant record; the same spec
// always yields the same digest, so re-dispatching never creates a new key.
func (s VariantSpec) Digest() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s %dx%d", s.Mode, s.Width, s.Height)))
	return hex.EncodeToString(sum[:])
}

// DefaultVariantSpecs are the derivatives generated for every cover image.
var DefaultVariantSpecs = []VariantSpec{
	{Name: VariantThumbnail, Mode: imaging.FitFill, Width: 300, Height: 200},
	{Name: VariantHero, Mode: imaging.FitWithin, Width: 1920, Height: 1080},
}

// originalObjectKey builds the content-hash-derived storage key for an
// uploaded original. Identical uploads share a key, making originals
// write-once in storage.
func originalObjectKey(sum [sha256.Size]byte, fileName string) string {
	h := hex.EncodeToString(sum[:])
	if fileName != "" {
		return fmt.Sprintf("originals/%s/%s_%s", h[:2], h[2:18], sanitizeFilename(fileName))
	}
	return fmt.Sprintf("originals/%s/%s", h[:2], h[2:18])
}

// variantObjectKey builds the storage key for a derivative, hashed from the
// source key and the spec digest so regeneration of the same pair lands on
// the same key.
func variantObjectKey(sourceKey string, spec VariantSpec) string {
	sum := sha256.Sum256([]byte(sourceKey + "\n" + spec.Digest()))
	h := hex.EncodeToString(sum[:])
	return fmt.Sprintf("derived/%s/%s/%s.jpg", spec.Name, h[:2], h[2:18])
}

func dispatchLockKey(sourceKey string) string {
	return "variants:dispatch:" + sourceKey
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
