// Package press implements the content lifecycle engine behind Gutter Press:
// publishable postables (posts and pages) with unique URL slugs, a
// publication policy derived from the publish flag and timestamp, cover
// image derivatives generated asynchronously through a job queue, a
// uniquely-positioned navigation menu with atomic bulk reordering, and
// cached site settings.
//
// The package is storage- and transport-agnostic. Persistence goes through
// the Repository interface (in-memory and PostgreSQL implementations under
// repo/), binary assets through the BlobStore interface (memory, fs, s3 and
// minio implementations under storage/), and background work through the
// Queue interface (channel-backed implementation under queue/).
//
// Basic usage:
//
//	svc, err := press.New(
//	    press.WithRepository(memoryrepo.New()),
//	    press.WithBlobStore("memory", memorystorage.New()),
//	    press.WithCache(cache.NewMemory()),
//	    press.WithQueue(q),
//	)
package press
