package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gutterpress/gutterpress/pkg/press"
	"github.com/gutterpress/gutterpress/pkg/press/ordering"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements press.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository. Multi-statement operations
// (ReorderMenuItems, SetSettings) run without their own transaction; use
// NewWithPool unless db is already transactional.
func New(db DBTX) press.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) press.Repository {
	return &Repository{db: pool, pool: pool}
}

// handlePostgresError maps constraint violations onto the sentinel errors the
// service layer retries or surfaces. The unique indexes are the backstop for
// every check-then-write sequence upstream, so the mapping by constraint name
// matters: a misattributed 23505 would break slug retry.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch {
			case strings.Contains(pgErr.ConstraintName, "slug"):
				return press.ErrSlugTaken
			case strings.Contains(pgErr.ConstraintName, "position"):
				return press.ErrPositionTaken
			case strings.Contains(pgErr.ConstraintName, "page_id"):
				return press.ErrMenuTargetTaken
			case strings.Contains(pgErr.ConstraintName, "derived_variants"):
				return press.ErrVariantExists
			}
			return fmt.Errorf("duplicate entry in %s: %s", operation, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("referenced record not found in %s", operation)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Postable operations

const postableColumns = `
	id, kind, title, slug, excerpt, body, publish, published_at,
	cover_key, cover_file_name, cover_mime_type, cover_byte_size,
	created_at, updated_at`

func (r *Repository) CreatePostable(ctx context.Context, p *press.Postable) error {
	query := `
		INSERT INTO postables (
			id, kind, title, slug, excerpt, body, publish, published_at,
			cover_key, cover_file_name, cover_mime_type, cover_byte_size,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	coverKey, coverFileName, coverMimeType, coverByteSize := coverColumns(p.CoverImage)
	_, err := r.db.Exec(ctx, query,
		p.ID, p.Kind, p.Title, p.Slug, p.Excerpt, p.Body, p.Publish, p.PublishedAt,
		coverKey, coverFileName, coverMimeType, coverByteSize,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create postable", err)
	}
	return nil
}

func (r *Repository) GetPostable(ctx context.Context, id uuid.UUID) (*press.Postable, error) {
	query := `SELECT ` + postableColumns + ` FROM postables WHERE id = $1`
	return r.scanPostable(r.db.QueryRow(ctx, query, id))
}

func (r *Repository) GetPostableBySlug(ctx context.Context, slug string) (*press.Postable, error) {
	query := `SELECT ` + postableColumns + ` FROM postables WHERE slug = $1`
	return r.scanPostable(r.db.QueryRow(ctx, query, slug))
}

func (r *Repository) UpdatePostable(ctx context.Context, p *press.Postable) error {
	query := `
		UPDATE postables SET
			kind = $2, title = $3, slug = $4, excerpt = $5, body = $6,
			publish = $7, published_at = $8,
			cover_key = $9, cover_file_name = $10, cover_mime_type = $11, cover_byte_size = $12,
			updated_at = $13
		WHERE id = $1`

	coverKey, coverFileName, coverMimeType, coverByteSize := coverColumns(p.CoverImage)
	tag, err := r.db.Exec(ctx, query,
		p.ID, p.Kind, p.Title, p.Slug, p.Excerpt, p.Body, p.Publish, p.PublishedAt,
		coverKey, coverFileName, coverMimeType, coverByteSize,
		p.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update postable", err)
	}
	if tag.RowsAffected() == 0 {
		return press.ErrPostableNotFound
	}
	return nil
}

func (r *Repository) DeletePostable(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM postables WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete postable", err)
	}
	if tag.RowsAffected() == 0 {
		return press.ErrPostableNotFound
	}
	return nil
}

func (r *Repository) ListPostables(ctx context.Context, kind press.PostableKind) ([]*press.Postable, error) {
	query := `SELECT ` + postableColumns + ` FROM postables`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list postables", err)
	}
	defer rows.Close()
	return r.collectPostables(rows)
}

func (r *Repository) ListPublished(ctx context.Context, kind press.PostableKind, now time.Time) ([]*press.Postable, error) {
	query := `SELECT ` + postableColumns + ` FROM postables WHERE ` + press.PublishedCondition("$1")
	args := []interface{}{now}
	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += ` ORDER BY published_at DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list published", err)
	}
	defer rows.Close()
	return r.collectPostables(rows)
}

func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM postables WHERE slug = $1 AND id <> $2)`,
		slug, excludeID).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("slug exists", err)
	}
	return exists, nil
}

func (r *Repository) scanPostable(row pgx.Row) (*press.Postable, error) {
	var p press.Postable
	var coverKey, coverFileName, coverMimeType *string
	var coverByteSize *int64

	err := row.Scan(
		&p.ID, &p.Kind, &p.Title, &p.Slug, &p.Excerpt, &p.Body, &p.Publish, &p.PublishedAt,
		&coverKey, &coverFileName, &coverMimeType, &coverByteSize,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, press.ErrPostableNotFound
		}
		return nil, r.handlePostgresError("scan postable", err)
	}

	if coverKey != nil && *coverKey != "" {
		p.CoverImage = &press.CoverImage{Key: *coverKey}
		if coverFileName != nil {
			p.CoverImage.FileName = *coverFileName
		}
		if coverMimeType != nil {
			p.CoverImage.MimeType = *coverMimeType
		}
		if coverByteSize != nil {
			p.CoverImage.ByteSize = *coverByteSize
		}
	}
	return &p, nil
}

func (r *Repository) collectPostables(rows pgx.Rows) ([]*press.Postable, error) {
	var out []*press.Postable
	for rows.Next() {
		p, err := r.scanPostable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate postable rows", err)
	}
	return out, nil
}

func coverColumns(c *press.CoverImage) (key, fileName, mimeType *string, byteSize *int64) {
	if c == nil {
		return nil, nil, nil, nil
	}
	return &c.Key, &c.FileName, &c.MimeType, &c.ByteSize
}

// Derived variant operations

func (r *Repository) CreateDerivedVariant(ctx context.Context, v *press.DerivedVariant) error {
	query := `
		INSERT INTO derived_variants (
			source_key, digest, variant, object_key, width, height, byte_size, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		v.SourceKey, v.Digest, v.Variant, v.Key, v.Width, v.Height, v.ByteSize, v.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create derived variant", err)
	}
	return nil
}

func (r *Repository) GetDerivedVariant(ctx context.Context, sourceKey, digest string) (*press.DerivedVariant, error) {
	query := `
		SELECT source_key, digest, variant, object_key, width, height, byte_size, created_at
		FROM derived_variants WHERE source_key = $1 AND digest = $2`

	var v press.DerivedVariant
	err := r.db.QueryRow(ctx, query, sourceKey, digest).Scan(
		&v.SourceKey, &v.Digest, &v.Variant, &v.Key, &v.Width, &v.Height, &v.ByteSize, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, press.ErrVariantNotReady
		}
		return nil, r.handlePostgresError("get derived variant", err)
	}
	return &v, nil
}

func (r *Repository) ListDerivedVariants(ctx context.Context, sourceKey string) ([]*press.DerivedVariant, error) {
	query := `
		SELECT source_key, digest, variant, object_key, width, height, byte_size, created_at
		FROM derived_variants WHERE source_key = $1 ORDER BY variant`

	rows, err := r.db.Query(ctx, query, sourceKey)
	if err != nil {
		return nil, r.handlePostgresError("list derived variants", err)
	}
	defer rows.Close()

	var out []*press.DerivedVariant
	for rows.Next() {
		var v press.DerivedVariant
		if err := rows.Scan(&v.SourceKey, &v.Digest, &v.Variant, &v.Key, &v.Width, &v.Height, &v.ByteSize, &v.CreatedAt); err != nil {
			return nil, r.handlePostgresError("scan derived variant", err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate derived variant rows", err)
	}
	return out, nil
}

// Menu operations

func (r *Repository) CreateMenuItem(ctx context.Context, item *press.MenuItem) error {
	query := `
		INSERT INTO menu_items (id, page_id, position, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		item.ID, item.PageID, item.Position, item.Enabled, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create menu item", err)
	}
	return nil
}

func (r *Repository) GetMenuItem(ctx context.Context, id uuid.UUID) (*press.MenuItem, error) {
	query := `
		SELECT id, page_id, position, enabled, created_at, updated_at
		FROM menu_items WHERE id = $1`

	var item press.MenuItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.PageID, &item.Position, &item.Enabled, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, press.ErrMenuItemNotFound
		}
		return nil, r.handlePostgresError("get menu item", err)
	}
	return &item, nil
}

func (r *Repository) UpdateMenuItem(ctx context.Context, item *press.MenuItem) error {
	query := `
		UPDATE menu_items SET page_id = $2, position = $3, enabled = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		item.ID, item.PageID, item.Position, item.Enabled, item.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update menu item", err)
	}
	if tag.RowsAffected() == 0 {
		return press.ErrMenuItemNotFound
	}
	return nil
}

func (r *Repository) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete menu item", err)
	}
	if tag.RowsAffected() == 0 {
		return press.ErrMenuItemNotFound
	}
	return nil
}

func (r *Repository) DeleteMenuItemByPageID(ctx context.Context, pageID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM menu_items WHERE page_id = $1`, pageID)
	if err != nil {
		return r.handlePostgresError("delete menu item by page", err)
	}
	if tag.RowsAffected() == 0 {
		return press.ErrMenuItemNotFound
	}
	return nil
}

func (r *Repository) ListMenuItems(ctx context.Context) ([]*press.MenuItem, error) {
	query := `
		SELECT id, page_id, position, enabled, created_at, updated_at
		FROM menu_items ORDER BY position`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list menu items", err)
	}
	defer rows.Close()

	var out []*press.MenuItem
	for rows.Next() {
		var item press.MenuItem
		if err := rows.Scan(&item.ID, &item.PageID, &item.Position, &item.Enabled, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan menu item", err)
		}
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate menu item rows", err)
	}
	return out, nil
}

func (r *Repository) MaxMenuPosition(ctx context.Context) (int, error) {
	var max int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) FROM menu_items`).Scan(&max)
	if err != nil {
		return 0, r.handlePostgresError("max menu position", err)
	}
	return max, nil
}

// ReorderMenuItems rewrites positions in two phases inside one transaction:
// first every item moves to a negative placeholder disjoint from all real
// positions, then to its final position. The unique index on position holds
// for every individual statement, so the batch succeeds for any permutation.
func (r *Repository) ReorderMenuItems(ctx context.Context, positions map[uuid.UUID]int) error {
	if r.pool != nil {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return r.handlePostgresError("begin reorder", err)
		}
		defer tx.Rollback(ctx)

		if err := r.reorderIn(ctx, tx, positions); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return r.handlePostgresError("commit reorder", err)
		}
		return nil
	}
	// No pool: assume db is already a transaction.
	return r.reorderIn(ctx, r.db, positions)
}

func (r *Repository) reorderIn(ctx context.Context, db DBTX, positions map[uuid.UUID]int) error {
	var max int
	if err := db.QueryRow(ctx, `SELECT COALESCE(MAX(position), 0) FROM menu_items`).Scan(&max); err != nil {
		return r.handlePostgresError("max menu position", err)
	}

	plan := ordering.BuildPlan(max, positions)
	apply := func(w ordering.Write) error {
		tag, err := db.Exec(ctx, `UPDATE menu_items SET position = $2, updated_at = now() WHERE id = $1`, w.ID, w.Position)
		if err != nil {
			return r.handlePostgresError("reorder menu items", err)
		}
		if tag.RowsAffected() == 0 {
			return press.ErrMenuItemNotFound
		}
		return nil
	}
	for _, w := range plan.Phase1 {
		if err := apply(w); err != nil {
			return err
		}
	}
	for _, w := range plan.Phase2 {
		if err := apply(w); err != nil {
			return err
		}
	}
	return nil
}

// Settings operations

func (r *Repository) GetSetting(ctx context.Context, key string) (*press.Setting, error) {
	var s press.Setting
	err := r.db.QueryRow(ctx,
		`SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, press.ErrSettingNotFound
		}
		return nil, r.handlePostgresError("get setting", err)
	}
	return &s, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return r.handlePostgresError("set setting", err)
	}
	return nil
}

func (r *Repository) SetSettings(ctx context.Context, values map[string]string) error {
	upsert := func(db DBTX) error {
		for key, value := range values {
			query := `
				INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
			if _, err := db.Exec(ctx, query, key, value); err != nil {
				return r.handlePostgresError("set settings", err)
			}
		}
		return nil
	}

	if r.pool != nil {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return r.handlePostgresError("begin set settings", err)
		}
		defer tx.Rollback(ctx)

		if err := upsert(tx); err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return r.handlePostgresError("commit set settings", err)
		}
		return nil
	}
	return upsert(r.db)
}

func (r *Repository) ListSettings(ctx context.Context) ([]*press.Setting, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, r.handlePostgresError("list settings", err)
	}
	defer rows.Close()

	var out []*press.Setting
	for rows.Next() {
		var s press.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, r.handlePostgresError("scan setting", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("iterate setting rows", err)
	}
	return out, nil
}
