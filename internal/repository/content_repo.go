package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"planboard-backend/internal/models"
)

// ContentFilter narrows a listing. A nil OwnerID lists every record.
type ContentFilter struct {
	OwnerID     *int64
	Stage       models.Stage
	ContentType models.ContentType
}

type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

const contentColumns = `id, title, description, script, thumbnail_idea, resources_links, stage, content_type,
	planned_date, youtube_live_link, instagram_live_link, created_at, updated_at, user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(row scanner) (*models.ContentItem, error) {
	c := &models.ContentItem{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Script, &c.ThumbnailIdea, &c.ResourcesLinks,
		&c.Stage, &c.ContentType, &c.PlannedDate, &c.YoutubeLiveLink, &c.InstagramLiveLink,
		&c.CreatedAt, &c.UpdatedAt, &c.UserID,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ContentRepo) List(ctx context.Context, f ContentFilter) ([]*models.ContentItem, error) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != nil {
		args = append(args, *f.OwnerID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Stage != "" {
		args = append(args, f.Stage)
		conds = append(conds, fmt.Sprintf("stage = $%d", len(args)))
	}
	if f.ContentType != "" {
		args = append(args, f.ContentType)
		conds = append(conds, fmt.Sprintf("content_type = $%d", len(args)))
	}

	query := "SELECT " + contentColumns + " FROM contents"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*models.ContentItem, 0)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *ContentRepo) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+contentColumns+" FROM contents WHERE id = $1", id)
	c, err := scanContent(row)
	if err != nil {
		return nil, translateError(err)
	}
	return c, nil
}

func (r *ContentRepo) Create(ctx context.Context, c *models.ContentItem) error {
	query := `INSERT INTO contents (title, description, script, thumbnail_idea, resources_links, stage, content_type,
			planned_date, youtube_live_link, instagram_live_link, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		c.Title, c.Description, c.Script, c.ThumbnailIdea, c.ResourcesLinks, c.Stage, c.ContentType,
		c.PlannedDate, c.YoutubeLiveLink, c.InstagramLiveLink, c.UserID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// Update locks the row, lets fn inspect and mutate it, then persists the
// result in the same transaction. An error from fn aborts without writing.
// Identity, owner and creation time are not changed by fn.
func (r *ContentRepo) Update(ctx context.Context, id int64, fn func(c *models.ContentItem) error) (*models.ContentItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := scanContent(tx.QueryRow(ctx, "SELECT "+contentColumns+" FROM contents WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, translateError(err)
	}

	createdAt, userID := c.CreatedAt, c.UserID
	if err := fn(c); err != nil {
		return nil, err
	}
	c.ID, c.CreatedAt, c.UserID = id, createdAt, userID

	query := `UPDATE contents SET title = $1, description = $2, script = $3, thumbnail_idea = $4,
			resources_links = $5, stage = $6, content_type = $7, planned_date = $8,
			youtube_live_link = $9, instagram_live_link = $10, updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at`

	err = tx.QueryRow(ctx, query,
		c.Title, c.Description, c.Script, c.ThumbnailIdea, c.ResourcesLinks, c.Stage, c.ContentType,
		c.PlannedDate, c.YoutubeLiveLink, c.InstagramLiveLink, id,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit update of content %d: %w", id, err)
	}
	return c, nil
}

// Delete removes the row after check approves it, both under the row lock.
func (r *ContentRepo) Delete(ctx context.Context, id int64, check func(c *models.ContentItem) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := scanContent(tx.QueryRow(ctx, "SELECT "+contentColumns+" FROM contents WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return translateError(err)
	}

	if check != nil {
		if err := check(c); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, "DELETE FROM contents WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}
