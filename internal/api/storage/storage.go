package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nmtran/snapfeed-be/internal/api/model"
	"github.com/nmtran/snapfeed-be/shared/postgresql"
)

// ErrPostNotFound is returned when a post cannot be found
var ErrPostNotFound = errors.New("post not found")

const postColumns = `
	post_id, image, image_thumbnail, text, username,
	sentiment_label, sentiment_score, created_at, updated_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreatePost(ctx context.Context, post *model.Post) error {
	query := `
		INSERT INTO posts (
			post_id, image, text, username, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		post.PostID,
		post.Image,
		post.Text,
		post.Username,
		post.CreatedAt,
		post.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

func (s *Storage) GetPostByID(ctx context.Context, postID string) (*model.Post, error) {
	var post model.Post
	query := `SELECT ` + postColumns + ` FROM posts WHERE post_id = $1`

	err := s.db.GetContext(ctx, &post, query, postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}

type PostFilter struct {
	User     string
	Text     string
	Tag      string
	PageSize int
	Cursor   *PostCursor
}

type PostCursor struct {
	CreatedAt time.Time
	PostID    string
}

func (s *Storage) ListPosts(ctx context.Context, filter PostFilter) ([]model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.User != "" {
		query += fmt.Sprintf(" AND username = $%d", argIdx)
		args = append(args, filter.User)
		argIdx++
	}

	if filter.Text != "" {
		query += fmt.Sprintf(" AND text ILIKE $%d", argIdx)
		args = append(args, "%"+filter.Text+"%")
		argIdx++
	}

	if filter.Tag != "" {
		query += fmt.Sprintf(` AND post_id IN (
			SELECT pt.post_id FROM post_tags pt
			JOIN tags t ON pt.tag_id = t.tag_id
			WHERE t.name = $%d
		)`, argIdx)
		args = append(args, filter.Tag)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, post_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.PostID)
		argIdx += 2
	}

	// Order by created_at DESC, post_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, post_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var posts []model.Post
	err := s.db.SelectContext(ctx, &posts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nil
}

func (s *Storage) CreateComment(ctx context.Context, comment *model.Comment) error {
	query := `
		INSERT INTO comments (comment_id, post_id, username, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		comment.CommentID,
		comment.PostID,
		comment.Username,
		comment.Text,
		comment.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	return nil
}

func (s *Storage) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	query := `
		SELECT comment_id, post_id, username, text, created_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at ASC
	`

	var comments []model.Comment
	err := s.db.SelectContext(ctx, &comments, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

// AddTagsToPost normalizes, upserts, and links tags to a post. Already
// linked tags are left alone.
func (s *Storage) AddTagsToPost(ctx context.Context, postID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tag := range tags {
		name := normalizeTag(tag)
		if name == "" {
			continue
		}

		var tagID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING tag_id
		`, name).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("failed to upsert tag %s: %w", name, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_tags (post_id, tag_id)
			VALUES ($1, $2)
			ON CONFLICT (post_id, tag_id) DO NOTHING
		`, postID, tagID)
		if err != nil {
			return fmt.Errorf("failed to link tag %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tags: %w", err)
	}

	return nil
}

func (s *Storage) GetPostTags(ctx context.Context, postID string) ([]string, error) {
	query := `
		SELECT t.name
		FROM tags t
		JOIN post_tags pt ON t.tag_id = pt.tag_id
		WHERE pt.post_id = $1
		ORDER BY t.name
	`

	var tags []string
	err := s.db.SelectContext(ctx, &tags, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post tags: %w", err)
	}

	return tags, nil
}
