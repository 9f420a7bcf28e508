package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// resultColumns whitelists the post columns fire-and-forget jobs may write.
// Every write is an overwrite keyed by post id, so redelivered jobs
// converge to the same final state.
var resultColumns = map[string]struct{}{
	"image_thumbnail": {},
	"sentiment_label": {},
	"sentiment_score": {},
}

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ApplyResult overwrites the given result fields on the post identified by
// targetRef. Unknown fields are rejected rather than silently dropped.
func (s *Storage) ApplyResult(ctx context.Context, targetRef string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := resultColumns[name]; !ok {
			return fmt.Errorf("unknown result field: %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	setClauses := make([]string, 0, len(names)+1)
	args := make([]interface{}, 0, len(names)+1)
	for i, name := range names {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", name, i+1))
		args = append(args, fields[name])
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, targetRef)

	query := fmt.Sprintf(
		"UPDATE posts SET %s WHERE post_id = $%d",
		strings.Join(setClauses, ", "),
		len(args),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to apply job result: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Target record is gone; nothing to converge to
		s.logger.Warn("Job result applied to missing post",
			slog.String("post_id", targetRef),
		)
		return nil
	}

	s.logger.Info("Job result applied",
		slog.String("post_id", targetRef),
		slog.Int("fields", len(fields)),
	)

	return nil
}
