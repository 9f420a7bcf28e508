package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReserveCooldown atomically claims the right to post for a user. The
// claim succeeds when the user has never posted or when at least cooldown
// has elapsed since their last post; the row is updated to now in the
// same statement so two concurrent requests cannot both win.
//
// On denial the remaining wait is returned.
func (s *Storage) ReserveCooldown(ctx context.Context, username string, now time.Time, cooldown time.Duration) (bool, time.Duration, error) {
	query := `
		INSERT INTO user_last_post (username, last_post_time)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE
		SET last_post_time = EXCLUDED.last_post_time
		WHERE user_last_post.last_post_time <= EXCLUDED.last_post_time - make_interval(secs => $3)
	`

	res, err := s.db.ExecContext(ctx, query, username, now, cooldown.Seconds())
	if err != nil {
		return false, 0, fmt.Errorf("failed to reserve cooldown: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to reserve cooldown: %w", err)
	}

	if rows > 0 {
		return true, 0, nil
	}

	remaining, err := s.cooldownRemaining(ctx, username, now, cooldown)
	if err != nil {
		return false, 0, err
	}

	return false, remaining, nil
}

// CooldownStatus reports whether the user may post right now and, if not,
// how long until they can. Read-only, does not claim anything.
func (s *Storage) CooldownStatus(ctx context.Context, username string, now time.Time, cooldown time.Duration) (bool, time.Duration, error) {
	remaining, err := s.cooldownRemaining(ctx, username, now, cooldown)
	if err != nil {
		return false, 0, err
	}

	return remaining <= 0, remaining, nil
}

func (s *Storage) cooldownRemaining(ctx context.Context, username string, now time.Time, cooldown time.Duration) (time.Duration, error) {
	var lastPost time.Time
	err := s.db.GetContext(ctx, &lastPost,
		`SELECT last_post_time FROM user_last_post WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read last post time: %w", err)
	}

	remaining := cooldown - now.Sub(lastPost)
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// ToggleLike flips the like state of a post for a user. The insert-first,
// delete-on-conflict shape keeps the toggle atomic under concurrent
// requests from the same user: exactly one of the two statements changes
// a row.
func (s *Storage) ToggleLike(ctx context.Context, postID, username string) (bool, int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO likes (post_id, username)
		VALUES ($1, $2)
		ON CONFLICT (post_id, username) DO NOTHING
	`, postID, username)
	if err != nil {
		return false, 0, fmt.Errorf("failed to insert like: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to insert like: %w", err)
	}

	liked := rows > 0
	if !liked {
		// Already liked: this toggle removes it
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM likes WHERE post_id = $1 AND username = $2`, postID, username)
		if err != nil {
			return false, 0, fmt.Errorf("failed to delete like: %w", err)
		}
	}

	count, err := s.LikeCount(ctx, postID)
	if err != nil {
		return false, 0, err
	}

	return liked, count, nil
}

// LikeCount always counts rows rather than maintaining a counter column,
// so the value cannot drift from the like rows.
func (s *Storage) LikeCount(ctx context.Context, postID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	return count, nil
}

func normalizeTag(tag string) string {
	name := strings.ToLower(strings.TrimSpace(tag))
	return strings.TrimPrefix(name, "#")
}
