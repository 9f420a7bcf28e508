package model

import (
	"database/sql"
	"time"
)

type Post struct {
	PostID         string          `db:"post_id"`
	Image          string          `db:"image"`
	ImageThumbnail sql.NullString  `db:"image_thumbnail"`
	Text           string          `db:"text"`
	Username       string          `db:"username"`
	SentimentLabel sql.NullString  `db:"sentiment_label"`
	SentimentScore sql.NullFloat64 `db:"sentiment_score"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type Comment struct {
	CommentID string    `db:"comment_id"`
	PostID    string    `db:"post_id"`
	Username  string    `db:"username"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}
