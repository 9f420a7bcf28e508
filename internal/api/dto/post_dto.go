package dto

type CreatePostRequest struct {
	Image string   `json:"image" binding:"required"`
	Text  string   `json:"text" binding:"required"`
	User  string   `json:"user" binding:"required"`
	Tags  []string `json:"tags"`
}

type ListPostsRequest struct {
	User     string `form:"user"`
	Text     string `form:"text"`
	Tag      string `form:"tag"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListPostsResponse struct {
	Posts      []PostDTO `json:"posts"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type PostDTO struct {
	PostID         string   `json:"post_id"`
	Image          string   `json:"image"`
	ImageThumbnail string   `json:"image_thumbnail,omitempty"`
	Text           string   `json:"text"`
	User           string   `json:"user"`
	SentimentLabel string   `json:"sentiment_label,omitempty"`
	SentimentScore *float64 `json:"sentiment_score,omitempty"`
	LikeCount      int      `json:"like_count"`
	Tags           []string `json:"tags,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type ToggleLikeRequest struct {
	User string `json:"user" binding:"required"`
}

type ToggleLikeResponse struct {
	PostID    string `json:"post_id"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"like_count"`
}

type TimerResponse struct {
	User          string  `json:"user"`
	CanPost       bool    `json:"can_post"`
	TimeRemaining float64 `json:"time_remaining"`
}

type CreateCommentRequest struct {
	User string `json:"user" binding:"required"`
	Text string `json:"text" binding:"required"`
}

type CommentDTO struct {
	CommentID string `json:"comment_id"`
	PostID    string `json:"post_id"`
	User      string `json:"user"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

type GenerateRequest struct {
	PromptText   string `json:"prompt_text"`
	Tags         string `json:"tags"`
	MaxNewTokens int    `json:"max_new_tokens"`
	Temperature  string `json:"temperature"`
}

type GenerateResponse struct {
	GeneratedText string `json:"generated_text"`
}

type TranslateRequest struct {
	Text       string `json:"text" binding:"required"`
	TargetLang string `json:"target_lang" binding:"required"`
	SourceLang string `json:"source_lang"`
}

type TranslateResponse struct {
	TranslatedText string `json:"translated_text"`
	DetectedLang   string `json:"detected_lang"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
}
