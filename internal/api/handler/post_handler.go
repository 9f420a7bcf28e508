package handler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nmtran/snapfeed-be/internal/api/dto"
	"github.com/nmtran/snapfeed-be/internal/api/model"
	"github.com/nmtran/snapfeed-be/internal/api/storage"
	"github.com/nmtran/snapfeed-be/internal/dispatch"
	"github.com/nmtran/snapfeed-be/internal/queue"
)

// CreatePost handles POST /api/v1/posts
// Creates a post, then hands thumbnailing and sentiment scoring off to the
// workers. The post is visible immediately; enrichment lands later.
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	now := time.Now()

	// The cooldown claim and the timestamp update are one atomic statement,
	// so two concurrent requests from the same user cannot both pass.
	allowed, remaining, err := h.storage.ReserveCooldown(c.Request.Context(), req.User, now, h.postCooldown)
	if err != nil {
		h.logger.Error("Failed to check post cooldown", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create post",
		})
		return
	}

	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":          "You can only post once per cooldown period",
			"time_remaining": math.Ceil(remaining.Seconds()),
		})
		return
	}

	post := model.Post{
		PostID:    uuid.New().String(),
		Image:     req.Image,
		Text:      req.Text,
		Username:  req.User,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.storage.CreatePost(c.Request.Context(), &post); err != nil {
		h.logger.Error("Failed to create post", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create post",
		})
		return
	}

	if err := h.storage.AddTagsToPost(c.Request.Context(), post.PostID, req.Tags); err != nil {
		h.logger.Error("Failed to attach tags",
			slog.String("post_id", post.PostID),
			slog.String("error", err.Error()),
		)
	}

	// Enrichment jobs are fire-and-forget: a publish failure is logged but
	// never fails the request, the post simply stays unenriched.
	if post.Image != "" {
		err := h.dispatcher.SubmitFireAndForget(c.Request.Context(), &dispatch.Job{
			Type:      queue.JobTypeResize,
			TargetRef: post.PostID,
			Payload: map[string]string{
				"image_path": post.Image,
			},
		})
		if err != nil {
			h.logger.Error("Failed to publish resize job",
				slog.String("post_id", post.PostID),
				slog.String("error", err.Error()),
			)
		}
	}

	err = h.dispatcher.SubmitFireAndForget(c.Request.Context(), &dispatch.Job{
		Type:      queue.JobTypeSentiment,
		TargetRef: post.PostID,
		Payload: map[string]string{
			"text": post.Text,
		},
	})
	if err != nil {
		h.logger.Error("Failed to publish sentiment job",
			slog.String("post_id", post.PostID),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusCreated, h.toPostDTO(c.Request.Context(), &post))
}

// GetPost handles GET /api/v1/posts/:post_id
func (h *PostHandler) GetPost(c *gin.Context) {
	postID := c.Param("post_id")
	if _, err := uuid.Parse(postID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "post_id must be a valid UUID",
		})
		return
	}

	post, err := h.storage.GetPostByID(c.Request.Context(), postID)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Post not found",
			})
			return
		}
		h.logger.Error("Failed to get post", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get post",
		})
		return
	}

	c.JSON(http.StatusOK, h.toPostDTO(c.Request.Context(), post))
}

// ListPosts handles GET /api/v1/posts
// Lists posts newest-first with optional filtering and cursor pagination
func (h *PostHandler) ListPosts(c *gin.Context) {
	var req dto.ListPostsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodePostCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.PostFilter{
		User:     req.User,
		Text:     req.Text,
		Tag:      req.Tag,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	posts, err := h.storage.ListPosts(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list posts", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list posts",
		})
		return
	}

	hasMore := len(posts) > req.PageSize
	if hasMore {
		posts = posts[:req.PageSize]
	}

	postResponse := make([]dto.PostDTO, len(posts))
	for i := range posts {
		postResponse[i] = h.toPostDTO(c.Request.Context(), &posts[i])
	}

	var nextCursor string
	if hasMore {
		lastPost := posts[len(posts)-1]
		cursorObj := storage.PostCursor{
			CreatedAt: lastPost.CreatedAt,
			PostID:    lastPost.PostID,
		}
		nextCursor, err = EncodePostCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListPostsResponse{
		Posts:      postResponse,
		NextCursor: nextCursor,
	})
}

// ToggleLike handles POST /api/v1/posts/:post_id/like
// Flips the caller's like on the post and returns the fresh count
func (h *PostHandler) ToggleLike(c *gin.Context) {
	postID := c.Param("post_id")
	if _, err := uuid.Parse(postID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "post_id must be a valid UUID",
		})
		return
	}

	var req dto.ToggleLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if _, err := h.storage.GetPostByID(c.Request.Context(), postID); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Post not found",
			})
			return
		}
		h.logger.Error("Failed to get post", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to toggle like",
		})
		return
	}

	liked, count, err := h.storage.ToggleLike(c.Request.Context(), postID, req.User)
	if err != nil {
		h.logger.Error("Failed to toggle like", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to toggle like",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ToggleLikeResponse{
		PostID:    postID,
		Liked:     liked,
		LikeCount: count,
	})
}

// Timer handles GET /api/v1/users/:username/timer
// Reports whether the user may post and how long until they can
func (h *PostHandler) Timer(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "username is required",
		})
		return
	}

	canPost, remaining, err := h.storage.CooldownStatus(c.Request.Context(), username, time.Now(), h.postCooldown)
	if err != nil {
		h.logger.Error("Failed to check cooldown status", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to check timer",
		})
		return
	}

	c.JSON(http.StatusOK, dto.TimerResponse{
		User:          username,
		CanPost:       canPost,
		TimeRemaining: math.Ceil(remaining.Seconds()),
	})
}

// CreateComment handles POST /api/v1/posts/:post_id/comments
func (h *PostHandler) CreateComment(c *gin.Context) {
	postID := c.Param("post_id")
	if _, err := uuid.Parse(postID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "post_id must be a valid UUID",
		})
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if _, err := h.storage.GetPostByID(c.Request.Context(), postID); err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Post not found",
			})
			return
		}
		h.logger.Error("Failed to get post", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create comment",
		})
		return
	}

	comment := model.Comment{
		CommentID: uuid.New().String(),
		PostID:    postID,
		Username:  req.User,
		Text:      req.Text,
		CreatedAt: time.Now(),
	}

	if err := h.storage.CreateComment(c.Request.Context(), &comment); err != nil {
		h.logger.Error("Failed to create comment", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create comment",
		})
		return
	}

	c.JSON(http.StatusCreated, dto.CommentDTO{
		CommentID: comment.CommentID,
		PostID:    comment.PostID,
		User:      comment.Username,
		Text:      comment.Text,
		CreatedAt: comment.CreatedAt.Format(time.RFC3339),
	})
}

// ListComments handles GET /api/v1/posts/:post_id/comments
func (h *PostHandler) ListComments(c *gin.Context) {
	postID := c.Param("post_id")
	if _, err := uuid.Parse(postID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "post_id must be a valid UUID",
		})
		return
	}

	comments, err := h.storage.ListComments(c.Request.Context(), postID)
	if err != nil {
		h.logger.Error("Failed to list comments", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list comments",
		})
		return
	}

	commentResponse := make([]dto.CommentDTO, len(comments))
	for i, comment := range comments {
		commentResponse[i] = dto.CommentDTO{
			CommentID: comment.CommentID,
			PostID:    comment.PostID,
			User:      comment.Username,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": commentResponse,
	})
}

// toPostDTO joins the post row with its like count and tags. Lookup
// failures degrade to empty values rather than failing the request.
func (h *PostHandler) toPostDTO(ctx context.Context, post *model.Post) dto.PostDTO {
	likeCount, err := h.storage.LikeCount(ctx, post.PostID)
	if err != nil {
		h.logger.Warn("Failed to count likes",
			slog.String("post_id", post.PostID),
			slog.String("error", err.Error()),
		)
	}

	tags, err := h.storage.GetPostTags(ctx, post.PostID)
	if err != nil {
		h.logger.Warn("Failed to load tags",
			slog.String("post_id", post.PostID),
			slog.String("error", err.Error()),
		)
	}

	out := dto.PostDTO{
		PostID:    post.PostID,
		Image:     post.Image,
		Text:      post.Text,
		User:      post.Username,
		LikeCount: likeCount,
		Tags:      tags,
		CreatedAt: post.CreatedAt.Format(time.RFC3339),
		UpdatedAt: post.UpdatedAt.Format(time.RFC3339),
	}

	if post.ImageThumbnail.Valid {
		out.ImageThumbnail = post.ImageThumbnail.String
	}
	if post.SentimentLabel.Valid {
		out.SentimentLabel = post.SentimentLabel.String
	}
	if post.SentimentScore.Valid {
		score := post.SentimentScore.Float64
		out.SentimentScore = &score
	}

	return out
}
