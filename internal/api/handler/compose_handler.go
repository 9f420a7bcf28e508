package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nmtran/snapfeed-be/internal/api/dto"
	"github.com/nmtran/snapfeed-be/internal/dispatch"
	"github.com/nmtran/snapfeed-be/internal/queue"
)

// Generate handles POST /api/v1/compose/generate
// Blocks until a text-generation worker replies or the wait times out
func (h *ComposeHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if req.PromptText == "" && req.Tags == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Please enter text or tags to generate a post",
		})
		return
	}

	payload := map[string]string{
		"prompt_text": req.PromptText,
		"tags":        req.Tags,
	}
	if req.MaxNewTokens > 0 {
		payload["max_new_tokens"] = strconv.Itoa(req.MaxNewTokens)
	}
	if req.Temperature != "" {
		payload["temperature"] = req.Temperature
	}

	result, err := h.dispatcher.SubmitAndWait(c.Request.Context(), &dispatch.Job{
		Type:    queue.JobTypeGenerate,
		Payload: payload,
	}, h.waitTimeout)
	if err != nil {
		h.respondDispatchError(c, "generate", err)
		return
	}

	c.JSON(http.StatusOK, dto.GenerateResponse{
		GeneratedText: result["generated_text"],
	})
}

// Translate handles POST /api/v1/compose/translate
// Blocks until a translation worker replies or the wait times out
func (h *ComposeHandler) Translate(c *gin.Context) {
	var req dto.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	result, err := h.dispatcher.SubmitAndWait(c.Request.Context(), &dispatch.Job{
		Type: queue.JobTypeTranslate,
		Payload: map[string]string{
			"text":        req.Text,
			"target_lang": req.TargetLang,
			"source_lang": req.SourceLang,
		},
	}, h.waitTimeout)
	if err != nil {
		h.respondDispatchError(c, "translate", err)
		return
	}

	c.JSON(http.StatusOK, dto.TranslateResponse{
		TranslatedText: result["translated_text"],
		DetectedLang:   result["detected_lang"],
		SourceLang:     result["source_lang"],
		TargetLang:     result["target_lang"],
	})
}

// respondDispatchError maps dispatch outcomes onto HTTP statuses: a worker
// that reported failure is the caller's problem, a timeout is the
// pipeline's.
func (h *ComposeHandler) respondDispatchError(c *gin.Context, op string, err error) {
	var jobErr *dispatch.JobFailedError
	switch {
	case errors.As(err, &jobErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": jobErr.Reason,
		})

	case errors.Is(err, dispatch.ErrTimeout):
		h.logger.Warn("Compose request timed out", slog.String("operation", op))
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error": "The request timed out, please try again",
		})

	default:
		h.logger.Error("Compose request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process request",
		})
	}
}
