package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker/domain"
)

// Resize processes image-resize jobs. The actual resizing is an opaque
// inference call; this handler resolves the upload path and records the
// thumbnail URL as an overwrite on the target post.
type Resize struct {
	infer     Inferencer
	uploadDir string
}

// NewResize creates a resize handler rooted at the given upload directory
func NewResize(infer Inferencer, uploadDir string) *Resize {
	return &Resize{
		infer:     infer,
		uploadDir: uploadDir,
	}
}

// JobType implements worker.Handler
func (h *Resize) JobType() string {
	return queue.JobTypeResize
}

// ReplyExpected implements worker.Handler; resize results go to storage
func (h *Resize) ReplyExpected() bool {
	return false
}

// Handle resolves the image path, runs the resize, and returns the
// thumbnail URL field for the target post.
func (h *Resize) Handle(ctx context.Context, job *queue.JobMessage) (map[string]string, error) {
	imagePath, err := requireField(job, "image_path")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	inputPath := h.resolveInputPath(imagePath)

	if _, err := os.Stat(inputPath); err != nil {
		// Missing source file cannot be fixed by redelivery
		return nil, fmt.Errorf("%w: image file not found: %s", domain.ErrInvalidPayload, inputPath)
	}

	imageFilename := filepath.Base(inputPath)
	thumbnailFilename := "thumb_" + imageFilename
	outputPath := filepath.Join(h.uploadDir, "thumbnails", thumbnailFilename)

	if _, err := h.infer.Infer(ctx, queue.JobTypeResize, map[string]string{
		"input_path":  inputPath,
		"output_path": outputPath,
	}); err != nil {
		return nil, err
	}

	return map[string]string{
		"image_thumbnail": "/uploads/thumbnails/" + thumbnailFilename,
	}, nil
}

// resolveInputPath maps a URL path or bare filename onto the uploads
// directory, leaving absolute file paths alone.
func (h *Resize) resolveInputPath(imagePath string) string {
	if strings.HasPrefix(imagePath, "/uploads/") {
		relative := strings.TrimPrefix(imagePath, "/uploads/full/")
		relative = strings.TrimPrefix(relative, "/uploads/thumbnails/")
		relative = strings.TrimPrefix(relative, "/uploads/")
		return filepath.Join(h.uploadDir, "full", relative)
	}
	if !filepath.IsAbs(imagePath) {
		return filepath.Join(h.uploadDir, "full", filepath.Base(imagePath))
	}
	return imagePath
}
