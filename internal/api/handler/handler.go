package handler

import (
	"log/slog"
	"time"

	"github.com/nmtran/snapfeed-be/internal/api/storage"
	"github.com/nmtran/snapfeed-be/internal/dispatch"
	"github.com/nmtran/snapfeed-be/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	Storage      *storage.Storage
	Dispatcher   *dispatch.Dispatcher
	PostCooldown time.Duration
	WaitTimeout  time.Duration
}

// PostHandler handles post, like, timer, and comment HTTP requests
type PostHandler struct {
	logger       *slog.Logger
	storage      *storage.Storage
	dispatcher   *dispatch.Dispatcher
	postCooldown time.Duration
}

// NewPostHandler creates a new PostHandler instance
func NewPostHandler(deps *Dependencies) *PostHandler {
	return &PostHandler{
		logger:       deps.Logger,
		storage:      deps.Storage,
		dispatcher:   deps.Dispatcher,
		postCooldown: deps.PostCooldown,
	}
}

// ComposeHandler handles the synchronous composition helpers that round-trip
// through a worker: text generation and translation.
type ComposeHandler struct {
	logger      *slog.Logger
	dispatcher  *dispatch.Dispatcher
	waitTimeout time.Duration
}

// NewComposeHandler creates a new ComposeHandler instance
func NewComposeHandler(deps *Dependencies) *ComposeHandler {
	return &ComposeHandler{
		logger:      deps.Logger,
		dispatcher:  deps.Dispatcher,
		waitTimeout: deps.WaitTimeout,
	}
}
