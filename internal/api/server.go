// Package api exposes task collections, contributions, reminder checks,
// and the cycle run over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/scheduler"
	"github.com/nhle/cyclic-tasks/internal/store"
	"github.com/nhle/cyclic-tasks/internal/tasks"
)

// TaskParser turns free text into a task draft.
type TaskParser interface {
	Parse(ctx context.Context, text string) (model.TaskDraft, error)
}

// Scheduler is the background cycle loop served alongside the API.
type Scheduler interface {
	Trigger() bool
	Status() scheduler.Status
}

// Server is the HTTP adapter over the orchestrator and task service.
type Server struct {
	runner *orchestrator.Runner
	tasks  *tasks.Service
	store  store.Store
	parser TaskParser
	sched  Scheduler
	router *gin.Engine
	logger *zap.SugaredLogger
}

// NewServer creates the server and registers its routes. parser may be
// nil, in which case /api/parse reports the feature as unavailable.
func NewServer(
	runner *orchestrator.Runner,
	svc *tasks.Service,
	s store.Store,
	parser TaskParser,
	logger *zap.SugaredLogger,
) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	srv := &Server{
		runner: runner,
		tasks:  svc,
		store:  s,
		parser: parser,
		router: router,
		logger: logger,
	}

	api := router.Group("/api")
	{
		api.GET("/health", srv.handleHealth)
		api.POST("/cron", srv.handleCron)
		api.POST("/parse", srv.handleParse)

		user := api.Group("/users/:user")
		user.GET("/tasks", srv.handleListTasks)
		user.PUT("/tasks", srv.handleReplaceTasks)
		user.POST("/tasks", srv.handleCreateTask)
		user.PUT("/tasks/:id", srv.handleEditTask)
		user.DELETE("/tasks/:id", srv.handleDeleteTask)
		user.POST("/tasks/:id/contributions", srv.handleContribute)
		user.PUT("/tasks/:id/value", srv.handleSetValue)
		user.PUT("/groups/:group", srv.handleRenameGroup)
		user.POST("/push-check", srv.handlePushCheck)
		user.PUT("/webhook", srv.handleSetWebhook)
		user.GET("/notifications", srv.handleNotifications)
	}

	return srv
}

// WithScheduler attaches the background loop so /api/health reports its
// status and /api/cron?async=true queues a run on it.
func (s *Server) WithScheduler(sched Scheduler) *Server {
	s.sched = sched
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
