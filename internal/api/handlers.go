package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nhle/cyclic-tasks/internal/ai"
	"github.com/nhle/cyclic-tasks/internal/lease"
	"github.com/nhle/cyclic-tasks/internal/model"
	"github.com/nhle/cyclic-tasks/internal/orchestrator"
	"github.com/nhle/cyclic-tasks/internal/store"
	"github.com/nhle/cyclic-tasks/internal/tasks"
)

type contributionRequest struct {
	Delta *float64 `json:"delta" binding:"required"`
}

type valueRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

type webhookRequest struct {
	WebhookURL string `json:"webhookUrl"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

type parseRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if s.sched != nil {
		st := s.sched.Status()
		sched := gin.H{
			"started": st.Started,
			"state":   st.State.String(),
			"runs":    st.Runs,
		}
		if !st.LastRun.IsZero() {
			sched["lastRun"] = st.LastRun
			sched["lastSummary"] = st.LastSummary
		}
		if st.Error != nil {
			sched["error"] = st.Error.Error()
		}
		resp["scheduler"] = sched
	}
	c.JSON(http.StatusOK, resp)
}

// handleListTasks runs a reset-only pass so the client always sees the
// current cycle, then returns decorated views.
func (s *Server) handleListTasks(c *gin.Context) {
	userID := c.Param("user")

	rep, err := s.runner.RunUser(c.Request.Context(), userID, orchestrator.Options{})
	if err != nil {
		s.fail(c, err)
		return
	}

	webhook := ""
	if u, err := s.store.GetUser(c.Request.Context(), userID); err == nil {
		webhook = u.WebhookURL
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":      tasks.BuildViews(rep.Tasks, s.runner.Now()),
		"version":    rep.Version,
		"webhookUrl": webhook,
	})
}

func (s *Server) handleReplaceTasks(c *gin.Context) {
	var incoming []model.Task
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.tasks.Replace(c.Request.Context(), c.Param("user"), incoming); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": len(incoming)})
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var draft model.TaskDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.tasks.Create(c.Request.Context(), c.Param("user"), draft)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tasks.NewView(task, s.runner.Now()))
}

func (s *Server) handleEditTask(c *gin.Context) {
	var draft model.TaskDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.tasks.Edit(c.Request.Context(), c.Param("user"), c.Param("id"), draft)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks.NewView(task, s.runner.Now()))
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.tasks.Delete(c.Request.Context(), c.Param("user"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleContribute(c *gin.Context) {
	var req contributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.tasks.Contribute(c.Request.Context(), c.Param("user"), c.Param("id"), *req.Delta)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondChange(c, res)
}

func (s *Server) handleSetValue(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.tasks.SetValue(c.Request.Context(), c.Param("user"), c.Param("id"), *req.Value)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondChange(c, res)
}

// respondChange reports a blocked change as 429 so clients can show when
// contributions resume.
func (s *Server) respondChange(c *gin.Context, res tasks.ChangeResult) {
	status := http.StatusOK
	if res.Outcome == tasks.OutcomeBlocked {
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{
		"outcome": res.Outcome,
		"task":    tasks.NewView(res.Task, s.runner.Now()),
		"limit":   res.Limit,
	})
}

func (s *Server) handleRenameGroup(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := s.tasks.RenameGroup(c.Request.Context(), c.Param("user"), c.Param("group"), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"renamed": n})
}

// handlePushCheck runs a full pass for one user, reminders included.
func (s *Server) handlePushCheck(c *gin.Context) {
	rep, err := s.runner.RunUser(c.Request.Context(), c.Param("user"), orchestrator.Options{Notify: true})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pushes":   rep.Pushes,
		"failures": rep.Failures,
		"resets":   rep.Resets,
		"tasks":    tasks.BuildViews(rep.Tasks, s.runner.Now()),
	})
}

func (s *Server) handleSetWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.tasks.SetWebhook(c.Request.Context(), c.Param("user"), req.WebhookURL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := s.store.ListNotifications(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// handleCron runs a full pass and returns its summary. With async=true
// the run is queued on the background scheduler instead.
func (s *Server) handleCron(c *gin.Context) {
	if c.Query("async") == "true" {
		if s.sched == nil || !s.sched.Trigger() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"queued": true})
		return
	}

	summary, err := s.runner.RunAll(c.Request.Context(), orchestrator.Options{Notify: true})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleParse(c *gin.Context) {
	if s.parser == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task parsing is not configured"})
		return
	}

	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft, err := s.parser.Parse(c.Request.Context(), req.Text)
	if errors.Is(err, ai.ErrNoTask) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Warnw("Task parsing failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, draft)
}

// fail maps domain errors to HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tasks.ErrTaskNotFound), errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTask):
		status = http.StatusBadRequest
	case errors.Is(err, tasks.ErrConflict),
		errors.Is(err, orchestrator.ErrRetriesExhausted),
		errors.Is(err, lease.ErrHeld):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Errorw("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
