// Package http provides the HTTP API for governd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/governd/internal/governor"
	"github.com/fyrsmithlabs/governd/internal/saga"
	"github.com/fyrsmithlabs/governd/internal/store"
	"github.com/fyrsmithlabs/governd/internal/task"
)

// Server provides HTTP endpoints for governd.
type Server struct {
	echo     *echo.Echo
	governor governor.Service
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(gov governor.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if gov == nil {
		return nil, fmt.Errorf("governor service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9614,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		governor: gov,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// UseMetrics attaches the HTTP metrics middleware.
func (s *Server) UseMetrics(m *HTTPMetrics) {
	if m != nil {
		s.echo.Use(m.MetricsMiddleware())
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/intents/evaluate", s.handleEvaluate)
	v1.GET("/metrics", s.handleMetrics)
	v1.POST("/tasks", s.handleSubmit)
	v1.GET("/tasks", s.handleListTasks)
	v1.GET("/tasks/:id", s.handleGetTask)
	v1.POST("/tasks/:id/transition", s.handleTransition)
	v1.POST("/tasks/:id/rollback", s.handleRollback)
	v1.GET("/tasks/:id/plan", s.handlePlan)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleEvaluate produces a verdict for a submitted intent without
// creating a task.
func (s *Server) handleEvaluate(c echo.Context) error {
	var req IntentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid evaluate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	in, err := req.toIntent()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	v, err := s.governor.Evaluate(c.Request().Context(), in)
	if err != nil {
		s.logger.Error("evaluation failed", zap.String("intent_id", in.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "evaluation failed")
	}

	return c.JSON(http.StatusOK, VerdictResponse{IntentID: in.ID, Verdict: v})
}

// handleSubmit evaluates an intent and creates a task when accepted.
func (s *Server) handleSubmit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid submit request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title field is required")
	}

	in, err := req.Intent.toIntent()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var opts []task.Option
	if req.Description != "" {
		opts = append(opts, task.WithDescription(req.Description))
	}
	if req.Priority != "" {
		opts = append(opts, task.WithPriority(task.Priority(req.Priority)))
	}
	if len(req.Tags) > 0 {
		opts = append(opts, task.WithTags(req.Tags...))
	}

	t, v, err := s.governor.Submit(c.Request().Context(), in, req.Title, opts...)
	if err != nil {
		s.logger.Error("submit failed", zap.String("intent_id", in.ID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "submit failed")
	}

	resp := SubmitResponse{IntentID: in.ID, Verdict: v, Task: t}
	if t == nil {
		// The verdict rejected the intent; nothing was created.
		return c.JSON(http.StatusOK, resp)
	}
	return c.JSON(http.StatusCreated, resp)
}

// handleGetTask returns one task by ID.
func (s *Server) handleGetTask(c echo.Context) error {
	t, err := s.governor.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		}
		s.logger.Error("get task failed", zap.String("task_id", c.Param("id")), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "get task failed")
	}
	return c.JSON(http.StatusOK, t)
}

// handleListTasks returns tasks, optionally filtered by state.
func (s *Server) handleListTasks(c echo.Context) error {
	filter := store.ListFilter{}
	if state := c.QueryParam("state"); state != "" {
		st := task.State(state)
		if !st.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown state %q", state))
		}
		filter.State = st
	}
	if limit := c.QueryParam("limit"); limit != "" {
		if _, err := fmt.Sscanf(limit, "%d", &filter.Limit); err != nil || filter.Limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
	}

	tasks, err := s.governor.ListTasks(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error("list tasks failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list tasks failed")
	}
	return c.JSON(http.StatusOK, ListTasksResponse{Tasks: tasks, Count: len(tasks)})
}

// handleTransition requests a task state change.
func (s *Server) handleTransition(c echo.Context) error {
	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	to := task.State(req.To)
	if !to.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown state %q", req.To))
	}

	t, err := s.governor.Transition(c.Request().Context(), c.Param("id"), to)
	if err != nil {
		var notAllowed *task.NotAllowedError
		switch {
		case errors.Is(err, store.ErrTaskNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		case errors.As(err, &notAllowed):
			return c.JSON(http.StatusConflict, TransitionError{
				Error: notAllowed.Error(),
				From:  string(notAllowed.From),
				To:    string(notAllowed.To),
			})
		default:
			s.logger.Error("transition failed", zap.String("task_id", c.Param("id")), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "transition failed")
		}
	}
	return c.JSON(http.StatusOK, t)
}

// handleRollback compensates a task's completed steps.
func (s *Server) handleRollback(c echo.Context) error {
	var req RollbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FromStep == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from_step field is required")
	}

	taskID := c.Param("id")
	err := s.governor.Rollback(c.Request().Context(), taskID, req.FromStep)
	if err != nil {
		var undoErr *saga.UndoFailedError
		switch {
		case errors.Is(err, store.ErrTaskNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "task not found")
		case errors.Is(err, saga.ErrStepNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "step not found")
		case errors.As(err, &undoErr):
			return c.JSON(http.StatusConflict, RollbackResponse{
				TaskID:   taskID,
				FromStep: req.FromStep,
				Aborted:  true,
				Error:    undoErr.Error(),
			})
		default:
			s.logger.Error("rollback failed", zap.String("task_id", taskID), zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "rollback failed")
		}
	}
	return c.JSON(http.StatusOK, RollbackResponse{TaskID: taskID, FromStep: req.FromStep})
}

// handlePlan returns the task's saga ledger summary.
func (s *Server) handlePlan(c echo.Context) error {
	summary, ok := s.governor.Plan(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no plan for task")
	}
	return c.JSON(http.StatusOK, summary)
}

// handleMetrics returns the accumulated decision counters.
func (s *Server) handleMetrics(c echo.Context) error {
	m := s.governor.Metrics()
	return c.JSON(http.StatusOK, MetricsResponse{
		Evaluated:     m.Evaluated(),
		Denied:        m.Denied(),
		HumanRequired: m.HumanRequired(),
		Deferred:      m.Deferred(),
		Modified:      m.Modified(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
