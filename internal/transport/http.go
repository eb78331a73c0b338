package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codexlab/codexcore/internal/command"
	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// HTTPServer exposes the command registry for agent discovery and run
// tracking: GET /agents, GET /agents/:name, POST /runs, GET /runs/:id,
// GET /runs/:id/events.
type HTTPServer struct {
	e        *echo.Echo
	registry *command.Registry
	cc       *command.Context
	runs     *runStore
}

func NewHTTPServer(registry *command.Registry, cc *command.Context) *HTTPServer {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())

	s := &HTTPServer{
		e:        e,
		registry: registry,
		cc:       cc,
		runs:     newRunStore(),
	}

	// List every registered command, treating each as an addressable agent.
	e.GET("/agents", s.listAgents)
	// Describe a single agent by its verb name.
	e.GET("/agents/:name", s.getAgent)
	// Start a run: parse and execute an invocation against its agent.
	e.POST("/runs", s.createRun)
	// Fetch a run's current record.
	e.GET("/runs/:id", s.getRun)
	// Fetch a run's recorded lifecycle events.
	e.GET("/runs/:id/events", s.getRunEvents)

	return s
}

func (s *HTTPServer) Handler() http.Handler { return s.e }

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := http.Server{Handler: s.e}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *HTTPServer) listAgents(c echo.Context) error {
	names := s.registry.Names()
	summaries := make([]AgentSummary, 0, len(names))
	for _, name := range names {
		summary := AgentSummary{Name: name}
		if descriptor, ok := s.registry.Describe(name); ok {
			summary.Summary = descriptor.Summary
		}
		summaries = append(summaries, summary)
	}
	return c.JSON(http.StatusOK, summaries)
}

func (s *HTTPServer) getAgent(c echo.Context) error {
	name := c.Param("name")
	descriptor, ok := s.registry.Describe(name)
	if !ok {
		found := false
		for _, n := range s.registry.Names() {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
		}
	}
	return c.JSON(http.StatusOK, AgentSummary{Name: name, Summary: descriptor.Summary})
}

func (s *HTTPServer) createRun(c echo.Context) error {
	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	invocation, err := command.ParseInvocation(req.Invocation)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.Agent != "" && req.Agent != invocation.Verb {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "agent does not match invocation verb",
			"code":  cxerrors.CodeAgentMismatch,
		})
	}

	run := s.runs.new(invocation.Verb, invocation.Args)
	run.CreatedAt = time.Now()
	s.runs.recordEvent(run, RunEvent{Status: RunQueued, Timestamp: run.CreatedAt})

	run.Status = RunRunning
	s.runs.recordEvent(run, RunEvent{Status: RunRunning, Timestamp: time.Now()})

	result, err := s.registry.Run(c.Request().Context(), s.cc, invocation.Verb, invocation.Args)
	if err != nil {
		run.Status = RunFailed
		run.Error = runErrorFor(err)
		s.runs.recordEvent(run, RunEvent{Status: RunFailed, Timestamp: time.Now(), Detail: err.Error()})
		return c.JSON(http.StatusOK, run)
	}

	run.Status = RunCompleted
	run.Kind = string(result.Kind)
	run.Text = result.Text
	run.JSON = result.JSON
	s.runs.recordEvent(run, RunEvent{Status: RunCompleted, Timestamp: time.Now()})

	return c.JSON(http.StatusOK, run)
}

// runErrorFor maps a handler failure to the wire error attached to the run.
func runErrorFor(err error) *RunError {
	code := cxerrors.CodeOf(err)
	if code == "" {
		return &RunError{Code: "internal_error", Message: err.Error()}
	}
	return &RunError{Code: string(code), Message: err.Error()}
}

func (s *HTTPServer) getRun(c echo.Context) error {
	run, ok := s.runs.get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run)
}

func (s *HTTPServer) getRunEvents(c echo.Context) error {
	run, ok := s.runs.get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run.Events)
}
