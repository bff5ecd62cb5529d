// Package api contains the HTTP handlers for the form pipeline service.
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"formpipe/backend/internal/repository"
	"formpipe/backend/internal/services"
	"formpipe/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Repo        repository.Repository
	Submissions *services.SubmissionService
}

// NewServer creates a new Server.
func NewServer(repo repository.Repository, submissions *services.SubmissionService) *Server {
	return &Server{Repo: repo, Submissions: submissions}
}

// RegisterRoutes mounts the authenticated dashboard API on the group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.GET("/forms", s.ListForms)
	g.POST("/forms", s.CreateForm)
	g.GET("/forms/:id", s.GetForm)
	g.PUT("/forms/:id", s.UpdateForm)
	g.DELETE("/forms/:id", s.DeleteForm)

	g.GET("/forms/:id/pipeline", s.GetPipeline)
	g.PUT("/forms/:id/pipeline", s.PutPipeline)
	g.DELETE("/forms/:id/pipeline", s.DeletePipeline)

	g.GET("/forms/:id/submissions", s.ListSubmissions)
	g.GET("/submissions/:id", s.GetSubmission)
	g.DELETE("/submissions/:id", s.DeleteSubmission)
	g.POST("/submissions/:id/rerun", s.RerunSubmission)
}

// RegisterPublicRoutes mounts the unauthenticated submission endpoints.
func (s *Server) RegisterPublicRoutes(e *echo.Echo) {
	e.GET("/f/:publicId", s.PublicGetForm)
	e.POST("/f/:publicId", s.PublicSubmit)
}

// HandleHealth returns basic health status
// (GET /health)
func (s *Server) HandleHealth(c echo.Context) error {
	if err := s.Repo.Ping(c.Request().Context()); err != nil {
		return problem(c, http.StatusServiceUnavailable, "Unhealthy", "database unreachable")
	}
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Service:   "formpipe",
		Version:   "1.0.0",
		Timestamp: time.Now(),
	})
}

// problem writes an RFC 7807 Problem Details JSON error response.
func problem(c echo.Context, status int, title, detail string) error {
	p := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, p)
}

// userID returns the authenticated user's id injected by the auth middleware.
func userID(c echo.Context) (string, bool) {
	id, ok := c.Request().Context().Value("user_id").(string)
	return id, ok && id != ""
}
