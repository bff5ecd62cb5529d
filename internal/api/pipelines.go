package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"formpipe/backend/internal/pipeline"
	"formpipe/backend/internal/repository"
	"formpipe/backend/pkg/models"
)

// GetPipeline returns the pipeline configured for a form
// (GET /api/v1/forms/:id/pipeline)
func (s *Server) GetPipeline(c echo.Context) error {
	form, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}

	pl, err := s.Repo.GetPipelineByFormID(c.Request().Context(), form.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Not Found", "form has no pipeline")
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusOK, pl)
}

// PutPipeline creates or replaces the pipeline for a form. The step list is
// validated before it is saved: numbering must run 1..N without gaps and
// prompts may only reference the outputs of earlier steps.
// (PUT /api/v1/forms/:id/pipeline)
func (s *Server) PutPipeline(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}

	var pl models.Pipeline
	if err := c.Bind(&pl); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}

	if err := pipeline.ValidatePipeline(pl.Steps); err != nil {
		return problem(c, http.StatusUnprocessableEntity, "Invalid Pipeline", err.Error())
	}

	now := time.Now().UTC()
	pl.ID = uuid.New().String()
	pl.FormID = form.ID
	pl.CreatedAt = now
	pl.UpdatedAt = now

	if err := s.Repo.UpsertPipeline(ctx, &pl); err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", "failed to save pipeline: "+err.Error())
	}
	return c.JSON(http.StatusOK, pl)
}

// DeletePipeline removes a form's pipeline; future submissions will complete
// without processing
// (DELETE /api/v1/forms/:id/pipeline)
func (s *Server) DeletePipeline(c echo.Context) error {
	form, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.Repo.DeletePipeline(c.Request().Context(), form.ID); err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
