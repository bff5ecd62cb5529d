package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"formpipe/backend/internal/repository"
	"formpipe/backend/internal/services"
	"formpipe/backend/pkg/models"
)

// submissionDetail is a submission plus the outputs its pipeline produced.
type submissionDetail struct {
	*models.Submission
	StepOutputs []*models.StepOutput `json:"step_outputs"`
}

// ListSubmissions returns a form's submissions, newest first
// (GET /api/v1/forms/:id/submissions)
func (s *Server) ListSubmissions(c echo.Context) error {
	form, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}

	subs, err := s.Repo.ListSubmissionsByForm(c.Request().Context(), form.ID)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	return c.JSON(http.StatusOK, subs)
}

// GetSubmission returns a submission with its step outputs
// (GET /api/v1/submissions/:id)
func (s *Server) GetSubmission(c echo.Context) error {
	ctx := c.Request().Context()

	sub, err := s.ownedSubmission(c, c.Param("id"))
	if err != nil {
		return err
	}

	outputs, err := s.Repo.ListStepOutputs(ctx, sub.ID)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if outputs == nil {
		outputs = []*models.StepOutput{}
	}
	return c.JSON(http.StatusOK, submissionDetail{Submission: sub, StepOutputs: outputs})
}

// DeleteSubmission removes a submission and its step outputs
// (DELETE /api/v1/submissions/:id)
func (s *Server) DeleteSubmission(c echo.Context) error {
	sub, err := s.ownedSubmission(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteSubmission(c.Request().Context(), sub.ID); err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// RerunSubmission starts a fresh pipeline run for a submission. The run
// always starts over from step 1; previous outputs are discarded.
// (POST /api/v1/submissions/:id/rerun)
func (s *Server) RerunSubmission(c echo.Context) error {
	sub, err := s.ownedSubmission(c, c.Param("id"))
	if err != nil {
		return err
	}

	if err := s.Submissions.Rerun(c.Request().Context(), sub.ID); err != nil {
		if errors.Is(err, repository.ErrRunInProgress) {
			return problem(c, http.StatusConflict, "Run In Progress", "a run is already in progress for this submission")
		}
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"id":     sub.ID,
		"status": string(models.SubmissionStatusProcessing),
	})
}

// ownedSubmission loads a submission and verifies the authenticated user
// owns its form.
func (s *Server) ownedSubmission(c echo.Context, id string) (*models.Submission, error) {
	uid, ok := userID(c)
	if !ok {
		return nil, problem(c, http.StatusUnauthorized, "Unauthorized", "user not found in context")
	}

	ctx := c.Request().Context()
	sub, err := s.Repo.GetSubmission(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, problem(c, http.StatusNotFound, "Not Found", "submission not found")
	}
	if err != nil {
		return nil, problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}

	form, err := s.Repo.GetForm(ctx, sub.FormID)
	if err != nil {
		return nil, problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if form.UserID != uid {
		return nil, problem(c, http.StatusNotFound, "Not Found", "submission not found")
	}
	return sub, nil
}

// publicForm is the sanitized shape served on the public endpoint.
type publicForm struct {
	PublicID    string             `json:"public_id"`
	Name        string             `json:"name"`
	Description *string            `json:"description,omitempty"`
	Fields      []models.FormField `json:"fields"`
}

// PublicGetForm serves a form definition for rendering, without owner or
// counter details
// (GET /f/:publicId)
func (s *Server) PublicGetForm(c echo.Context) error {
	form, err := s.Repo.GetFormByPublicID(c.Request().Context(), c.Param("publicId"))
	if errors.Is(err, repository.ErrNotFound) {
		return problem(c, http.StatusNotFound, "Not Found", "form not found")
	}
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if !form.IsActive {
		return problem(c, http.StatusNotFound, "Not Found", "form not found")
	}
	return c.JSON(http.StatusOK, publicForm{
		PublicID:    form.PublicID,
		Name:        form.Name,
		Description: form.Description,
		Fields:      form.Fields,
	})
}

// PublicSubmit accepts a submission for a form and queues its pipeline run
// (POST /f/:publicId)
func (s *Server) PublicSubmit(c echo.Context) error {
	var data map[string]models.FieldValue
	if err := c.Bind(&data); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}

	var ip, ua *string
	if v := c.RealIP(); v != "" {
		ip = &v
	}
	if v := c.Request().UserAgent(); v != "" {
		ua = &v
	}

	sub, err := s.Submissions.Submit(c.Request().Context(), c.Param("publicId"), data, ip, ua)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			return problem(c, http.StatusUnprocessableEntity, "Invalid Submission", verr.Error())
		case errors.Is(err, services.ErrFormInactive), errors.Is(err, repository.ErrNotFound):
			return problem(c, http.StatusNotFound, "Not Found", "form not found")
		default:
			return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"id":     sub.ID,
		"status": string(sub.Status),
	})
}
