package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"formpipe/backend/internal/repository"
	"formpipe/backend/pkg/models"
)

// ListForms returns the authenticated user's forms
// (GET /api/v1/forms)
func (s *Server) ListForms(c echo.Context) error {
	ctx := c.Request().Context()

	uid, ok := userID(c)
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "user not found in context")
	}

	forms, err := s.Repo.ListForms(ctx, uid)
	if err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if forms == nil {
		forms = []*models.Form{}
	}
	return c.JSON(http.StatusOK, forms)
}

// CreateForm creates a new form for the authenticated user
// (POST /api/v1/forms)
func (s *Server) CreateForm(c echo.Context) error {
	ctx := c.Request().Context()

	uid, ok := userID(c)
	if !ok {
		return problem(c, http.StatusUnauthorized, "Unauthorized", "user not found in context")
	}

	var form models.Form
	if err := c.Bind(&form); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if err := validateForm(&form); err != nil {
		return problem(c, http.StatusUnprocessableEntity, "Invalid Form", err.Error())
	}

	now := time.Now().UTC()
	form.ID = uuid.New().String()
	form.UserID = uid
	form.PublicID = newPublicID()
	form.SubmissionCount = 0
	form.CreatedAt = now
	form.UpdatedAt = now

	if err := s.Repo.CreateForm(ctx, &form); err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", "failed to save form: "+err.Error())
	}
	return c.JSON(http.StatusCreated, form)
}

// GetForm returns one of the authenticated user's forms
// (GET /api/v1/forms/:id)
func (s *Server) GetForm(c echo.Context) error {
	form, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, form)
}

// UpdateForm updates a form's definition
// (PUT /api/v1/forms/:id)
func (s *Server) UpdateForm(c echo.Context) error {
	ctx := c.Request().Context()

	existing, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}

	var form models.Form
	if err := c.Bind(&form); err != nil {
		return problem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if err := validateForm(&form); err != nil {
		return problem(c, http.StatusUnprocessableEntity, "Invalid Form", err.Error())
	}

	// Identity and counters are server-owned.
	form.ID = existing.ID
	form.UserID = existing.UserID
	form.PublicID = existing.PublicID
	form.SubmissionCount = existing.SubmissionCount
	form.CreatedAt = existing.CreatedAt
	form.UpdatedAt = time.Now().UTC()

	if err := s.Repo.UpdateForm(ctx, &form); err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", "failed to save form: "+err.Error())
	}
	return c.JSON(http.StatusOK, form)
}

// DeleteForm deletes a form along with its pipeline and submissions
// (DELETE /api/v1/forms/:id)
func (s *Server) DeleteForm(c echo.Context) error {
	ctx := c.Request().Context()

	form, err := s.ownedForm(c, c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteForm(ctx, form.ID); err != nil {
		return problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ownedForm loads a form and verifies it belongs to the authenticated user.
// Forms owned by someone else read as not found.
func (s *Server) ownedForm(c echo.Context, id string) (*models.Form, error) {
	uid, ok := userID(c)
	if !ok {
		return nil, problem(c, http.StatusUnauthorized, "Unauthorized", "user not found in context")
	}

	form, err := s.Repo.GetForm(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, problem(c, http.StatusNotFound, "Not Found", "form not found")
	}
	if err != nil {
		return nil, problem(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
	}
	if form.UserID != uid {
		return nil, problem(c, http.StatusNotFound, "Not Found", "form not found")
	}
	return form, nil
}

func validateForm(form *models.Form) error {
	if strings.TrimSpace(form.Name) == "" {
		return fmt.Errorf("form name is required")
	}
	seen := make(map[string]bool, len(form.Fields))
	for _, f := range form.Fields {
		if strings.TrimSpace(f.ID) == "" {
			return fmt.Errorf("every field needs an id")
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate field id %q", f.ID)
		}
		seen[f.ID] = true
		if !f.Type.Valid() {
			return fmt.Errorf("field %q has unknown type %q", f.ID, f.Type)
		}
		if strings.TrimSpace(f.Label) == "" {
			return fmt.Errorf("field %q needs a label", f.ID)
		}
		if f.Type.HasOptions() && len(f.Options) == 0 {
			return fmt.Errorf("field %q needs at least one option", f.ID)
		}
	}
	return nil
}

// newPublicID produces the short identifier used in public form URLs.
func newPublicID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
