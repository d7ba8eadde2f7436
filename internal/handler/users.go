package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/pass"
	"github.com/premierpass/premier-pass/internal/utils"
)

// UserHandler manages student records for staff.
type UserHandler struct {
	Users      UserStore
	BcryptCost int
	Now        func() time.Time
}

type createStudentReq struct {
	Name      string  `json:"name"`
	ClassName string  `json:"class_name"`
	DashPass  *string `json:"dash_pass"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
}

type dashPassReq struct {
	DashPass *string `json:"dash_pass"`
}

// normalizeDashPass validates an optional "HH:MM" value.  Empty strings
// clear the dash pass.
func normalizeDashPass(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	tod, err := pass.ParseTimeOfDay(*raw)
	if err != nil {
		return nil, &pass.ValidationError{Field: "dash_pass", Reason: "must be HH:MM"}
	}
	s := tod.String()
	return &s, nil
}

// CreateStudent handles POST /v1/users/students.  The student gets a
// random three-character kiosk code.  Email and password are optional and
// let the student log in to request passes.
func (h *UserHandler) CreateStudent(c echo.Context) error {
	var req createStudentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return writeError(c, &pass.ValidationError{Field: "name", Reason: "is required"})
	}
	if (req.Email == "") != (req.Password == "") {
		return writeError(c, &pass.ValidationError{Field: "email", Reason: "email and password go together"})
	}
	dash, err := normalizeDashPass(req.DashPass)
	if err != nil {
		return writeError(c, err)
	}
	code, err := utils.RandomCode(3)
	if err != nil {
		return writeError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	u, err := h.Users.CreateUser(ctx, model.User{
		Name:      req.Name,
		Role:      model.RoleStudent,
		ClassName: strings.TrimSpace(req.ClassName),
		Code:      code,
		DashPass:  dash,
		Email:     req.Email,
		CreatedAt: h.now(),
	}, req.Password, h.BcryptCost)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// List handles GET /v1/users.  Query: role, dash_pass=true.
func (h *UserHandler) List(c echo.Context) error {
	f := model.StudentFilter{
		Role:        model.Role(strings.ToLower(strings.TrimSpace(c.QueryParam("role")))),
		HasDashPass: c.QueryParam("dash_pass") == "true",
	}
	if f.Role != "" && !f.Role.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	users, err := h.Users.FindStudents(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	if users == nil {
		users = []model.User{}
	}
	return c.JSON(http.StatusOK, users)
}

// SetDashPass handles PUT /v1/users/students/:id/dash-pass.  A null or
// empty dash_pass clears it.
func (h *UserHandler) SetDashPass(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req dashPassReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	dash, err := normalizeDashPass(req.DashPass)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Users.SetDashPass(ctx, id, dash); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "dash_pass": dash})
}

func (h *UserHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}
