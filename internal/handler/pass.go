package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/pass"
)

// PassHandler exposes pass admission and completion.
type PassHandler struct {
	Engine *pass.Engine
}

func NewPassHandler(engine *pass.Engine) *PassHandler {
	if engine == nil {
		panic("nil engine passed to NewPassHandler")
	}
	return &PassHandler{Engine: engine}
}

type passReq struct {
	StudentID uint64 `json:"student_id"`
	Type      string `json:"type"`
}

// Request handles POST /v1/passes.  Students request for themselves;
// staff name the student.  201 with the pass, active or queued.
func (h *PassHandler) Request(c echo.Context) error {
	var req passReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	studentID, err := actingStudent(c, req.StudentID)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	p, err := h.Engine.RequestPass(ctx, studentID, req.Type)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// List handles GET /v1/passes.  Query: type, status (comma separated),
// student_id, limit.  Without status it lists in-flight passes.
func (h *PassHandler) List(c echo.Context) error {
	studentID, err := parseUintQuery(c, "student_id")
	if err != nil {
		return writeError(c, err)
	}
	if studentID, err = actingStudent(c, studentID); err != nil {
		return writeError(c, err)
	}
	limit, err := parseUintQuery(c, "limit")
	if err != nil {
		return writeError(c, err)
	}
	f := model.PassFilter{
		Type:      pass.NormalizeType(c.QueryParam("type")),
		StudentID: studentID,
		Statuses:  model.InFlightStatuses,
		Limit:     int(limit),
	}
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		f.Statuses = nil
		for _, s := range strings.Split(raw, ",") {
			st := model.PassStatus(strings.ToLower(strings.TrimSpace(s)))
			if !st.Valid() {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status " + s})
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	passes, err := h.Engine.ListPasses(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	if passes == nil {
		passes = []model.Pass{}
	}
	return c.JSON(http.StatusOK, passes)
}

// Complete handles POST /v1/passes/:id/complete.  A student may only
// complete their own pass.
func (h *PassHandler) Complete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if getRole(c) == model.RoleStudent {
		p, err := h.Engine.Pass(ctx, id)
		if err != nil {
			return writeError(c, err)
		}
		if _, err := actingStudent(c, p.StudentID); err != nil {
			return writeError(c, err)
		}
	}
	p, err := h.Engine.CompletePass(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Policies handles GET /v1/passes/types.
func (h *PassHandler) Policies(c echo.Context) error {
	pol := h.Engine.Policies()
	out := make([]echo.Map, 0, len(pol.Types()))
	for _, t := range pol.Types() {
		p, _ := pol.Lookup(t)
		out = append(out, echo.Map{
			"type":           t,
			"capacity":       p.Capacity,
			"budget_minutes": int(p.Budget.Minutes()),
		})
	}
	return c.JSON(http.StatusOK, out)
}
