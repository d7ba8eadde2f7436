package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/export"
	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/pass"
)

// AttendanceHandler records manual sign-ins and sign-outs and serves the
// attendance log.
type AttendanceHandler struct {
	Engine   *pass.Engine
	Log      EventStore
	Users    UserStore
	Location *time.Location
}

type attendanceReq struct {
	StudentID uint64 `json:"student_id"`
}

// SignIn handles POST /v1/attendance/sign-in.
func (h *AttendanceHandler) SignIn(c echo.Context) error {
	return h.record(c, model.ActionSignIn)
}

// SignOut handles POST /v1/attendance/sign-out.
func (h *AttendanceHandler) SignOut(c echo.Context) error {
	return h.record(c, model.ActionSignOut)
}

func (h *AttendanceHandler) record(c echo.Context, action model.AttendanceAction) error {
	var req attendanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	studentID, err := actingStudent(c, req.StudentID)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	ev, err := h.Engine.RecordAttendance(ctx, studentID, action)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h *AttendanceHandler) eventFilter(c echo.Context) (model.EventFilter, error) {
	var f model.EventFilter
	studentID, err := parseUintQuery(c, "student_id")
	if err != nil {
		return f, err
	}
	if f.StudentID, err = actingStudent(c, studentID); err != nil {
		return f, err
	}
	if f.Since, err = parseTimeQuery(c, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeQuery(c, "until"); err != nil {
		return f, err
	}
	limit, err := parseUintQuery(c, "limit")
	if err != nil {
		return f, err
	}
	f.Limit = int(limit)
	return f, nil
}

// Events handles GET /v1/attendance/events, newest first.  Query:
// student_id, since, until (RFC3339), limit.
func (h *AttendanceHandler) Events(c echo.Context) error {
	f, err := h.eventFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	events, err := h.Log.ListAttendanceEvents(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []model.AttendanceEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// Export handles GET /v1/attendance/export.  It accepts the same filter as
// Events and returns an xlsx workbook with the matching events and every
// pass.
func (h *AttendanceHandler) Export(c echo.Context) error {
	f, err := h.eventFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 4*requestTimeout)
	defer cancel()

	events, err := h.Log.ListAttendanceEvents(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	passes, err := h.Engine.ListPasses(ctx, model.PassFilter{StudentID: f.StudentID})
	if err != nil {
		return writeError(c, err)
	}
	users, err := h.Users.FindStudents(ctx, model.StudentFilter{})
	if err != nil {
		return writeError(c, err)
	}
	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, export.Data{Events: events, Passes: passes, Names: names, Location: h.Location}); err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", export.Filename(h.Engine.Now().In(h.location()))))
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *AttendanceHandler) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}
