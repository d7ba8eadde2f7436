package handler // HTTP handlers for the hall-pass API

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/middleware"
	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/pass"
	"github.com/premierpass/premier-pass/internal/repository"
)

// requestTimeout bounds the store work of one request.
const requestTimeout = 5 * time.Second

// UserStore is the user persistence the handlers need.  Both
// repository.SQLStore and repository.MemoryStore satisfy it.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User, password string, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetStudent(ctx context.Context, id uint64) (model.User, error)
	FindStudents(ctx context.Context, f model.StudentFilter) ([]model.User, error)
	SetDashPass(ctx context.Context, id uint64, dashPass *string) error
}

// EventStore lists attendance history.
type EventStore interface {
	ListAttendanceEvents(ctx context.Context, f model.EventFilter) ([]model.AttendanceEvent, error)
}

// LogStore persists the audit log.
type LogStore interface {
	InsertLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error)
	ListLogs(ctx context.Context, f model.LogFilter) ([]model.LogEntry, error)
}

// getUserID extracts the user_id JWTAuth stored in the context.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		return t, nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

func getRole(c echo.Context) model.Role {
	r, _ := c.Get(middleware.CtxRole).(string)
	return model.Role(r)
}

// actingStudent resolves which student a request is about.  Students may
// only act for themselves; staff must name the student explicitly.
func actingStudent(c echo.Context, requested uint64) (uint64, error) {
	if getRole(c) != model.RoleStudent {
		return requested, nil
	}
	uid, err := getUserID(c)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if requested != 0 && requested != uid {
		return 0, echo.NewHTTPError(http.StatusForbidden, "students may only act for themselves")
	}
	return uid, nil
}

func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseUintQuery(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

func parseTimeQuery(c echo.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+", want RFC3339")
	}
	return &t, nil
}

// writeError maps domain errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var (
		httpErr *echo.HTTPError
		verr    *pass.ValidationError
	)
	switch {
	case errors.As(err, &httpErr):
		return c.JSON(httpErr.Code, echo.Map{"error": httpErr.Message})
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, pass.ErrPassInFlight), errors.Is(err, pass.ErrNotActive):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "store timeout"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
