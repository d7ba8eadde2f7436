package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/pass"
)

const maxLogAction = 64

// LogHandler serves the audit log.
type LogHandler struct {
	Logs LogStore
	Now  func() time.Time
}

type logReq struct {
	UserID  uint64 `json:"user_id"`
	Action  string `json:"action"`
	Details string `json:"details"`
}

// Create handles POST /v1/logs.  user_id defaults to the caller; students
// may only write entries about themselves.
func (h *LogHandler) Create(c echo.Context) error {
	var req logReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Action = strings.TrimSpace(req.Action)
	if req.Action == "" {
		return writeError(c, &pass.ValidationError{Field: "action", Reason: "is required"})
	}
	if len(req.Action) > maxLogAction {
		return writeError(c, &pass.ValidationError{Field: "action", Reason: "is too long"})
	}

	userID, err := actingStudent(c, req.UserID)
	if err != nil {
		return writeError(c, err)
	}
	if userID == 0 {
		if userID, err = getUserID(c); err != nil {
			return writeError(c, echo.ErrUnauthorized)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	entry, err := h.Logs.InsertLog(ctx, model.LogEntry{
		UserID:    userID,
		Action:    req.Action,
		Details:   req.Details,
		Timestamp: h.now(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// List handles GET /v1/logs, newest first.  Query: user_id, action, limit.
func (h *LogHandler) List(c echo.Context) error {
	var f model.LogFilter
	var err error
	if f.UserID, err = parseUintQuery(c, "user_id"); err != nil {
		return writeError(c, err)
	}
	f.Action = strings.TrimSpace(c.QueryParam("action"))
	limit, err := parseUintQuery(c, "limit")
	if err != nil {
		return writeError(c, err)
	}
	f.Limit = int(limit)

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	entries, err := h.Logs.ListLogs(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *LogHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}
