package router // package router registers the HTTP routes of the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/handler"
	"github.com/premierpass/premier-pass/internal/middleware"
	"github.com/premierpass/premier-pass/internal/model"
)

// Handlers groups everything the router wires.  Metrics may be nil, in
// which case /metrics is not registered.
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	Passes     *handler.PassHandler
	Attendance *handler.AttendanceHandler
	Users      *handler.UserHandler
	Logs       *handler.LogHandler
	Metrics    http.Handler
}

var (
	anyRole   = []model.Role{model.RoleStudent, model.RoleTeacher, model.RoleAdmin}
	staffOnly = []model.Role{model.RoleTeacher, model.RoleAdmin}
)

// RegisterRoutes registers routes that do not require authentication:
// liveness, readiness and metrics.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	if h.Health != nil {
		e.GET("/health", h.Health.Status)
	}
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}
}

// RegisterAPI registers login and every protected /v1 route.  limiter
// wraps the mutating routes; pass nil to disable rate limiting.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.POST("/v1/auth/login", h.Auth.Login, limiter)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(anyRole...))
	v1.GET("/me", h.Auth.Me)

	v1.GET("/passes", h.Passes.List)
	v1.GET("/passes/types", h.Passes.Policies)
	v1.POST("/passes", h.Passes.Request, limiter)
	v1.POST("/passes/:id/complete", h.Passes.Complete, limiter)

	v1.POST("/attendance/sign-in", h.Attendance.SignIn, limiter)
	v1.POST("/attendance/sign-out", h.Attendance.SignOut, limiter)
	v1.GET("/attendance/events", h.Attendance.Events)
	v1.POST("/logs", h.Logs.Create, limiter)

	staff := v1.Group("", middleware.RequireRole(staffOnly...))
	staff.GET("/attendance/export", h.Attendance.Export)
	staff.GET("/logs", h.Logs.List)
	staff.GET("/users", h.Users.List)
	staff.POST("/users/students", h.Users.CreateStudent, limiter)
	staff.PUT("/users/students/:id/dash-pass", h.Users.SetDashPass, limiter)
}
