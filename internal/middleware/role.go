package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/premierpass/premier-pass/internal/model"
)

// RequireRole rejects requests whose JWT role is not one of roles.  A role
// that is missing or not a known model.Role is treated as unauthenticated.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, _ := c.Get(CtxRole).(string)
			role := model.Role(raw)
			if !role.Valid() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "role": raw})
			}
			return next(c)
		}
	}
}
