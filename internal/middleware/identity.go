package middleware

import "github.com/labstack/echo/v4"

// Context keys populated by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated guardian id, or "" when the request
// carries no verified token.
func UserID(c echo.Context) string {
	s, _ := c.Get(ctxUserID).(string)
	return s
}

// Role returns the role claim of the verified token.
func Role(c echo.Context) string {
	s, _ := c.Get(ctxRole).(string)
	return s
}
