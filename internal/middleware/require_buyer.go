package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// 未ログインならストアのトップへ戻す
func RequireBuyer(redirectTo string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return c.Redirect(http.StatusFound, redirectTo)
			}
			return next(c)
		}
	}
}
