package middleware

import (
	"bookstore/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWTのtvとDBのtoken_versionが一致するか確認。
// 一致しない（または停止ユーザー）なら匿名扱いに落とす。
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//AuthJWTが入れたuser_id を取得する
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return next(c)
			}

			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok {
				clearUser(c)
				return next(c)
			}

			//DBから最新のuserを取得する
			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil || !user.IsActive || user.TokenVersion != tv {
				clearUser(c)
			}

			return next(c)
		}
	}
}

func clearUser(c echo.Context) {
	c.Set(CtxUserIDKey, nil)
	c.Set(CtxTokenVersionKey, nil)
}
