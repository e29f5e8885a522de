package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"bookstore/internal/middleware"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	storeIndexPath = "/store/"
	cartPath       = "/store/cart/"
	orderErrorPath = "/store/order_error/"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// 決済の失敗はエラーページへ（メッセージはクエリで渡す）
func redirectOrderError(c echo.Context, err error) error {
	msg := "There was a problem with your order."
	if he, ok := usecase.AsHTTPError(err); ok {
		msg = he.Message
	}
	return c.Redirect(http.StatusFound, orderErrorPath+"?message="+url.QueryEscape(msg))
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	id, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIDParam(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
