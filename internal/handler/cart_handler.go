package handler

import (
	"errors"
	"net/http"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /store/add, /store/remove, /store/cart
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

func (h *CartHandler) RegisterRoutes(store *echo.Group, requireBuyer echo.MiddlewareFunc) {
	store.GET("/add/:id/", h.add, requireBuyer)
	store.GET("/remove/:id/", h.remove, requireBuyer)
	store.GET("/cart/", h.cart, requireBuyer)
}

func (h *CartHandler) add(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}
	bookID, ok := parseIDParam(c)
	if !ok {
		return c.Redirect(http.StatusFound, cartPath)
	}

	_, err := h.uc.AddToCart(c.Request().Context(), userID, bookID)
	return h.backToCart(c, err)
}

func (h *CartHandler) remove(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}
	bookID, ok := parseIDParam(c)
	if !ok {
		return c.Redirect(http.StatusFound, cartPath)
	}

	_, err := h.uc.RemoveFromCart(c.Request().Context(), userID, bookID)
	return h.backToCart(c, err)
}

func (h *CartHandler) cart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	out, err := h.uc.GetCartSummary(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 見つからない本・カート無しはカート画面に戻すだけ
func (h *CartHandler) backToCart(c echo.Context, err error) error {
	if err == nil || errors.Is(err, usecase.ErrBookNotFound) || errors.Is(err, usecase.ErrNoActiveCart) {
		return c.Redirect(http.StatusFound, cartPath)
	}
	return writeError(c, err)
}
