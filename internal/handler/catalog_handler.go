package handler

import (
	"net/http"

	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /store のカタログとレビュー
type CatalogHandler struct {
	catalog *usecase.CatalogUsecase
	reviews *usecase.ReviewUsecase
}

// DI
func NewCatalogHandler(catalog *usecase.CatalogUsecase, reviews *usecase.ReviewUsecase) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, reviews: reviews}
}

type reviewRequest struct {
	Text string `json:"text" form:"text" validate:"required,max=5000"`
}

// storeはOptionalAuthJWT付きのグループ。reviewLimitはPOSTだけに掛ける。
func (h *CatalogHandler) RegisterRoutes(store *echo.Group, requireBuyer echo.MiddlewareFunc, reviewLimit echo.MiddlewareFunc) {
	store.GET("/", h.index)
	store.GET("/book/:id/", h.detail)
	store.POST("/book/:id/", h.submitReview, reviewLimit, requireBuyer)
}

func (h *CatalogHandler) index(c echo.Context) error {
	out, err := h.catalog.ListBooks(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) detail(c echo.Context) error {
	bookID, ok := parseIDParam(c)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "book not found"})
	}

	// 未ログインは0
	userID, _ := getUserIDFromContext(c)

	out, err := h.catalog.BookDetail(c.Request().Context(), userID, bookID, c.RealIP())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) submitReview(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	bookID, ok := parseIDParam(c)
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "book not found"})
	}

	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.reviews.SubmitReview(c.Request().Context(), userID, bookID, usecase.SubmitReviewInput{
		Text:     req.Text,
		RemoteIP: c.RealIP(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
