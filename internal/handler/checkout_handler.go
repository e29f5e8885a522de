package handler

import (
	"errors"
	"net/http"

	"bookstore/internal/payment"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

type checkoutRequest struct {
	StripeToken string `json:"stripeToken" form:"stripeToken"`
}

type processResponse struct {
	PaymentID   string              `json:"payment_id,omitempty"`
	PayerID     string              `json:"payer_id,omitempty"`
	Summary     usecase.CartSummary `json:"summary"`
	RedirectURL string              `json:"redirect_url"`
}

type completeResponse struct {
	Message string                 `json:"message"`
	Order   usecase.CompletedOrder `json:"order"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *CheckoutHandler) RegisterRoutes(store *echo.Group, requireBuyer echo.MiddlewareFunc, checkoutLimit echo.MiddlewareFunc) {
	store.POST("/checkout/:provider/", h.checkout, checkoutLimit, requireBuyer)
	store.GET("/process/:provider/", h.process, requireBuyer)
	store.GET("/complete/:provider/", h.complete, requireBuyer)
	store.POST("/complete/:provider/", h.complete, checkoutLimit, requireBuyer)
	store.GET("/cancel/paypal/", h.cancel, requireBuyer)
	store.GET("/order_error/", h.orderError, requireBuyer)
	store.GET("/orders/", h.orders, requireBuyer)
}

// paypal: 承認URLへ / stripe: 課金して確認画面へ
func (h *CheckoutHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	provider := c.Param("provider")
	out, err := h.uc.InitiateCheckout(c.Request().Context(), userID, usecase.InitiateCheckoutInput{
		Provider: provider,
		Token:    req.StripeToken,
	})
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrUnsupportedProvider):
		return c.Redirect(http.StatusFound, storeIndexPath)
	case errors.Is(err, usecase.ErrNoActiveCart), errors.Is(err, usecase.ErrEmptyCart):
		return c.Redirect(http.StatusFound, cartPath)
	case isPaymentFailure(err):
		return redirectOrderError(c, err)
	default:
		return writeError(c, err)
	}

	if out.Provider == payment.ProviderPayPal {
		return c.Redirect(http.StatusFound, out.RedirectURL)
	}
	return c.Redirect(http.StatusFound, "/store/process/stripe/")
}

// PayPalから戻った確認画面（v2ではtoken、旧APIではpaymentIdで届く）
func (h *CheckoutHandler) process(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	provider, ok := payment.ParseProvider(c.Param("provider"))
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}
	if provider == payment.ProviderStripe {
		return c.JSON(http.StatusOK, map[string]string{"redirect_url": "/store/complete/stripe/"})
	}

	paymentID := c.QueryParam("paymentId")
	if paymentID == "" {
		paymentID = c.QueryParam("token")
	}
	payerID := c.QueryParam("PayerID")

	out, err := h.uc.ReviewPayment(c.Request().Context(), userID, paymentID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, processResponse{
		PaymentID:   out.PaymentID,
		PayerID:     payerID,
		Summary:     out.Summary,
		RedirectURL: "/store/complete/paypal/?PayerID=" + payerID,
	})
}

func (h *CheckoutHandler) complete(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	payerID := c.QueryParam("PayerID")
	if payerID == "" {
		payerID = c.FormValue("PayerID")
	}

	out, err := h.uc.CompleteCheckout(c.Request().Context(), userID, usecase.CompleteCheckoutInput{
		Provider: c.Param("provider"),
		PayerID:  payerID,
	})
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrUnsupportedProvider):
		return c.Redirect(http.StatusFound, storeIndexPath)
	case errors.Is(err, usecase.ErrNoActiveCart):
		return c.Redirect(http.StatusFound, cartPath)
	case isPaymentFailure(err):
		return redirectOrderError(c, err)
	default:
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, completeResponse{Message: out.Message, Order: out})
}

// PayPalの承認画面でキャンセルされた
func (h *CheckoutHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	_, err := h.uc.CancelCheckout(c.Request().Context(), userID)
	if err != nil && !errors.Is(err, usecase.ErrNoActiveCart) {
		return writeError(c, err)
	}
	return c.Redirect(http.StatusFound, cartPath)
}

func (h *CheckoutHandler) orderError(c echo.Context) error {
	msg := c.QueryParam("message")
	if msg == "" {
		msg = "There was a problem with your order."
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msg})
}

func (h *CheckoutHandler) orders(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, storeIndexPath)
	}

	out, err := h.uc.ListOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func isPaymentFailure(err error) bool {
	return errors.Is(err, usecase.ErrCardDeclined) ||
		errors.Is(err, usecase.ErrPaymentInitiation) ||
		errors.Is(err, usecase.ErrProviderExecution) ||
		errors.Is(err, usecase.ErrMissingPaymentToken)
}
