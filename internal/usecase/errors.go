package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//409 一意制約
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")

	ErrBookNotFound         = errors.New("book not found")
	ErrNoActiveCart         = errors.New("no active cart")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrUnsupportedProvider  = errors.New("unsupported payment provider")
	ErrPaymentInitiation    = errors.New("payment initiation failed")
	ErrCardDeclined         = errors.New("card declined")
	ErrProviderExecution    = errors.New("payment execution failed")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrCheckoutNotInitiated = errors.New("checkout not initiated")
	ErrMissingPaymentToken  = errors.New("payment token is required")
	ErrDuplicateReview      = errors.New("book already reviewed")
)

// HTTPErrorはhandlerがそのまま返せるエラー。
// Kindは上のsentinelで、errors.Isで判定できる。
type HTTPError struct {
	Status  int
	Message string
	Kind    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Kind
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func newKindError(kind error, status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kind,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func errUnauthorized() error {
	return newKindError(ErrUnauthorized, http.StatusUnauthorized, "unauthorized")
}

func errDB() error {
	return newKindError(ErrInternal, http.StatusInternalServerError, "db error")
}
