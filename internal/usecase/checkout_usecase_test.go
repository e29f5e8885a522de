package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"bookstore/internal/domain/model"
	"bookstore/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedCart(t *testing.T, e *env, price string, qty int) (model.User, model.Book, CartSummary) {
	t.Helper()
	buyer := e.db.addUser("alice", "alice@example.com")
	book := e.db.addBook("Rebecca", price)
	var s CartSummary
	var err error
	for i := 0; i < qty; i++ {
		s, err = e.cart.AddToCart(context.Background(), buyer.ID, book.ID)
		require.NoError(t, err)
	}
	return buyer, book, s
}

func approvedPayment(id string) payment.PayPalPayment {
	return payment.PayPalPayment{
		ID:     id,
		Status: "CREATED",
		Links: []payment.Link{
			{Href: "https://api.sandbox.paypal.com/v2/checkout/orders/" + id, Rel: "self", Method: "GET"},
			{Href: "https://www.sandbox.paypal.com/checkoutnow?token=" + id, Rel: "approve", Method: "GET"},
		},
	}
}

func TestCheckout_StripeFlow(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, s := seedCart(t, e, "19.99", 3)

	cartID := strconv.FormatInt(s.CartID, 10)
	e.stripe.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.Amount == 5997 &&
			req.Currency == "USD" &&
			req.Token == "pm_card_visa" &&
			req.Metadata["order_id"] == cartID &&
			req.IdempotencyKey == "cart-"+cartID+"-pm_card_visa"
	})).Return(payment.Charge{ID: "pi_123", Status: "succeeded"}, nil).Once()

	res, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "stripe", Token: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", res.PaymentID)
	assert.Equal(t, "59.97", res.Summary.Total.StringFixed(2))

	c := e.db.cart(s.CartID)
	assert.Equal(t, model.CartStatusPaymentInitiated, c.Status)
	assert.True(t, c.Active)
	require.NotNil(t, c.PaymentID)
	assert.Equal(t, "pi_123", *c.PaymentID)

	// 二重送信は同じ決済を返す
	again, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "stripe", Token: "pm_card_visa"})
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, "pi_123", again.PaymentID)

	done, err := e.checkout.CompleteCheckout(ctx, buyer.ID, CompleteCheckoutInput{Provider: "stripe"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentTypeStripe, done.PaymentType)
	assert.Equal(t, "Success! Your order has been completed and is being processed. Payment ID: pi_123", done.Message)

	c = e.db.cart(s.CartID)
	assert.False(t, c.Active)
	assert.Equal(t, model.CartStatusCompleted, c.Status)
	require.NotNil(t, c.PaymentType)
	assert.Equal(t, model.PaymentTypeStripe, *c.PaymentType)
	require.NotNil(t, c.OrderDate)
	assert.Equal(t, e.now, *c.OrderDate)

	e.stripe.AssertExpectations(t)
}

func TestCheckout_StripeCardDeclined(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, s := seedCart(t, e, "10.00", 1)

	e.stripe.On("Charge", mock.Anything, mock.Anything).
		Return(payment.Charge{}, &payment.CardError{Code: "card_declined", Message: "Your card was declined."})

	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "stripe", Token: "tok_chargeDeclined"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCardDeclined)
	he, _ := AsHTTPError(err)
	assert.Equal(t, MsgStripeFailed, he.Message)

	c := e.db.cart(s.CartID)
	assert.Equal(t, model.CartStatusActive, c.Status)
	assert.Nil(t, c.PaymentID)
}

func TestCheckout_StripeProviderError(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, s := seedCart(t, e, "10.00", 1)

	e.stripe.On("Charge", mock.Anything, mock.Anything).
		Return(payment.Charge{}, &payment.ProviderError{Provider: payment.ProviderStripe, Message: "timeout", Err: errors.New("dial tcp")})

	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "stripe", Token: "tok"})
	assert.ErrorIs(t, err, ErrPaymentInitiation)
	assert.Equal(t, model.CartStatusActive, e.db.cart(s.CartID).Status)
}

func TestCheckout_StripeRequiresToken(t *testing.T) {
	e := newEnv()
	buyer, _, _ := seedCart(t, e, "10.00", 1)

	_, err := e.checkout.InitiateCheckout(context.Background(), buyer.ID, InitiateCheckoutInput{Provider: "stripe"})
	assert.ErrorIs(t, err, ErrMissingPaymentToken)
	e.stripe.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestCheckout_PayPalFlow(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, book, s := seedCart(t, e, "19.99", 2)

	e.paypal.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req payment.PayPalPaymentRequest) bool {
		return len(req.Items) == 1 &&
			req.Items[0].SKU == strconv.FormatInt(book.ID, 10) &&
			req.Items[0].Quantity == 2 &&
			req.Items[0].UnitPrice.StringFixed(2) == "19.99" &&
			req.Total.StringFixed(2) == "39.98" &&
			req.ReturnURL == "http://localhost:8080/store/process/paypal/"
	})).Return(approvedPayment("ORDER-1"), nil).Once()

	res, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	require.NoError(t, err)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=ORDER-1", res.RedirectURL)
	assert.Equal(t, book.ID, res.Summary.Items[0].BookID)

	// 二回目は新しいPayPal決済を作らない
	again, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, res.RedirectURL, again.RedirectURL)
	e.paypal.AssertNumberOfCalls(t, "CreatePayment", 1)

	review, err := e.checkout.ReviewPayment(ctx, buyer.ID, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "39.98", review.Summary.Total.StringFixed(2))

	found := approvedPayment("ORDER-1")
	found.PayerID = "PAYER-9"
	e.paypal.On("FindPayment", mock.Anything, "ORDER-1").Return(found, nil).Once()
	e.paypal.On("ExecutePayment", mock.Anything, found, "PAYER-9").Return(nil).Once()

	done, err := e.checkout.CompleteCheckout(ctx, buyer.ID, CompleteCheckoutInput{Provider: "paypal", PayerID: "PAYER-9"})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", done.PaymentID)

	c := e.db.cart(s.CartID)
	assert.False(t, c.Active)
	require.NotNil(t, c.PaymentType)
	assert.Equal(t, model.PaymentTypePayPal, *c.PaymentType)
	require.NotNil(t, c.OrderDate)

	e.paypal.AssertExpectations(t)
}

func TestCheckout_PayPalExecuteFailureKeepsInitiated(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, s := seedCart(t, e, "5.00", 1)

	e.paypal.On("CreatePayment", mock.Anything, mock.Anything).Return(approvedPayment("ORDER-2"), nil)
	e.paypal.On("FindPayment", mock.Anything, "ORDER-2").Return(approvedPayment("ORDER-2"), nil)
	e.paypal.On("ExecutePayment", mock.Anything, mock.Anything, "PAYER-1").
		Return(&payment.ProviderError{Provider: payment.ProviderPayPal, Message: "INSTRUMENT_DECLINED"})

	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	require.NoError(t, err)

	_, err = e.checkout.CompleteCheckout(ctx, buyer.ID, CompleteCheckoutInput{Provider: "paypal", PayerID: "PAYER-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderExecution)
	he, _ := AsHTTPError(err)
	assert.Equal(t, "There was a problem with the transaction. Error: INSTRUMENT_DECLINED", he.Message)

	c := e.db.cart(s.CartID)
	assert.True(t, c.Active)
	assert.Equal(t, model.CartStatusPaymentInitiated, c.Status)
	assert.Nil(t, c.OrderDate)
}

func TestCheckout_PayPalCreateFailure(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, s := seedCart(t, e, "5.00", 1)

	e.paypal.On("CreatePayment", mock.Anything, mock.Anything).
		Return(payment.PayPalPayment{}, &payment.ProviderError{Provider: payment.ProviderPayPal, Message: "boom"})

	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	assert.ErrorIs(t, err, ErrPaymentInitiation)

	c := e.db.cart(s.CartID)
	assert.Equal(t, model.CartStatusActive, c.Status)
	assert.Nil(t, c.PaymentID)
}

func TestCheckout_PayPalCancel(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, book, s := seedCart(t, e, "5.00", 1)

	e.paypal.On("CreatePayment", mock.Anything, mock.Anything).Return(approvedPayment("ORDER-3"), nil).Once()

	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	require.NoError(t, err)

	_, err = e.checkout.CancelCheckout(ctx, buyer.ID)
	require.NoError(t, err)

	c := e.db.cart(s.CartID)
	assert.Equal(t, model.CartStatusActive, c.Status)
	assert.Nil(t, c.PaymentID)

	// 戻ったカートはまた編集できる
	_, err = e.cart.AddToCart(ctx, buyer.ID, book.ID)
	assert.NoError(t, err)
}

func TestCheckout_StateErrors(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	_, err := e.checkout.InitiateCheckout(ctx, 1, InitiateCheckoutInput{Provider: "bitcoin"})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = e.checkout.InitiateCheckout(ctx, 0, InitiateCheckoutInput{Provider: "paypal"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	nobody := e.db.addUser("bob", "bob@example.com")
	_, err = e.checkout.InitiateCheckout(ctx, nobody.ID, InitiateCheckoutInput{Provider: "paypal"})
	assert.ErrorIs(t, err, ErrNoActiveCart)
	_, err = e.checkout.CompleteCheckout(ctx, nobody.ID, CompleteCheckoutInput{Provider: "stripe"})
	assert.ErrorIs(t, err, ErrNoActiveCart)

	buyer, book, _ := seedCart(t, e, "5.00", 1)
	_, err = e.checkout.CompleteCheckout(ctx, buyer.ID, CompleteCheckoutInput{Provider: "stripe"})
	assert.ErrorIs(t, err, ErrCheckoutNotInitiated)

	_, err = e.cart.RemoveFromCart(ctx, buyer.ID, book.ID)
	require.NoError(t, err)
	_, err = e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_OtherProviderWhileInitiated(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, _ := seedCart(t, e, "5.00", 1)

	e.paypal.On("CreatePayment", mock.Anything, mock.Anything).Return(approvedPayment("ORDER-4"), nil).Once()

	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	require.NoError(t, err)

	_, err = e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "stripe", Token: "tok"})
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	_, err = e.checkout.CompleteCheckout(ctx, buyer.ID, CompleteCheckoutInput{Provider: "stripe"})
	assert.ErrorIs(t, err, ErrCheckoutNotInitiated)
	e.stripe.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
}

func TestCheckout_SingleActiveCartAcrossOrders(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, book, _ := seedCart(t, e, "12.00", 1)

	e.stripe.On("Charge", mock.Anything, mock.Anything).Return(payment.Charge{ID: "pi_1", Status: "succeeded"}, nil).Once()
	e.stripe.On("Charge", mock.Anything, mock.Anything).Return(payment.Charge{ID: "pi_2", Status: "succeeded"}, nil).Once()

	for i := 0; i < 2; i++ {
		if i > 0 {
			_, err := e.cart.AddToCart(ctx, buyer.ID, book.ID)
			require.NoError(t, err)
		}
		assert.Len(t, e.db.activeCarts(buyer.ID), 1)

		_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "stripe", Token: "tok"})
		require.NoError(t, err)
		assert.Len(t, e.db.activeCarts(buyer.ID), 1)

		_, err = e.checkout.CompleteCheckout(ctx, buyer.ID, CompleteCheckoutInput{Provider: "stripe"})
		require.NoError(t, err)
		assert.Empty(t, e.db.activeCarts(buyer.ID))
	}

	orders, err := e.checkout.ListOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "pi_2", orders[0].PaymentID)
	assert.Equal(t, "pi_1", orders[1].PaymentID)
	assert.Equal(t, model.PaymentTypeStripe, orders[0].PaymentType)
}

func TestCheckout_ReviewPaymentOfOtherBuyer(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	buyer, _, _ := seedCart(t, e, "5.00", 1)
	other := e.db.addUser("mallory", "mallory@example.com")

	e.paypal.On("CreatePayment", mock.Anything, mock.Anything).Return(approvedPayment("ORDER-5"), nil).Once()
	_, err := e.checkout.InitiateCheckout(ctx, buyer.ID, InitiateCheckoutInput{Provider: "paypal"})
	require.NoError(t, err)

	_, err = e.checkout.ReviewPayment(ctx, other.ID, "ORDER-5")
	assert.ErrorIs(t, err, ErrCheckoutNotInitiated)
	_, err = e.checkout.ReviewPayment(ctx, buyer.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
}
