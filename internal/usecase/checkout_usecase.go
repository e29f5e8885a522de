package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/money"
	"bookstore/internal/payment"
	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

// 決済まわりの設定。APIキーは各ゲートウェイが持つのでここには無い。
type CheckoutConfig struct {
	Currency    string
	ReturnURL   string
	CancelURL   string
	Description string
}

const (
	MsgOrderCompleted   = "Success! Your order has been completed and is being processed. Payment ID: %s"
	MsgPayPalFailed     = "There was a problem with the transaction. Error: %s"
	MsgStripeFailed     = "There was an error processing your payment with Stripe."
	msgPayPalInitFailed = "There was a problem creating the PayPal payment."
)

type CheckoutUsecase struct {
	cfg    CheckoutConfig
	paypal payment.PayPalGateway
	stripe payment.StripeGateway
	carts  repo.CartRepository
	items  repo.BookOrderRepository
	tx     repo.TransactionManager
	clock  Clock
	log    *zap.Logger
}

// DI
func NewCheckoutUsecase(
	cfg CheckoutConfig,
	paypal payment.PayPalGateway,
	stripe payment.StripeGateway,
	carts repo.CartRepository,
	items repo.BookOrderRepository,
	tx repo.TransactionManager,
	clock Clock,
	log *zap.Logger,
) *CheckoutUsecase {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutUsecase{
		cfg:    cfg,
		paypal: paypal,
		stripe: stripe,
		carts:  carts,
		items:  items,
		tx:     tx,
		clock:  clock,
		log:    log,
	}
}

type InitiateCheckoutInput struct {
	Provider string
	// Stripeのみ（payment method / token）
	Token string
}

type CheckoutResult struct {
	Provider    payment.Provider `json:"provider"`
	PaymentID   string           `json:"payment_id"`
	RedirectURL string           `json:"redirect_url,omitempty"`
	Summary     CartSummary      `json:"summary"`
	// 既に開始済みの決済を返した
	Reused bool `json:"reused"`
}

type CompleteCheckoutInput struct {
	Provider string
	// PayPalのみ（空なら決済に記録されたpayer）
	PayerID string
}

type CompletedOrder struct {
	CartID      int64             `json:"cart_id"`
	PaymentID   string            `json:"payment_id"`
	PaymentType model.PaymentType `json:"payment_type"`
	OrderDate   time.Time         `json:"order_date"`
	Summary     CartSummary       `json:"summary"`
	Message     string            `json:"message"`
}

type PaymentReview struct {
	PaymentID string      `json:"payment_id"`
	Summary   CartSummary `json:"summary"`
}

type OrderHistoryEntry struct {
	CartID      int64             `json:"cart_id"`
	PaymentID   string            `json:"payment_id"`
	PaymentType model.PaymentType `json:"payment_type"`
	OrderDate   *time.Time        `json:"order_date"`
	Summary     CartSummary       `json:"summary"`
}

// InitiateCheckout はactiveカートの決済を開始する。
// カート行のロックはプロバイダ呼び出しの間も持ち続けるので、二重送信は直列化される。
// 開始済み（同じプロバイダ）のときは保存済みの決済を返し、新しい決済は作らない。
func (u *CheckoutUsecase) InitiateCheckout(ctx context.Context, buyerID int64, in InitiateCheckoutInput) (CheckoutResult, error) {
	if buyerID <= 0 {
		return CheckoutResult{}, errUnauthorized()
	}
	provider, ok := payment.ParseProvider(in.Provider)
	if !ok {
		return CheckoutResult{}, errUnsupportedProvider()
	}
	if provider == payment.ProviderStripe && in.Token == "" {
		return CheckoutResult{}, newKindError(ErrMissingPaymentToken, http.StatusBadRequest, "payment token is required")
	}

	var out CheckoutResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockActiveByUserID(ctx, buyerID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNoActiveCart()
		}
		if err != nil {
			return errDB()
		}

		summary, err := summaryOf(ctx, r.BookOrders(), cart)
		if err != nil {
			return err
		}
		if summary.Count == 0 {
			return newKindError(ErrEmptyCart, http.StatusBadRequest, "cart is empty")
		}

		//二重送信
		if cart.InPaymentFlow() {
			if cart.PaymentProvider == nil || providerOf(*cart.PaymentProvider) != provider || cart.PaymentID == nil {
				return errCheckoutInProgress()
			}
			out = CheckoutResult{
				Provider:    provider,
				PaymentID:   *cart.PaymentID,
				RedirectURL: cart.ApprovalURL,
				Summary:     summary,
				Reused:      true,
			}
			return nil
		}

		switch provider {
		case payment.ProviderPayPal:
			out, err = u.initiatePayPal(ctx, cart, summary)
		case payment.ProviderStripe:
			out, err = u.initiateStripe(ctx, cart, summary, in.Token)
		}
		if err != nil {
			return err
		}

		pid := out.PaymentID
		pt := paymentTypeOf(provider)
		cart.Status = model.CartStatusPaymentInitiated
		cart.PaymentID = &pid
		cart.PaymentProvider = &pt
		cart.ApprovalURL = out.RedirectURL
		if err := r.Carts().SaveCheckout(ctx, cart); err != nil {
			// Stripeは課金済み。同じtokenでの再試行は冪等キーで同じ決済に解決される。
			u.log.Error("failed to persist payment reference",
				zap.Int64("cart_id", cart.ID),
				zap.String("provider", string(provider)),
				zap.String("payment_id", pid),
				zap.Error(err),
			)
			return errDB()
		}

		u.log.Info("checkout initiated",
			zap.Int64("cart_id", cart.ID),
			zap.String("provider", string(provider)),
			zap.String("payment_id", pid),
		)
		return nil
	})
	if err != nil {
		return CheckoutResult{}, u.wrap(err, "initiate checkout failed")
	}
	return out, nil
}

func (u *CheckoutUsecase) initiatePayPal(ctx context.Context, cart model.Cart, summary CartSummary) (CheckoutResult, error) {
	items := make([]payment.Item, 0, len(summary.Items))
	for _, l := range summary.Items {
		items = append(items, payment.Item{
			Name:      l.Title,
			SKU:       strconv.FormatInt(l.BookID, 10),
			UnitPrice: l.UnitPrice,
			Currency:  u.cfg.Currency,
			Quantity:  l.Quantity,
		})
	}

	p, err := u.paypal.CreatePayment(ctx, payment.PayPalPaymentRequest{
		ReferenceID: strconv.FormatInt(cart.ID, 10),
		Items:       items,
		Total:       summary.Total,
		Currency:    u.cfg.Currency,
		Description: u.cfg.Description,
		ReturnURL:   u.cfg.ReturnURL,
		CancelURL:   u.cfg.CancelURL,
	})
	if err != nil {
		u.log.Warn("paypal payment creation failed", zap.Int64("cart_id", cart.ID), zap.Error(err))
		return CheckoutResult{}, newKindError(ErrPaymentInitiation, http.StatusBadGateway, msgPayPalInitFailed)
	}

	redirect := p.RedirectURL()
	if p.ID == "" || redirect == "" {
		u.log.Warn("paypal payment has no approval link", zap.Int64("cart_id", cart.ID), zap.String("payment_id", p.ID))
		return CheckoutResult{}, newKindError(ErrPaymentInitiation, http.StatusBadGateway, msgPayPalInitFailed)
	}

	return CheckoutResult{
		Provider:    payment.ProviderPayPal,
		PaymentID:   p.ID,
		RedirectURL: redirect,
		Summary:     summary,
	}, nil
}

func (u *CheckoutUsecase) initiateStripe(ctx context.Context, cart model.Cart, summary CartSummary, token string) (CheckoutResult, error) {
	ch, err := u.stripe.Charge(ctx, payment.ChargeRequest{
		Amount:         money.MinorUnits(summary.Total),
		Currency:       u.cfg.Currency,
		Token:          token,
		Metadata:       map[string]string{"order_id": strconv.FormatInt(cart.ID, 10)},
		IdempotencyKey: fmt.Sprintf("cart-%d-%s", cart.ID, token),
	})
	if errors.Is(err, payment.ErrCardDeclined) {
		u.log.Info("stripe card declined", zap.Int64("cart_id", cart.ID), zap.String("reason", payment.MessageOf(err)))
		return CheckoutResult{}, newKindError(ErrCardDeclined, http.StatusPaymentRequired, MsgStripeFailed)
	}
	if err != nil {
		u.log.Warn("stripe charge failed", zap.Int64("cart_id", cart.ID), zap.Error(err))
		return CheckoutResult{}, newKindError(ErrPaymentInitiation, http.StatusBadGateway, MsgStripeFailed)
	}

	return CheckoutResult{
		Provider:  payment.ProviderStripe,
		PaymentID: ch.ID,
		Summary:   summary,
	}, nil
}

// CompleteCheckout は開始済みの決済を確定し、カートを注文（active=false）にする。
// PayPalはここでexecute（capture）する。Stripeは開始時に課金済み。
func (u *CheckoutUsecase) CompleteCheckout(ctx context.Context, buyerID int64, in CompleteCheckoutInput) (CompletedOrder, error) {
	if buyerID <= 0 {
		return CompletedOrder{}, errUnauthorized()
	}
	provider, ok := payment.ParseProvider(in.Provider)
	if !ok {
		return CompletedOrder{}, errUnsupportedProvider()
	}
	var out CompletedOrder
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockActiveByUserID(ctx, buyerID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNoActiveCart()
		}
		if err != nil {
			return errDB()
		}
		if !cart.InPaymentFlow() || cart.PaymentID == nil || cart.PaymentProvider == nil || providerOf(*cart.PaymentProvider) != provider {
			return newKindError(ErrCheckoutNotInitiated, http.StatusConflict, "checkout not initiated")
		}

		if provider == payment.ProviderPayPal {
			if err := u.executePayPal(ctx, cart, in.PayerID); err != nil {
				return err
			}
		}

		now := u.clock.Now()
		pt := paymentTypeOf(provider)
		cart.Active = false
		cart.Status = model.CartStatusCompleted
		cart.PaymentType = &pt
		cart.OrderDate = &now
		cart.ApprovalURL = ""
		if err := r.Carts().SaveCheckout(ctx, cart); err != nil {
			u.log.Error("failed to complete order",
				zap.Int64("cart_id", cart.ID),
				zap.String("payment_id", *cart.PaymentID),
				zap.Error(err),
			)
			return errDB()
		}

		summary, err := summaryOf(ctx, r.BookOrders(), cart)
		if err != nil {
			return err
		}
		out = CompletedOrder{
			CartID:      cart.ID,
			PaymentID:   *cart.PaymentID,
			PaymentType: pt,
			OrderDate:   now,
			Summary:     summary,
			Message:     fmt.Sprintf(MsgOrderCompleted, *cart.PaymentID),
		}
		return nil
	})
	if err != nil {
		return CompletedOrder{}, u.wrap(err, "complete checkout failed")
	}

	u.log.Info("order completed",
		zap.Int64("cart_id", out.CartID),
		zap.String("payment_type", string(out.PaymentType)),
		zap.String("payment_id", out.PaymentID),
	)
	return out, nil
}

// 失敗してもカートはPAYMENT_INITIATEDのまま（再試行できる）
func (u *CheckoutUsecase) executePayPal(ctx context.Context, cart model.Cart, payerID string) error {
	p, err := u.paypal.FindPayment(ctx, *cart.PaymentID)
	if err != nil {
		u.log.Warn("paypal payment lookup failed", zap.Int64("cart_id", cart.ID), zap.Error(err))
		return newKindError(ErrProviderExecution, http.StatusBadGateway, fmt.Sprintf(MsgPayPalFailed, payment.MessageOf(err)))
	}
	//戻りURLにPayerIDが無ければ承認済み決済のpayerで実行
	if payerID == "" {
		payerID = p.PayerID
	}
	if err := u.paypal.ExecutePayment(ctx, p, payerID); err != nil {
		u.log.Warn("paypal payment execution failed", zap.Int64("cart_id", cart.ID), zap.Error(err))
		return newKindError(ErrProviderExecution, http.StatusBadGateway, fmt.Sprintf(MsgPayPalFailed, payment.MessageOf(err)))
	}
	return nil
}

// CancelCheckout はPayPalの承認画面でキャンセルされた決済を取り消し、カートをACTIVEに戻す。
// Stripeは課金済みなので取り消せない。
func (u *CheckoutUsecase) CancelCheckout(ctx context.Context, buyerID int64) (CartSummary, error) {
	if buyerID <= 0 {
		return CartSummary{}, errUnauthorized()
	}

	var out CartSummary
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockActiveByUserID(ctx, buyerID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNoActiveCart()
		}
		if err != nil {
			return errDB()
		}

		if cart.InPaymentFlow() {
			if cart.PaymentProvider != nil && *cart.PaymentProvider == model.PaymentTypeStripe {
				return errCheckoutInProgress()
			}
			cart.Status = model.CartStatusActive
			cart.PaymentID = nil
			cart.PaymentProvider = nil
			cart.ApprovalURL = ""
			if err := r.Carts().SaveCheckout(ctx, cart); err != nil {
				return errDB()
			}
		}

		out, err = summaryOf(ctx, r.BookOrders(), cart)
		return err
	})
	if err != nil {
		return CartSummary{}, u.wrap(err, "cancel checkout failed")
	}
	return out, nil
}

// ReviewPayment は承認後の確認画面用（payment_idのカートの中身）
func (u *CheckoutUsecase) ReviewPayment(ctx context.Context, buyerID int64, paymentID string) (PaymentReview, error) {
	if buyerID <= 0 {
		return PaymentReview{}, errUnauthorized()
	}
	if paymentID == "" {
		return PaymentReview{}, newKindError(ErrValidation, http.StatusBadRequest, "payment id is required")
	}

	cart, err := u.carts.FindByPaymentID(ctx, paymentID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && cart.UserID != buyerID) {
		return PaymentReview{}, newKindError(ErrCheckoutNotInitiated, http.StatusNotFound, "payment not found")
	}
	if err != nil {
		return PaymentReview{}, u.wrap(err, "payment lookup failed")
	}

	summary, err := summaryOf(ctx, u.items, cart)
	if err != nil {
		return PaymentReview{}, err
	}
	return PaymentReview{PaymentID: paymentID, Summary: summary}, nil
}

// ListOrders は完了済みの注文（新しい順）
func (u *CheckoutUsecase) ListOrders(ctx context.Context, buyerID int64) ([]OrderHistoryEntry, error) {
	if buyerID <= 0 {
		return nil, errUnauthorized()
	}

	carts, err := u.carts.ListCompletedByUserID(ctx, buyerID)
	if err != nil {
		return nil, u.wrap(err, "order history lookup failed")
	}

	out := make([]OrderHistoryEntry, 0, len(carts))
	for _, c := range carts {
		summary, err := summaryOf(ctx, u.items, c)
		if err != nil {
			return nil, err
		}
		e := OrderHistoryEntry{
			CartID:    c.ID,
			OrderDate: c.OrderDate,
			Summary:   summary,
		}
		if c.PaymentID != nil {
			e.PaymentID = *c.PaymentID
		}
		if c.PaymentType != nil {
			e.PaymentType = *c.PaymentType
		}
		out = append(out, e)
	}
	return out, nil
}

func (u *CheckoutUsecase) wrap(err error, msg string) error {
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	u.log.Error(msg, zap.Error(err))
	return errDB()
}

func providerOf(pt model.PaymentType) payment.Provider {
	switch pt {
	case model.PaymentTypePayPal:
		return payment.ProviderPayPal
	case model.PaymentTypeStripe:
		return payment.ProviderStripe
	default:
		return ""
	}
}

func paymentTypeOf(p payment.Provider) model.PaymentType {
	if p == payment.ProviderStripe {
		return model.PaymentTypeStripe
	}
	return model.PaymentTypePayPal
}

func errUnsupportedProvider() error {
	return newKindError(ErrUnsupportedProvider, http.StatusBadRequest, "unsupported payment provider")
}
