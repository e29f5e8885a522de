package payment

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"bookstore/internal/domain/money"
	"bookstore/internal/payment"

	"github.com/plutov/paypal/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PayPal Orders APIのゲートウェイ。
// クライアントID/シークレットはこの構造体だけが持つ。
type PayPalGateway struct {
	client *paypal.Client
	tracer trace.Tracer

	mu       sync.Mutex
	hasToken bool
}

// modeはsandbox/live
func NewPayPalGateway(clientID, secret, mode string) (*PayPalGateway, error) {
	base := paypal.APIBaseSandBox
	if mode == "live" {
		base = paypal.APIBaseLive
	}
	return newPayPalGatewayWithBase(clientID, secret, base)
}

func newPayPalGatewayWithBase(clientID, secret, apiBase string) (*PayPalGateway, error) {
	c, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, err
	}
	return &PayPalGateway{
		client: c,
		tracer: otel.Tracer("bookstore/payment/paypal"),
	}, nil
}

// 初回だけアクセストークンを取る（以降はクライアントが期限前に更新する）
func (g *PayPalGateway) ensureToken(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.hasToken {
		return nil
	}
	if _, err := g.client.GetAccessToken(ctx); err != nil {
		return err
	}
	g.hasToken = true
	return nil
}

func (g *PayPalGateway) CreatePayment(ctx context.Context, req payment.PayPalPaymentRequest) (payment.PayPalPayment, error) {
	ctx, span := g.tracer.Start(ctx, "paypal.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("paypal.reference_id", req.ReferenceID))

	if err := g.ensureToken(ctx); err != nil {
		return payment.PayPalPayment{}, g.fail(span, "could not authenticate with PayPal", err)
	}

	unit := paypal.PurchaseUnitRequest{
		ReferenceID: req.ReferenceID,
		Description: req.Description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    money.Format(req.Total),
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: &paypal.Money{Currency: req.Currency, Value: money.Format(req.Total)},
			},
		},
		Items: toPayPalItems(req.Items),
	}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, []paypal.PurchaseUnitRequest{unit}, nil, &paypal.ApplicationContext{
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	})
	if err != nil {
		return payment.PayPalPayment{}, g.fail(span, "PayPal rejected the payment", err)
	}

	span.SetAttributes(attribute.String("paypal.order_id", order.ID))
	return toPayPalPayment(order), nil
}

func (g *PayPalGateway) FindPayment(ctx context.Context, paymentID string) (payment.PayPalPayment, error) {
	ctx, span := g.tracer.Start(ctx, "paypal.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.String("paypal.order_id", paymentID))

	if err := g.ensureToken(ctx); err != nil {
		return payment.PayPalPayment{}, g.fail(span, "could not authenticate with PayPal", err)
	}

	order, err := g.client.GetOrder(ctx, paymentID)
	if err != nil {
		return payment.PayPalPayment{}, g.fail(span, "payment not found", err)
	}
	return toPayPalPayment(order), nil
}

// 承認済みの注文をキャプチャする
func (g *PayPalGateway) ExecutePayment(ctx context.Context, p payment.PayPalPayment, payerID string) error {
	ctx, span := g.tracer.Start(ctx, "paypal.CaptureOrder")
	defer span.End()
	span.SetAttributes(attribute.String("paypal.order_id", p.ID))

	if payerID != "" && p.PayerID != "" && payerID != p.PayerID {
		return g.fail(span, "payer does not match the approved payment", nil)
	}

	if err := g.ensureToken(ctx); err != nil {
		return g.fail(span, "could not authenticate with PayPal", err)
	}

	res, err := g.client.CaptureOrder(ctx, p.ID, paypal.CaptureOrderRequest{})
	if err != nil {
		return g.fail(span, "", err)
	}
	if res.Status != "COMPLETED" {
		return g.fail(span, "payment was not completed (status "+res.Status+")", nil)
	}
	return nil
}

// spanにエラーを記録してProviderErrorを返す。
// msgが空ならPayPalのエラーメッセージを使う。
func (g *PayPalGateway) fail(span trace.Span, msg string, err error) error {
	if pm := paypalMessage(err); pm != "" && msg == "" {
		msg = pm
	}
	if msg == "" {
		msg = "PayPal request failed"
	}
	if err != nil {
		span.RecordError(err)
	}
	span.SetStatus(codes.Error, msg)
	return &payment.ProviderError{Provider: payment.ProviderPayPal, Message: msg, Err: err}
}

func paypalMessage(err error) string {
	var er *paypal.ErrorResponse
	if errors.As(err, &er) {
		return er.Message
	}
	return ""
}

func toPayPalItems(items []payment.Item) []paypal.Item {
	out := make([]paypal.Item, 0, len(items))
	for _, it := range items {
		out = append(out, paypal.Item{
			Name:       it.Name,
			SKU:        it.SKU,
			Quantity:   strconv.FormatInt(it.Quantity, 10),
			UnitAmount: &paypal.Money{Currency: it.Currency, Value: money.Format(it.UnitPrice)},
		})
	}
	return out
}

func toPayPalPayment(o *paypal.Order) payment.PayPalPayment {
	if o == nil {
		return payment.PayPalPayment{}
	}
	out := payment.PayPalPayment{
		ID:     o.ID,
		Status: o.Status,
		Links:  make([]payment.Link, 0, len(o.Links)),
	}
	if o.Payer != nil {
		out.PayerID = o.Payer.PayerID
	}
	for _, l := range o.Links {
		out.Links = append(out.Links, payment.Link{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}
	return out
}
