package payment

import (
	"context"
	"errors"
	"strings"

	"bookstore/internal/payment"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stripeのゲートウェイ。stripe.Key（グローバル）は触らず、キーはclient.APIに持たせる。
type StripeGateway struct {
	api    *client.API
	tracer trace.Tracer
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return NewStripeGatewayWithBackends(secretKey, nil)
}

// backendsがnilならデフォルトのStripe API
func NewStripeGatewayWithBackends(secretKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:    client.New(secretKey, backends),
		tracer: otel.Tracer("bookstore/payment/stripe"),
	}
}

// 同期的に決済を確定する。
// 通信エラー時は同じ冪等キーで1回だけ再送し、Stripe側の実際の結果に合わせる。
func (g *StripeGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	ctx, span := g.tracer.Start(ctx, "stripe.ConfirmPaymentIntent")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("stripe.amount", req.Amount),
		attribute.String("stripe.currency", req.Currency),
	)

	pi, err := g.confirm(ctx, req)
	if err != nil && isRetryable(err) && ctx.Err() == nil {
		span.AddEvent("retry with same idempotency key")
		pi, err = g.confirm(ctx, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "charge failed")
		return payment.Charge{}, classifyStripeError(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		span.SetAttributes(attribute.String("stripe.payment_intent", pi.ID))
		return payment.Charge{ID: pi.ID, Status: string(pi.Status)}, nil
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresPaymentMethod:
		span.SetStatus(codes.Error, string(pi.Status))
		return payment.Charge{}, &payment.CardError{Code: string(pi.Status), Message: "Your card requires additional authentication or was declined."}
	default:
		span.SetStatus(codes.Error, string(pi.Status))
		return payment.Charge{}, &payment.ProviderError{
			Provider: payment.ProviderStripe,
			Message:  "payment is " + string(pi.Status),
		}
	}
}

func (g *StripeGateway) confirm(ctx context.Context, req payment.ChargeRequest) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Amount),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.Token),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return g.api.PaymentIntents.New(params)
}

// Stripe APIまで届かなかった/5xxのものだけ再送対象
func isRetryable(err error) bool {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return true
	}
	return se.HTTPStatusCode >= 500 || se.Type == stripe.ErrorTypeAPI
}

func classifyStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Type == stripe.ErrorTypeCard {
			return &payment.CardError{Code: string(se.Code), Message: se.Msg}
		}
		msg := se.Msg
		if msg == "" {
			msg = "Stripe request failed"
		}
		return &payment.ProviderError{Provider: payment.ProviderStripe, Message: msg, Err: err}
	}
	return &payment.ProviderError{Provider: payment.ProviderStripe, Message: "Stripe request failed", Err: err}
}
