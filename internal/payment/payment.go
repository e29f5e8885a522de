// Package payment は決済プロバイダ（PayPal / Stripe）との境界を定義する。
// SDK固有の状態（APIキーなど）は実装側に閉じ込め、usecaseはここの型だけを見る。
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Provider string

const (
	ProviderPayPal Provider = "paypal"
	ProviderStripe Provider = "stripe"
)

// URLパスの値をProviderへ。未知ならfalse。
func ParseProvider(s string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderPayPal:
		return ProviderPayPal, true
	case ProviderStripe:
		return ProviderStripe, true
	default:
		return "", false
	}
}

// 明細1行（PayPalのitem_listに対応）
type Item struct {
	Name      string
	SKU       string
	UnitPrice decimal.Decimal
	Currency  string
	Quantity  int64
}

type PayPalPaymentRequest struct {
	ReferenceID string
	Items       []Item
	Total       decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
	CancelURL   string
}

type Link struct {
	Href   string
	Rel    string
	Method string
}

type PayPalPayment struct {
	ID      string
	Status  string
	PayerID string
	Links   []Link
}

// 購入者を送り出すURL（リンク種別がリダイレクト/承認のもの）
func (p PayPalPayment) RedirectURL() string {
	for _, l := range p.Links {
		if strings.EqualFold(l.Method, "REDIRECT") {
			return l.Href
		}
	}
	for _, l := range p.Links {
		switch strings.ToLower(l.Rel) {
		case "approve", "approval_url", "payer-action":
			return l.Href
		}
	}
	return ""
}

type ChargeRequest struct {
	// 最小通貨単位（セント）
	Amount         int64
	Currency       string
	Token          string
	Metadata       map[string]string
	IdempotencyKey string
}

type Charge struct {
	ID     string
	Status string
}

type PayPalGateway interface {
	CreatePayment(ctx context.Context, req PayPalPaymentRequest) (PayPalPayment, error)
	FindPayment(ctx context.Context, paymentID string) (PayPalPayment, error)
	ExecutePayment(ctx context.Context, p PayPalPayment, payerID string) error
}

type StripeGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
}

// カード拒否（購入者が再試行できる失敗）
var ErrCardDeclined = errors.New("card declined")

type CardError struct {
	Code    string
	Message string
}

func (e *CardError) Error() string {
	if e.Code == "" {
		return "card declined: " + e.Message
	}
	return fmt.Sprintf("card declined (%s): %s", e.Code, e.Message)
}

func (e *CardError) Is(target error) bool {
	return target == ErrCardDeclined
}

// プロバイダが返したエラー。Messageは購入者に見せてよい文言。
type ProviderError struct {
	Provider Provider
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// エラーから購入者向けメッセージを取り出す
func MessageOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	var ce *CardError
	if errors.As(err, &ce) {
		return ce.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
