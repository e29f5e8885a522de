package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type CartRepository interface {
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 行ロック（FOR UPDATE）付きで取得。Tx内で使う。
	LockActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// activeカートを新規作成。既にあればErrConflict。
	CreateActive(ctx context.Context, userID int64) (model.Cart, error)
	FindByPaymentID(ctx context.Context, paymentID string) (model.Cart, error)
	// 決済関連カラム（status/active/payment_*/order_date）を保存
	SaveCheckout(ctx context.Context, cart model.Cart) error
	ListCompletedByUserID(ctx context.Context, userID int64) ([]model.Cart, error)
}
