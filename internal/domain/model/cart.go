package model

import "time"

type CartStatus string

const (
	CartStatusActive           CartStatus = "ACTIVE"
	CartStatusPaymentInitiated CartStatus = "PAYMENT_INITIATED"
	CartStatusCompleted        CartStatus = "COMPLETED"
)

type PaymentType string

const (
	PaymentTypePayPal PaymentType = "PayPal"
	PaymentTypeStripe PaymentType = "Stripe"
)

// 1ユーザーにつきactive=trueは1つ（部分ユニークインデックスで保証）
// 完了後も注文履歴として残す。削除しない。
type Cart struct {
	ID     int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64      `gorm:"not null;index;uniqueIndex:idx_carts_active_user,where:active = true" json:"user_id"`
	Active bool       `gorm:"not null;default:true;index" json:"active"`
	Status CartStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	// 決済開始時にセット
	PaymentID       *string      `gorm:"type:varchar(255);index" json:"payment_id,omitempty"`
	PaymentProvider *PaymentType `gorm:"type:varchar(20)" json:"-"`
	ApprovalURL     string       `gorm:"type:text" json:"-"`

	// 完了時にセット
	PaymentType *PaymentType `gorm:"type:varchar(20)" json:"payment_type,omitempty"`
	OrderDate   *time.Time   `json:"order_date,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (c Cart) InPaymentFlow() bool {
	return c.Status == CartStatusPaymentInitiated
}
