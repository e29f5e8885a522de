package model

import "time"

// カートの明細。quantityは常に1以上（0になったら削除）。
type BookOrder struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64     `gorm:"not null;uniqueIndex:idx_book_orders_cart_book" json:"cart_id"`
	BookID    int64     `gorm:"not null;uniqueIndex:idx_book_orders_cart_book" json:"book_id"`
	Book      Book      `gorm:"foreignKey:BookID" json:"book"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
