package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カタログの書籍。カートからは読み取り専用。
type Book struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	AuthorID    int64           `gorm:"not null;index" json:"author_id"`
	Author      Author          `gorm:"foreignKey:AuthorID" json:"author"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;default:0" json:"stock"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
