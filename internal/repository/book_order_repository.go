package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type BookOrderRepository interface {
	// Bookをpreloadして返す（id昇順）
	ListByCartID(ctx context.Context, cartID int64) ([]model.BookOrder, error)
	FindByCartAndBook(ctx context.Context, cartID int64, bookID int64) (model.BookOrder, error)
	Create(ctx context.Context, item model.BookOrder) (model.BookOrder, error)
	UpdateQuantity(ctx context.Context, itemID int64, qty int64) error
	DeleteByID(ctx context.Context, itemID int64) error
}
