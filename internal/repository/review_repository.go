package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type ReviewRepository interface {
	Create(ctx context.Context, review model.Review) (model.Review, error)
	ListByBookID(ctx context.Context, bookID int64) ([]model.Review, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
	ExistsByUserAndBook(ctx context.Context, userID int64, bookID int64) (bool, error)
}
