package repository

import (
	"bookstore/internal/domain/model"
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// 一意制約違反（同時作成など）
var ErrConflict = errors.New("conflict")

// カタログの読み取りだけを約束（書籍は読み取り専用）。
type BookRepository interface {
	ListAll(ctx context.Context) ([]model.Book, error)
	FindByID(ctx context.Context, id int64) (model.Book, error)
}
