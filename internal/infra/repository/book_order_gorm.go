package repository

import (
	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
	"context"
	"errors"

	"gorm.io/gorm"
)

type BookOrderGormRepository struct {
	db *gorm.DB
}

// DI
func NewBookOrderGormRepository(db *gorm.DB) *BookOrderGormRepository {
	return &BookOrderGormRepository{db: db}
}

// カート明細を一覧取得
func (r *BookOrderGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.BookOrder, error) {
	var items []model.BookOrder

	if err := r.db.WithContext(ctx).
		Preload("Book.Author").
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return []model.BookOrder{}, err
	}

	return items, nil
}

func (r *BookOrderGormRepository) FindByCartAndBook(ctx context.Context, cartID int64, bookID int64) (model.BookOrder, error) {
	var item model.BookOrder

	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND book_id = ?", cartID, bookID).
		First(&item).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.BookOrder{}, repo.ErrNotFound
	}
	if err != nil {
		return model.BookOrder{}, err
	}
	return item, nil
}

// 明細を作成（同一カート・同一書籍はErrConflict）
func (r *BookOrderGormRepository) Create(ctx context.Context, item model.BookOrder) (model.BookOrder, error) {
	if item.Quantity < 1 {
		return model.BookOrder{}, errors.New("invalid quantity")
	}

	err := r.db.WithContext(ctx).Omit("Book").Create(&item).Error
	if isUniqueViolation(err) {
		return model.BookOrder{}, repo.ErrConflict
	}
	if err != nil {
		return model.BookOrder{}, err
	}
	return item, nil
}

// 明細の数量を更新
func (r *BookOrderGormRepository) UpdateQuantity(ctx context.Context, itemID int64, qty int64) error {
	if qty < 1 {
		return errors.New("invalid quantity")
	}

	res := r.db.WithContext(ctx).
		Model(&model.BookOrder{}).
		Where("id = ?", itemID).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除
func (r *BookOrderGormRepository) DeleteByID(ctx context.Context, itemID int64) error {
	res := r.db.WithContext(ctx).Delete(&model.BookOrder{}, itemID)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
