package repository

import (
	"context"
	"errors"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type BookGormRepository struct {
	db *gorm.DB
}

// DI
func NewBookGormRepository(db *gorm.DB) *BookGormRepository {
	return &BookGormRepository{db: db}
}

// 全書籍（著者付き）
func (r *BookGormRepository) ListAll(ctx context.Context) ([]model.Book, error) {
	var books []model.Book

	if err := r.db.WithContext(ctx).
		Preload("Author").
		Order("id asc").
		Find(&books).Error; err != nil {
		return []model.Book{}, err
	}
	return books, nil
}

// IDで書籍を取得
func (r *BookGormRepository) FindByID(ctx context.Context, id int64) (model.Book, error) {
	var b model.Book
	err := r.db.WithContext(ctx).Preload("Author").First(&b, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Book{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Book{}, err
	}
	return b, nil
}
