package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type ReviewGormRepository struct {
	db *gorm.DB
}

// DI
func NewReviewGormRepository(db *gorm.DB) *ReviewGormRepository {
	return &ReviewGormRepository{db: db}
}

// (user_id, book_id)の重複はErrConflict
func (r *ReviewGormRepository) Create(ctx context.Context, review model.Review) (model.Review, error) {
	err := r.db.WithContext(ctx).Omit("User").Create(&review).Error
	if isUniqueViolation(err) {
		return model.Review{}, repo.ErrConflict
	}
	if err != nil {
		return model.Review{}, err
	}
	return review, nil
}

// 書籍のレビュー（古い順）
func (r *ReviewGormRepository) ListByBookID(ctx context.Context, bookID int64) ([]model.Review, error) {
	var reviews []model.Review

	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("book_id = ?", bookID).
		Order("id asc").
		Find(&reviews).Error; err != nil {
		return []model.Review{}, err
	}
	return reviews, nil
}

func (r *ReviewGormRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ReviewGormRepository) ExistsByUserAndBook(ctx context.Context, userID int64, bookID int64) (bool, error) {
	var count int64

	err := r.db.WithContext(ctx).
		Model(&model.Review{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
