package repository

import (
	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのactiveカートを取得
func (r *CartGormRepository) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("id desc").
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// activeカートを行ロックして取得（同一カートへの更新を直列化）
func (r *CartGormRepository) LockActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND active = ?", userID, true).
		Order("id desc").
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// activeカートを作成。
// Tx内ではsavepointになるので、一意制約違反でも外側のTxは続行できる。
func (r *CartGormRepository) CreateActive(ctx context.Context, userID int64) (model.Cart, error) {
	cart := model.Cart{
		UserID: userID,
		Active: true,
		Status: model.CartStatusActive,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&cart).Error
	})
	if isUniqueViolation(err) {
		return model.Cart{}, repo.ErrConflict
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// payment_idからカートを取得
func (r *CartGormRepository) FindByPaymentID(ctx context.Context, paymentID string) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// 決済状態のカラムだけ更新
func (r *CartGormRepository) SaveCheckout(ctx context.Context, cart model.Cart) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]interface{}{
			"active":           cart.Active,
			"status":           cart.Status,
			"payment_id":       cart.PaymentID,
			"payment_provider": cart.PaymentProvider,
			"approval_url":     cart.ApprovalURL,
			"payment_type":     cart.PaymentType,
			"order_date":       cart.OrderDate,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 完了済み（注文履歴）を新しい順で
func (r *CartGormRepository) ListCompletedByUserID(ctx context.Context, userID int64) ([]model.Cart, error) {
	var carts []model.Cart

	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.CartStatusCompleted).
		Order("order_date desc").
		Order("id desc").
		Find(&carts).Error; err != nil {
		return []model.Cart{}, err
	}
	return carts, nil
}
