package usecase

import (
	"context"
	"errors"
	"net/http"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/money"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartUsecase はカート（1ユーザー1つのactiveカート）の業務ロジック。
// 変更系はTx内でカート行をロックしてから読む。
type CartUsecase struct {
	books repo.BookRepository
	carts repo.CartRepository
	items repo.BookOrderRepository
	tx    repo.TransactionManager
	log   *zap.Logger
}

// DI
func NewCartUsecase(
	books repo.BookRepository,
	carts repo.CartRepository,
	items repo.BookOrderRepository,
	tx repo.TransactionManager,
	log *zap.Logger,
) *CartUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartUsecase{
		books: books,
		carts: carts,
		items: items,
		tx:    tx,
		log:   log,
	}
}

type CartLine struct {
	BookID    int64           `json:"book_id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartSummary struct {
	CartID int64            `json:"cart_id,omitempty"`
	Status model.CartStatus `json:"status,omitempty"`
	Items  []CartLine       `json:"items"`
	Total  decimal.Decimal  `json:"total"`
	Count  int64            `json:"count"`
}

// 合計の計算はここだけ（カート画面、決済、注文確認で共通）
func BuildSummary(items []model.BookOrder) CartSummary {
	s := CartSummary{
		Items: make([]CartLine, 0, len(items)),
		Total: decimal.Zero,
	}
	for _, it := range items {
		line := money.LineTotal(it.Book.Price, it.Quantity)
		s.Items = append(s.Items, CartLine{
			BookID:    it.BookID,
			Title:     it.Book.Title,
			Author:    it.Book.Author.FullName(),
			UnitPrice: it.Book.Price,
			Quantity:  it.Quantity,
			LineTotal: line,
		})
		s.Total = s.Total.Add(line)
		s.Count += it.Quantity
	}
	return s
}

// AddToCart は1冊追加（同じ本なら数量+1）。activeカートが無ければ作る。
func (u *CartUsecase) AddToCart(ctx context.Context, buyerID int64, bookID int64) (CartSummary, error) {
	if buyerID <= 0 {
		return CartSummary{}, errUnauthorized()
	}
	if err := u.requireBook(ctx, bookID); err != nil {
		return CartSummary{}, err
	}

	var out CartSummary
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := lockOrCreateActiveCart(ctx, r, buyerID)
		if err != nil {
			return err
		}
		if cart.InPaymentFlow() {
			return errCheckoutInProgress()
		}

		item, err := r.BookOrders().FindByCartAndBook(ctx, cart.ID, bookID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			if _, err := r.BookOrders().Create(ctx, model.BookOrder{CartID: cart.ID, BookID: bookID, Quantity: 1}); err != nil {
				return errDB()
			}
		case err != nil:
			return errDB()
		default:
			if err := r.BookOrders().UpdateQuantity(ctx, item.ID, item.Quantity+1); err != nil {
				return errDB()
			}
		}

		out, err = summaryOf(ctx, r.BookOrders(), cart)
		return err
	})
	if err != nil {
		return CartSummary{}, u.wrap(err, "add to cart failed")
	}
	return out, nil
}

// RemoveFromCart は1冊減らす（0になったら明細ごと削除）。
// カートに無い本は何もしない。
func (u *CartUsecase) RemoveFromCart(ctx context.Context, buyerID int64, bookID int64) (CartSummary, error) {
	if buyerID <= 0 {
		return CartSummary{}, errUnauthorized()
	}
	if err := u.requireBook(ctx, bookID); err != nil {
		return CartSummary{}, err
	}

	var out CartSummary
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().LockActiveByUserID(ctx, buyerID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNoActiveCart()
		}
		if err != nil {
			return errDB()
		}
		if cart.InPaymentFlow() {
			return errCheckoutInProgress()
		}

		item, err := r.BookOrders().FindByCartAndBook(ctx, cart.ID, bookID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			// no-op
		case err != nil:
			return errDB()
		case item.Quantity <= 1:
			if err := r.BookOrders().DeleteByID(ctx, item.ID); err != nil {
				return errDB()
			}
		default:
			if err := r.BookOrders().UpdateQuantity(ctx, item.ID, item.Quantity-1); err != nil {
				return errDB()
			}
		}

		out, err = summaryOf(ctx, r.BookOrders(), cart)
		return err
	})
	if err != nil {
		return CartSummary{}, u.wrap(err, "remove from cart failed")
	}
	return out, nil
}

// GetCartSummary はactiveカートの中身。カートが無ければ空（total=0, count=0）。
func (u *CartUsecase) GetCartSummary(ctx context.Context, buyerID int64) (CartSummary, error) {
	if buyerID <= 0 {
		return CartSummary{}, errUnauthorized()
	}

	cart, err := u.carts.FindActiveByUserID(ctx, buyerID)
	if errors.Is(err, repo.ErrNotFound) {
		return BuildSummary(nil), nil
	}
	if err != nil {
		return CartSummary{}, u.wrap(err, "cart lookup failed")
	}

	return summaryOf(ctx, u.items, cart)
}

func (u *CartUsecase) requireBook(ctx context.Context, bookID int64) error {
	if bookID <= 0 {
		return errBookNotFound()
	}
	_, err := u.books.FindByID(ctx, bookID)
	if errors.Is(err, repo.ErrNotFound) {
		return errBookNotFound()
	}
	if err != nil {
		return u.wrap(err, "book lookup failed")
	}
	return nil
}

// HTTPError以外はログを出して500にする
func (u *CartUsecase) wrap(err error, msg string) error {
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	u.log.Error(msg, zap.Error(err))
	return errDB()
}

// activeカートをロック付きで取得。無ければ作る。
// 同時作成で一意制約に負けたら相手のカートをロックし直す。
func lockOrCreateActiveCart(ctx context.Context, r repo.TxRepos, buyerID int64) (model.Cart, error) {
	cart, err := r.Carts().LockActiveByUserID(ctx, buyerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, errDB()
	}

	cart, err = r.Carts().CreateActive(ctx, buyerID)
	if errors.Is(err, repo.ErrConflict) {
		cart, err = r.Carts().LockActiveByUserID(ctx, buyerID)
	}
	if err != nil {
		return model.Cart{}, errDB()
	}
	return cart, nil
}

func summaryOf(ctx context.Context, items repo.BookOrderRepository, cart model.Cart) (CartSummary, error) {
	list, err := items.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartSummary{}, errDB()
	}
	s := BuildSummary(list)
	s.CartID = cart.ID
	s.Status = cart.Status
	return s, nil
}

func errBookNotFound() error {
	return newKindError(ErrBookNotFound, http.StatusNotFound, "book not found")
}

func errNoActiveCart() error {
	return newKindError(ErrNoActiveCart, http.StatusNotFound, "no active cart")
}

func errCheckoutInProgress() error {
	return newKindError(ErrCheckoutInProgress, http.StatusConflict, "checkout already in progress")
}
