package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/payment"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// メモリ上のDB。WithinTxは直列化し、エラー時はスナップショットに戻す。
type memDB struct {
	mu   sync.Mutex
	txMu sync.Mutex

	seq     int64
	books   map[int64]model.Book
	carts   map[int64]model.Cart
	items   map[int64]model.BookOrder
	reviews map[int64]model.Review
	users   map[int64]model.User

	saveCheckoutErr error
}

func newMemDB() *memDB {
	return &memDB{
		books:   map[int64]model.Book{},
		carts:   map[int64]model.Cart{},
		items:   map[int64]model.BookOrder{},
		reviews: map[int64]model.Review{},
		users:   map[int64]model.User{},
	}
}

func (db *memDB) nextID() int64 {
	db.seq++
	return db.seq
}

func (db *memDB) addBook(title string, price string) model.Book {
	db.mu.Lock()
	defer db.mu.Unlock()
	b := model.Book{
		ID:     db.nextID(),
		Title:  title,
		Author: model.Author{FirstName: "Agatha", LastName: "Christie"},
		Price:  decimal.RequireFromString(price),
		Stock:  10,
	}
	db.books[b.ID] = b
	return b
}

func (db *memDB) addUser(username string, email string) model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := model.User{ID: db.nextID(), Username: username, Email: email, IsActive: true}
	db.users[u.ID] = u
	return u
}

func (db *memDB) activeCarts(userID int64) []model.Cart {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.Cart
	for _, c := range db.carts {
		if c.UserID == userID && c.Active {
			out = append(out, c)
		}
	}
	return out
}

func (db *memDB) cart(id int64) model.Cart {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.carts[id]
}

type memSnapshot struct {
	seq     int64
	carts   map[int64]model.Cart
	items   map[int64]model.BookOrder
	reviews map[int64]model.Review
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{
		seq:     db.seq,
		carts:   make(map[int64]model.Cart, len(db.carts)),
		items:   make(map[int64]model.BookOrder, len(db.items)),
		reviews: make(map[int64]model.Review, len(db.reviews)),
	}
	for k, v := range db.carts {
		s.carts[k] = v
	}
	for k, v := range db.items {
		s.items[k] = v
	}
	for k, v := range db.reviews {
		s.reviews[k] = v
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq = s.seq
	db.carts = s.carts
	db.items = s.items
	db.reviews = s.reviews
}

// books
type memBooks struct{ db *memDB }

func (r memBooks) ListAll(ctx context.Context) ([]model.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]model.Book, 0, len(r.db.books))
	for _, b := range r.db.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memBooks) FindByID(ctx context.Context, id int64) (model.Book, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	b, ok := r.db.books[id]
	if !ok {
		return model.Book{}, repo.ErrNotFound
	}
	return b, nil
}

// carts
type memCarts struct{ db *memDB }

func (r memCarts) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.carts {
		if c.UserID == userID && c.Active {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r memCarts) LockActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	return r.FindActiveByUserID(ctx, userID)
}

func (r memCarts) CreateActive(ctx context.Context, userID int64) (model.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.carts {
		if c.UserID == userID && c.Active {
			return model.Cart{}, repo.ErrConflict
		}
	}
	c := model.Cart{ID: r.db.nextID(), UserID: userID, Active: true, Status: model.CartStatusActive}
	r.db.carts[c.ID] = c
	return c, nil
}

func (r memCarts) FindByPaymentID(ctx context.Context, paymentID string) (model.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.carts {
		if c.PaymentID != nil && *c.PaymentID == paymentID {
			return c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r memCarts) SaveCheckout(ctx context.Context, cart model.Cart) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.saveCheckoutErr != nil {
		return r.db.saveCheckoutErr
	}
	if _, ok := r.db.carts[cart.ID]; !ok {
		return repo.ErrNotFound
	}
	r.db.carts[cart.ID] = cart
	return nil
}

func (r memCarts) ListCompletedByUserID(ctx context.Context, userID int64) ([]model.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Cart
	for _, c := range r.db.carts {
		if c.UserID == userID && c.Status == model.CartStatusCompleted {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// book orders
type memItems struct{ db *memDB }

func (r memItems) ListByCartID(ctx context.Context, cartID int64) ([]model.BookOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.BookOrder
	for _, it := range r.db.items {
		if it.CartID == cartID {
			it.Book = r.db.books[it.BookID]
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memItems) FindByCartAndBook(ctx context.Context, cartID int64, bookID int64) (model.BookOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, it := range r.db.items {
		if it.CartID == cartID && it.BookID == bookID {
			return it, nil
		}
	}
	return model.BookOrder{}, repo.ErrNotFound
}

func (r memItems) Create(ctx context.Context, item model.BookOrder) (model.BookOrder, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, it := range r.db.items {
		if it.CartID == item.CartID && it.BookID == item.BookID {
			return model.BookOrder{}, repo.ErrConflict
		}
	}
	item.ID = r.db.nextID()
	r.db.items[item.ID] = item
	return item, nil
}

func (r memItems) UpdateQuantity(ctx context.Context, itemID int64, qty int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	it, ok := r.db.items[itemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.Quantity = qty
	r.db.items[itemID] = it
	return nil
}

func (r memItems) DeleteByID(ctx context.Context, itemID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.items[itemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.db.items, itemID)
	return nil
}

// reviews
type memReviews struct{ db *memDB }

func (r memReviews) Create(ctx context.Context, review model.Review) (model.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rv := range r.db.reviews {
		if rv.UserID == review.UserID && rv.BookID == review.BookID {
			return model.Review{}, repo.ErrConflict
		}
	}
	review.ID = r.db.nextID()
	review.CreatedAt = time.Now()
	r.db.reviews[review.ID] = review
	return review, nil
}

func (r memReviews) ListByBookID(ctx context.Context, bookID int64) ([]model.Review, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Review
	for _, rv := range r.db.reviews {
		if rv.BookID == bookID {
			rv.User = r.db.users[rv.UserID]
			out = append(out, rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memReviews) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for _, rv := range r.db.reviews {
		if rv.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memReviews) ExistsByUserAndBook(ctx context.Context, userID int64, bookID int64) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rv := range r.db.reviews {
		if rv.UserID == userID && rv.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

// users
type memUsers struct{ db *memDB }

func (r memUsers) Create(ctx context.Context, user *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repo.ErrConflict
		}
	}
	user.ID = r.db.nextID()
	r.db.users[user.ID] = *user
	return nil
}

func (r memUsers) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (r memUsers) TouchLastLogin(ctx context.Context, userID int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return repo.ErrUserNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	r.db.users[userID] = u
	return nil
}

// tx
type memTxRepos struct{ db *memDB }

func (r memTxRepos) Carts() repo.CartRepository           { return memCarts{db: r.db} }
func (r memTxRepos) BookOrders() repo.BookOrderRepository { return memItems{db: r.db} }

type memTx struct{ db *memDB }

func (t memTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	snap := t.db.snapshot()
	if err := fn(memTxRepos{db: t.db}); err != nil {
		t.db.restore(snap)
		return err
	}
	return nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// gateways
type mockPayPal struct {
	mock.Mock
}

func (m *mockPayPal) CreatePayment(ctx context.Context, req payment.PayPalPaymentRequest) (payment.PayPalPayment, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.PayPalPayment), args.Error(1)
}

func (m *mockPayPal) FindPayment(ctx context.Context, paymentID string) (payment.PayPalPayment, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(payment.PayPalPayment), args.Error(1)
}

func (m *mockPayPal) ExecutePayment(ctx context.Context, p payment.PayPalPayment, payerID string) error {
	return m.Called(ctx, p, payerID).Error(0)
}

type mockStripe struct {
	mock.Mock
}

func (m *mockStripe) Charge(ctx context.Context, req payment.ChargeRequest) (payment.Charge, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Charge), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendMultipart(ctx context.Context, msg model.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type fakeGeo map[string]model.Location

func (g fakeGeo) LookupCity(ctx context.Context, ip string) (model.Location, bool) {
	loc, ok := g[ip]
	return loc, ok
}

type env struct {
	db       *memDB
	cart     *CartUsecase
	checkout *CheckoutUsecase
	paypal   *mockPayPal
	stripe   *mockStripe
	now      time.Time
}

func newEnv() *env {
	db := newMemDB()
	pp := new(mockPayPal)
	st := new(mockStripe)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	return &env{
		db:   db,
		cart: NewCartUsecase(memBooks{db}, memCarts{db}, memItems{db}, memTx{db}, nil),
		checkout: NewCheckoutUsecase(
			CheckoutConfig{
				Currency:    "USD",
				ReturnURL:   "http://localhost:8080/store/process/paypal/",
				CancelURL:   "http://localhost:8080/store/cancel/paypal/",
				Description: "Mystery Books order.",
			},
			pp, st, memCarts{db}, memItems{db}, memTx{db}, fixedClock{now}, nil,
		),
		paypal: pp,
		stripe: st,
		now:    now,
	}
}
