package usecase

import (
	"context"
	"errors"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

type CatalogConfig struct {
	GoogleAPIKey string
	// 閲覧者のIPで引けなかったときに使う
	FallbackIP string
}

type CatalogUsecase struct {
	cfg     CatalogConfig
	books   repo.BookRepository
	reviews repo.ReviewRepository
	geo     Geolocator
	log     *zap.Logger
}

// DI（geoはnil可）
func NewCatalogUsecase(cfg CatalogConfig, books repo.BookRepository, reviews repo.ReviewRepository, geo Geolocator, log *zap.Logger) *CatalogUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogUsecase{cfg: cfg, books: books, reviews: reviews, geo: geo, log: log}
}

type StorePage struct {
	Books        []model.Book `json:"books"`
	GoogleAPIKey string       `json:"google_api_key,omitempty"`
}

type ReviewView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BookDetailPage struct {
	Book    model.Book   `json:"book"`
	Reviews []ReviewView `json:"reviews"`
	// ログイン済みで未レビューのときだけフォームを出す
	CanReview bool            `json:"can_review"`
	Geo       *model.Location `json:"geo_info,omitempty"`
}

func (u *CatalogUsecase) ListBooks(ctx context.Context) (StorePage, error) {
	books, err := u.books.ListAll(ctx)
	if err != nil {
		u.log.Error("book list failed", zap.Error(err))
		return StorePage{}, errDB()
	}
	return StorePage{Books: books, GoogleAPIKey: u.cfg.GoogleAPIKey}, nil
}

// buyerIDは未ログインなら0
func (u *CatalogUsecase) BookDetail(ctx context.Context, buyerID int64, bookID int64, remoteIP string) (BookDetailPage, error) {
	if bookID <= 0 {
		return BookDetailPage{}, errBookNotFound()
	}

	book, err := u.books.FindByID(ctx, bookID)
	if errors.Is(err, repo.ErrNotFound) {
		return BookDetailPage{}, errBookNotFound()
	}
	if err != nil {
		u.log.Error("book lookup failed", zap.Int64("book_id", bookID), zap.Error(err))
		return BookDetailPage{}, errDB()
	}

	reviews, err := u.reviews.ListByBookID(ctx, bookID)
	if err != nil {
		u.log.Error("review list failed", zap.Int64("book_id", bookID), zap.Error(err))
		return BookDetailPage{}, errDB()
	}

	page := BookDetailPage{
		Book:    book,
		Reviews: make([]ReviewView, 0, len(reviews)),
		Geo:     u.locate(ctx, remoteIP),
	}
	for _, r := range reviews {
		page.Reviews = append(page.Reviews, ReviewView{
			ID:        r.ID,
			Username:  r.User.Username,
			Text:      r.Text,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			CreatedAt: r.CreatedAt,
		})
	}

	if buyerID > 0 {
		reviewed, err := u.reviews.ExistsByUserAndBook(ctx, buyerID, bookID)
		if err != nil {
			u.log.Warn("review gating lookup failed", zap.Int64("user_id", buyerID), zap.Error(err))
		}
		page.CanReview = err == nil && !reviewed
	}
	return page, nil
}

// 閲覧者のIP → だめなら代替IP。どちらもだめならnil。
func (u *CatalogUsecase) locate(ctx context.Context, ip string) *model.Location {
	if u.geo == nil {
		return nil
	}
	if ip != "" {
		if loc, ok := u.geo.LookupCity(ctx, ip); ok {
			return &loc
		}
	}
	if u.cfg.FallbackIP != "" {
		if loc, ok := u.geo.LookupCity(ctx, u.cfg.FallbackIP); ok {
			return &loc
		}
	}
	u.log.Debug("geo lookup failed", zap.String("ip", ip))
	return nil
}
