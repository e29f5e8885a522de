package usecase

import (
	"bytes"
	"context"
	"crypto/rand"
	"embed"
	"errors"
	htmltemplate "html/template"
	"math/big"
	"net/http"
	"strings"
	texttemplate "text/template"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

const (
	// この件数未満のレビュー投稿で割引コードを送る
	DiscountReviewLimit = 6
	DiscountPercent     = 10
	DiscountSubject     = "Discount Code"
	DiscountCodeLength  = 6
)

const discountCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

//go:embed templates/discount_email.txt templates/discount_email.html
var emailTemplates embed.FS

var (
	discountText = texttemplate.Must(texttemplate.ParseFS(emailTemplates, "templates/discount_email.txt"))
	discountHTML = htmltemplate.Must(htmltemplate.ParseFS(emailTemplates, "templates/discount_email.html"))
)

// メール送信（SMTPなど）の約束
type Mailer interface {
	SendMultipart(ctx context.Context, msg model.EmailMessage) error
}

// IPから位置を引く約束。引けなければfalse。
type Geolocator interface {
	LookupCity(ctx context.Context, ip string) (model.Location, bool)
}

type CodeGenerator func() (string, error)

type ReviewConfig struct {
	FromEmail string
}

type ReviewUsecase struct {
	cfg     ReviewConfig
	books   repo.BookRepository
	reviews repo.ReviewRepository
	users   repo.UserRepository
	mailer  Mailer
	geo     Geolocator
	newCode CodeGenerator
	log     *zap.Logger
}

// DI（mailer/geoはnil可）
func NewReviewUsecase(
	cfg ReviewConfig,
	books repo.BookRepository,
	reviews repo.ReviewRepository,
	users repo.UserRepository,
	mailer Mailer,
	geo Geolocator,
	log *zap.Logger,
) *ReviewUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReviewUsecase{
		cfg:     cfg,
		books:   books,
		reviews: reviews,
		users:   users,
		mailer:  mailer,
		geo:     geo,
		newCode: NewDiscountCode,
		log:     log,
	}
}

// テスト用
func (u *ReviewUsecase) WithCodeGenerator(gen CodeGenerator) *ReviewUsecase {
	u.newCode = gen
	return u
}

type SubmitReviewInput struct {
	Text     string
	RemoteIP string
}

type SubmitReviewResult struct {
	Review       model.Review `json:"review"`
	DiscountSent bool         `json:"discount_sent"`
}

// SubmitReview はレビューを保存し、投稿数が上限未満なら割引コードをメールする。
// メールの失敗はログのみ（レビューは取り消さない）。
func (u *ReviewUsecase) SubmitReview(ctx context.Context, buyerID int64, bookID int64, in SubmitReviewInput) (SubmitReviewResult, error) {
	if buyerID <= 0 {
		return SubmitReviewResult{}, errUnauthorized()
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return SubmitReviewResult{}, newKindError(ErrValidation, http.StatusBadRequest, "review text is required")
	}

	if _, err := u.books.FindByID(ctx, bookID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return SubmitReviewResult{}, errBookNotFound()
		}
		return SubmitReviewResult{}, u.wrap(err, "book lookup failed")
	}

	user, err := u.users.FindByID(ctx, buyerID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return SubmitReviewResult{}, errUnauthorized()
	}
	if err != nil {
		return SubmitReviewResult{}, u.wrap(err, "user lookup failed")
	}

	//同じ本へのレビューは1回まで
	exists, err := u.reviews.ExistsByUserAndBook(ctx, buyerID, bookID)
	if err != nil {
		return SubmitReviewResult{}, u.wrap(err, "review lookup failed")
	}
	if exists {
		return SubmitReviewResult{}, newKindError(ErrDuplicateReview, http.StatusConflict, "you have already reviewed this book")
	}

	review := model.Review{UserID: buyerID, BookID: bookID, Text: text}
	if u.geo != nil && in.RemoteIP != "" {
		if loc, ok := u.geo.LookupCity(ctx, in.RemoteIP); ok {
			review.Latitude = &loc.Latitude
			review.Longitude = &loc.Longitude
		}
	}

	created, err := u.reviews.Create(ctx, review)
	if errors.Is(err, repo.ErrConflict) {
		return SubmitReviewResult{}, newKindError(ErrDuplicateReview, http.StatusConflict, "you have already reviewed this book")
	}
	if err != nil {
		return SubmitReviewResult{}, u.wrap(err, "review create failed")
	}

	return SubmitReviewResult{
		Review:       created,
		DiscountSent: u.maybeSendDiscount(ctx, user),
	}, nil
}

func (u *ReviewUsecase) maybeSendDiscount(ctx context.Context, user *model.User) bool {
	count, err := u.reviews.CountByUserID(ctx, user.ID)
	if err != nil {
		u.log.Warn("review count failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return false
	}
	if count >= DiscountReviewLimit {
		return false
	}
	if u.mailer == nil {
		u.log.Warn("discount email skipped: mailer not configured", zap.Int64("user_id", user.ID))
		return false
	}

	code, err := u.newCode()
	if err != nil {
		u.log.Warn("discount code generation failed", zap.Error(err))
		return false
	}

	msg, err := BuildDiscountEmail(u.cfg.FromEmail, user, code)
	if err != nil {
		u.log.Warn("discount email render failed", zap.Error(err))
		return false
	}
	if err := u.mailer.SendMultipart(ctx, msg); err != nil {
		u.log.Warn("discount email delivery failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return false
	}

	u.log.Info("discount email sent", zap.Int64("user_id", user.ID), zap.Int64("review_count", count))
	return true
}

type discountEmailData struct {
	Username string
	Code     string
	Discount int
}

// 割引コードメール（テキスト+HTML）を組み立てる
func BuildDiscountEmail(from string, user *model.User, code string) (model.EmailMessage, error) {
	data := discountEmailData{Username: user.Username, Code: code, Discount: DiscountPercent}

	var text, html bytes.Buffer
	if err := discountText.Execute(&text, data); err != nil {
		return model.EmailMessage{}, err
	}
	if err := discountHTML.Execute(&html, data); err != nil {
		return model.EmailMessage{}, err
	}

	return model.EmailMessage{
		From:    from,
		To:      user.Email,
		Subject: DiscountSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// 大文字英数字6桁
func NewDiscountCode() (string, error) {
	max := big.NewInt(int64(len(discountCodeAlphabet)))
	b := make([]byte, DiscountCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = discountCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func (u *ReviewUsecase) wrap(err error, msg string) error {
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	u.log.Error(msg, zap.Error(err))
	return errDB()
}
