package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/infra/cache"
	"bookstore/internal/infra/db"
	"bookstore/internal/infra/geo"
	"bookstore/internal/infra/mail"
	infrapayment "bookstore/internal/infra/payment"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/logger"
	"bookstore/internal/repository"
	"bookstore/internal/server"
	"bookstore/internal/telemetry"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const paypalDescription = "Mystery Books order."

func main() {
	// .envは任意（本番は環境変数を直接渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "bookstore")
	if err != nil {
		log.Fatal("telemetry setup failed", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	var books repository.BookRepository = infraRepo.NewBookGormRepository(gormDB)
	carts := infraRepo.NewCartGormRepository(gormDB)
	items := infraRepo.NewBookOrderGormRepository(gormDB)
	reviews := infraRepo.NewReviewGormRepository(gormDB)
	users := infraRepo.NewUserGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	// カタログはRedisがあればキャッシュする
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			books = cache.NewCachedBookRepository(books, rdb, cfg.CatalogCacheTTL, log)
		}
	}

	//決済プロバイダ
	paypalGW, err := infrapayment.NewPayPalGateway(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.PayPalMode)
	if err != nil {
		log.Fatal("paypal client init failed", zap.Error(err))
	}
	stripeGW := infrapayment.NewStripeGateway(cfg.StripeSecretKey)

	// SMTP未設定なら割引メールは送らない
	var mailer usecase.Mailer
	if cfg.SMTPHost != "" {
		m, err := mail.NewSMTPMailer(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			log.Fatal("smtp mailer init failed", zap.Error(err))
		}
		mailer = m
	} else {
		log.Warn("SMTP_HOST not set, discount emails disabled")
	}

	var locator usecase.Geolocator
	if cfg.GeoIPDBPath != "" {
		l, err := geo.Open(cfg.GeoIPDBPath)
		if err != nil {
			log.Warn("geoip database unavailable", zap.Error(err))
		} else {
			defer func() { _ = l.Close() }()
			locator = l
		}
	}

	clock := usecase.SystemClock{}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg.JWTSecret, users, validator.NewAuthValidator(users), clock, log)
	cartUC := usecase.NewCartUsecase(books, carts, items, txm, log)
	checkoutUC := usecase.NewCheckoutUsecase(usecase.CheckoutConfig{
		Currency:    cfg.Currency,
		ReturnURL:   cfg.PublicBaseURL + "/store/process/paypal/",
		CancelURL:   cfg.PublicBaseURL + "/store/cancel/paypal/",
		Description: paypalDescription,
	}, paypalGW, stripeGW, carts, items, txm, clock, log)
	reviewUC := usecase.NewReviewUsecase(usecase.ReviewConfig{
		FromEmail: cfg.DiscountFromEmail,
	}, books, reviews, users, mailer, locator, log)
	catalogUC := usecase.NewCatalogUsecase(usecase.CatalogConfig{
		GoogleAPIKey: cfg.GoogleAPIKey,
		FallbackIP:   cfg.GeoIPFallbackIP,
	}, books, reviews, locator, log)

	//Handler生成
	e := server.New(server.Options{JWTSecret: cfg.JWTSecret}, users, server.Handlers{
		Auth:     handler.NewAuthHandler(authUC, cfg.CookieSecure),
		Catalog:  handler.NewCatalogHandler(catalogUC, reviewUC),
		Cart:     handler.NewCartHandler(cartUC),
		Checkout: handler.NewCheckoutHandler(checkoutUC),
	}, log)

	//Server起動
	if err := server.Start(ctx, e, cfg.Addr(), log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
