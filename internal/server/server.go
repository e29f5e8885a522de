package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/handler"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Catalog  *handler.CatalogHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
}

type Options struct {
	JWTSecret string
	// POST（決済・レビュー）の1IPあたりの上限
	PostRateLimit rate.Limit
	PostBurst     int
}

// Newはルーティング済みのechoを返す
func New(opts Options, users repository.UserRepository, h Handlers, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewRequestValidator()

	// /store 配下は末尾スラッシュ付きのURLに揃える。
	// GET/HEADはリダイレクト、それ以外はbodyを保つため内部で書き換える。
	e.Pre(echomw.AddTrailingSlashWithConfig(echomw.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return !isStorePath(c) || !isSafeMethod(c)
		},
		RedirectCode: http.StatusMovedPermanently,
	}))
	e.Pre(echomw.AddTrailingSlashWithConfig(echomw.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return !isStorePath(c) || isSafeMethod(c)
		},
	}))
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Auth.RegisterRoutes(e,
		middleware.AuthJWT(opts.JWTSecret),
		middleware.TokenVersionGuard(users),
	)

	store := e.Group("/store",
		middleware.OptionalAuthJWT(opts.JWTSecret),
		middleware.TokenVersionGuard(users),
	)

	requireBuyer := middleware.RequireBuyer("/store/")
	postLimit := postRateLimiter(opts)

	h.Catalog.RegisterRoutes(store, requireBuyer, postLimit)
	h.Cart.RegisterRoutes(store, requireBuyer)
	h.Checkout.RegisterRoutes(store, requireBuyer, postLimit)

	return e
}

func isStorePath(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/store")
}

func isSafeMethod(c echo.Context) bool {
	m := c.Request().Method
	return m == http.MethodGet || m == http.MethodHead
}

func postRateLimiter(opts Options) echo.MiddlewareFunc {
	limit := opts.PostRateLimit
	if limit <= 0 {
		limit = rate.Limit(2)
	}
	burst := opts.PostBurst
	if burst <= 0 {
		burst = 5
	}

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      limit,
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, handler.ErrorResponse{Error: "forbidden"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, handler.ErrorResponse{Error: "too many requests"})
		},
	})
}

// Startはctxがキャンセルされるまでサーブし、その後graceful shutdownする
func Start(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("server shutting down")
	return e.Shutdown(shutdownCtx)
}
