package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	JWTSecret    string // JWT署名シークレット
	CookieSecure bool   // access_token cookieのSecure属性

	GoEnv         string // dev/production
	PublicBaseURL string // 決済プロバイダの戻り先URLの組み立てに使う
	GoogleAPIKey  string // 店舗ページの地図表示用

	Currency string // USD

	PayPalMode         string // sandbox/live
	PayPalClientID     string
	PayPalClientSecret string
	StripeSecretKey    string

	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	DiscountFromEmail string

	GeoIPDBPath     string
	GeoIPFallbackIP string // 自分のIPで引けなかったときの代替

	RedisAddr       string
	CatalogCacheTTL time.Duration

	OTLPEndpoint string
}

// Loadは環境変数
func Load() (Config, error) {
	smtpPort, err := atoiDefault("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := durationDefault("CATALOG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		CookieSecure: envBool("COOKIE_SECURE", false),

		GoEnv:         getenv("GO_ENV", "dev"),
		PublicBaseURL: strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		GoogleAPIKey:  os.Getenv("GOOGLE_API_KEY"),

		Currency: strings.ToUpper(getenv("CURRENCY", "USD")),

		PayPalMode:         getenv("PAYPAL_MODE", "sandbox"),
		PayPalClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		StripeSecretKey:    os.Getenv("STRIPE_SECRET_KEY"),

		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          smtpPort,
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPassword:      os.Getenv("SMTP_PASS"),
		DiscountFromEmail: getenv("DISCOUNT_FROM_EMAIL", "discounts@mysterybooks.com"),

		GeoIPDBPath:     os.Getenv("GEOIP_DB_PATH"),
		GeoIPFallbackIP: getenv("GEOIP_FALLBACK_IP", "72.14.207.99"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CatalogCacheTTL: cacheTTL,

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PayPalMode != "sandbox" && cfg.PayPalMode != "live" {
		return Config{}, fmt.Errorf("PAYPAL_MODE must be sandbox or live")
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("CURRENCY must be an ISO 4217 code")
	}

	return cfg, nil
}

// Addrはecho.Startに渡すlisten先
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production"
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}
