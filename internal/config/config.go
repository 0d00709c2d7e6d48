package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	appenv "github.com/giftry/shophook/internal/env"
)

type Config struct {
	Port           string             `env:"PORT" envDefault:"8080"`
	Env            appenv.Environment `env:"ENV" envDefault:"development"`
	HandlerTimeout time.Duration      `env:"HANDLER_TIMEOUT" envDefault:"30s"`

	Shopify   Shopify   `envPrefix:"SHOPIFY_"`
	RateLimit RateLimit `envPrefix:"RATE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Audit     Audit     `envPrefix:"AUDIT_"`
}

type Shopify struct {
	// APISecret signs every webhook delivery. Registrar calls additionally
	// need AccessToken and ShopDomain.
	APISecret       string   `env:"API_SECRET,required"`
	CallbackBaseURL string   `env:"CALLBACK_BASE_URL,required"`
	AccessToken     string   `env:"ACCESS_TOKEN"`
	ShopDomain      string   `env:"SHOP_DOMAIN"`
	Topics          []string `env:"WEBHOOK_TOPICS" envDefault:"orders/create,orders/updated,customers/data_request,customers/redact,shop/redact"`
}

type RateLimit struct {
	Limit  int           `env:"LIMIT" envDefault:"20"`
	Window time.Duration `env:"WINDOW" envDefault:"60s"`
}

type Redis struct {
	// URL is optional: when empty the server falls back to the in-memory
	// backend, which is only safe for single-instance deployments.
	URL string `env:"URL"`
}

type Audit struct {
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"`
}

func Read() (Config, error) {
	return env.ParseAs[Config]()
}

func (c Config) CallbackURL() string {
	return c.Shopify.CallbackBaseURL + "/webhooks/shopify"
}
