package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"
)

// Config holds every runtime setting of the POS API.
type Config struct {
	Port    string
	Env     string
	DB      Database
	JWT     JWT
	Redis   Redis
	Mpesa   Mpesa
	CORS    []string
	TaxRate decimal.Decimal
}

type Database struct {
	Driver string
	URL    string
}

type JWT struct {
	Secret  string
	Expires time.Duration
}

// Redis is optional; an empty Addr keeps code generation locks in process.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Mpesa struct {
	Env            string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	PartyB         string
	CountryCode    string
	Timeout        time.Duration
}

// IsDevelopment reports whether the API runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads an optional .env file and config.yaml, then resolves every key
// from the environment with sensible defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "pos.db")
	v.SetDefault("JWT_EXPIRES_MINUTES", 720)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MPESA_ENV", "sandbox")
	v.SetDefault("MPESA_COUNTRY_CODE", "254")
	v.SetDefault("MPESA_TIMEOUT_SECONDS", 30)
	v.SetDefault("TAX_RATE", "0")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port: v.GetString("PORT"),
		Env:  strings.ToLower(v.GetString("APP_ENV")),
		DB: Database{
			Driver: strings.ToLower(v.GetString("DB_DRIVER")),
			URL:    v.GetString("DATABASE_URL"),
		},
		JWT: JWT{
			Secret:  v.GetString("JWT_SECRET"),
			Expires: time.Duration(v.GetInt("JWT_EXPIRES_MINUTES")) * time.Minute,
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Mpesa: Mpesa{
			Env:            strings.ToLower(v.GetString("MPESA_ENV")),
			BaseURL:        v.GetString("MPESA_BASE_URL"),
			ConsumerKey:    v.GetString("MPESA_CONSUMER_KEY"),
			ConsumerSecret: v.GetString("MPESA_CONSUMER_SECRET"),
			ShortCode:      v.GetString("MPESA_SHORTCODE"),
			PassKey:        v.GetString("MPESA_PASSKEY"),
			CallbackURL:    v.GetString("MPESA_CALLBACK_URL"),
			PartyB:         v.GetString("MPESA_PARTY_B"),
			CountryCode:    v.GetString("MPESA_COUNTRY_CODE"),
			Timeout:        time.Duration(v.GetInt("MPESA_TIMEOUT_SECONDS")) * time.Second,
		},
	}

	for _, origin := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORS = append(cfg.CORS, origin)
		}
	}

	if cfg.Mpesa.BaseURL == "" {
		switch cfg.Mpesa.Env {
		case "production":
			cfg.Mpesa.BaseURL = productionBaseURL
		default:
			cfg.Mpesa.BaseURL = sandboxBaseURL
		}
	}
	if cfg.Mpesa.PartyB == "" {
		cfg.Mpesa.PartyB = cfg.Mpesa.ShortCode
	}

	rate, err := decimal.NewFromString(v.GetString("TAX_RATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE: %w", err)
	}
	cfg.TaxRate = rate

	if cfg.JWT.Secret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET is required outside development")
		}
		cfg.JWT.Secret = "dev-secret"
	}

	switch cfg.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	return cfg, nil
}
