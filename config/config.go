package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Service names accepted by SERVICE.
const (
	ServiceAll         = "all"
	ServiceUser        = "user"
	ServiceTable       = "table"
	ServiceFood        = "food"
	ServiceReservation = "reservation"
	ServiceOrder       = "order"
	ServicePayment     = "payment"
)

var knownServices = []string{
	ServiceAll, ServiceUser, ServiceTable, ServiceFood,
	ServiceReservation, ServiceOrder, ServicePayment,
}

type Config struct {
	Service     string         `mapstructure:"service"`
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	NATS        NATSConfig     `mapstructure:"nats"`
	Services    ServiceURLs    `mapstructure:"services"`
	JWT         JWTConfig      `mapstructure:"jwt"`
	Log         LogConfig      `mapstructure:"log"`
	Business    BusinessConfig `mapstructure:"business"`

	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	// ServiceToken is the bearer token background workers present to remote
	// services. It belongs to a dedicated service account.
	ServiceToken string `mapstructure:"service_token"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogMode      bool   `mapstructure:"log_mode"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// ServiceURLs are the base URLs used when a collaborator runs in another process.
type ServiceURLs struct {
	User        string `mapstructure:"user"`
	Table       string `mapstructure:"table"`
	Food        string `mapstructure:"food"`
	Order       string `mapstructure:"order"`
	Reservation string `mapstructure:"reservation"`
	Payment     string `mapstructure:"payment"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BusinessConfig holds the restaurant rules that staff may want to tune.
type BusinessConfig struct {
	TaxPercentage      decimal.Decimal `mapstructure:"-"`
	DepositAmount      decimal.Decimal `mapstructure:"-"`
	DepositThreshold   int             `mapstructure:"deposit_threshold"`
	SlotDuration       time.Duration   `mapstructure:"slot_duration"`
	BookingWindow      time.Duration   `mapstructure:"booking_window"`
	LowStockThreshold  int             `mapstructure:"low_stock_threshold"`
	ReconcileInterval  time.Duration   `mapstructure:"reconcile_interval"`
	ReconcileMaxTries  int             `mapstructure:"reconcile_max_tries"`
	PaymentCodeRetries int             `mapstructure:"payment_code_retries"`
}

// Default returns a configuration usable without any file or environment.
func Default() *Config {
	return &Config{
		Service:     ServiceAll,
		Environment: "development",
		Server: ServerConfig{
			Port:           8080,
			Mode:           "debug",
			AllowedOrigins: []string{"*"},
			RateLimit:      20,
			RateBurst:      40,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "file::memory:?cache=shared",
			MaxIdleConns: 10,
			MaxOpenConns: 100,
		},
		Redis: RedisConfig{LockTTL: 10 * time.Second},
		JWT:   JWTConfig{Secret: "change-me", TTL: 24 * time.Hour},
		Log:   LogConfig{Level: "info", Format: "text"},
		Business: BusinessConfig{
			TaxPercentage:      decimal.NewFromInt(10),
			DepositAmount:      decimal.NewFromInt(100000),
			DepositThreshold:   6,
			SlotDuration:       2 * time.Hour,
			BookingWindow:      2 * time.Hour,
			LowStockThreshold:  10,
			ReconcileInterval:  30 * time.Second,
			ReconcileMaxTries:  8,
			PaymentCodeRetries: 20,
		},
		UpstreamTimeout: 5 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("service", d.Service)
	v.SetDefault("environment", d.Environment)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.log_mode", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", d.Redis.LockTTL)
	v.SetDefault("nats.url", "")
	for _, name := range []string{"user", "table", "food", "order", "reservation", "payment"} {
		v.SetDefault("services."+name, "")
	}
	v.SetDefault("jwt.secret", d.JWT.Secret)
	v.SetDefault("jwt.ttl", d.JWT.TTL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("business.tax_percentage", d.Business.TaxPercentage.String())
	v.SetDefault("business.deposit_amount", d.Business.DepositAmount.String())
	v.SetDefault("business.deposit_threshold", d.Business.DepositThreshold)
	v.SetDefault("business.slot_duration", d.Business.SlotDuration)
	v.SetDefault("business.booking_window", d.Business.BookingWindow)
	v.SetDefault("business.low_stock_threshold", d.Business.LowStockThreshold)
	v.SetDefault("business.reconcile_interval", d.Business.ReconcileInterval)
	v.SetDefault("business.reconcile_max_tries", d.Business.ReconcileMaxTries)
	v.SetDefault("business.payment_code_retries", d.Business.PaymentCodeRetries)
	v.SetDefault("upstream_timeout", d.UpstreamTimeout)
	v.SetDefault("service_token", "")
}

// envAliases maps the flat environment names used by deployments onto keys.
var envAliases = map[string]string{
	"service":                       "SERVICE",
	"environment":                   "APP_ENV",
	"server.port":                   "PORT",
	"server.mode":                   "GIN_MODE",
	"database.driver":               "DB_DRIVER",
	"database.dsn":                  "DB_DSN",
	"redis.addr":                    "REDIS_ADDR",
	"redis.password":                "REDIS_PASSWORD",
	"nats.url":                      "NATS_URL",
	"services.user":                 "USER_SERVICE_URL",
	"services.table":                "TABLE_SERVICE_URL",
	"services.food":                 "FOOD_SERVICE_URL",
	"services.order":                "ORDER_SERVICE_URL",
	"services.reservation":          "RESERVATION_SERVICE_URL",
	"services.payment":              "PAYMENT_SERVICE_URL",
	"jwt.secret":                    "JWT_SECRET",
	"log.level":                     "LOG_LEVEL",
	"log.format":                    "LOG_FORMAT",
	"upstream_timeout":              "UPSTREAM_TIMEOUT",
	"service_token":                 "SERVICE_TOKEN",
	"business.tax_percentage":       "TAX_PERCENTAGE",
	"business.deposit_amount":       "DEPOSIT_AMOUNT",
	"business.deposit_threshold":    "DEPOSIT_THRESHOLD",
	"business.low_stock_threshold":  "LOW_STOCK_THRESHOLD",
	"business.payment_code_retries": "PAYMENT_CODE_RETRIES",
	"business.reconcile_interval":   "RECONCILE_INTERVAL",
	"business.reconcile_max_tries":  "RECONCILE_MAX_TRIES",
	"business.slot_duration":        "SLOT_DURATION",
	"business.booking_window":       "BOOKING_WINDOW",
}

// Load reads .env (if present), then an optional YAML file, then the environment.
// configPath may be empty.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var err error
	if cfg.Business.TaxPercentage, err = decimal.NewFromString(v.GetString("business.tax_percentage")); err != nil {
		return nil, fmt.Errorf("invalid tax percentage: %w", err)
	}
	if cfg.Business.DepositAmount, err = decimal.NewFromString(v.GetString("business.deposit_amount")); err != nil {
		return nil, fmt.Errorf("invalid deposit amount: %w", err)
	}
	cfg.Service = strings.ToLower(strings.TrimSpace(cfg.Service))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	known := false
	for _, s := range knownServices {
		if c.Service == s {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown service %q", c.Service)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Business.TaxPercentage.IsNegative() || c.Business.DepositAmount.IsNegative() {
		return errors.New("tax percentage and deposit amount must not be negative")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.New("upstream timeout must be positive")
	}
	return nil
}

// Runs reports whether this process hosts the named service.
func (c *Config) Runs(service string) bool {
	return c.Service == ServiceAll || c.Service == service
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
