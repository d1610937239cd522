package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/models"
)

type ExchangeConfig struct {
	Name        string `validate:"required"`
	Credentials *models.Credentials
	Pairs       []string
	Depth       int `validate:"gte=0"`
}

type Config struct {
	AppPort         string           `validate:"required,numeric"`
	LogLevel        string           `validate:"oneof=trace debug info warn error"`
	RefreshInterval time.Duration    `validate:"gt=0"`
	HTTPTimeout     time.Duration    `validate:"gt=0"`
	ProxyAddr       string           `validate:"omitempty,hostname_port"`
	Exchanges       []ExchangeConfig `validate:"min=1,dive"`
}

var validate = validator.New()

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, reading from environment directly")
	}

	refresh, err := time.ParseDuration(getEnv("REFRESH_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg := &Config{
		AppPort:         getEnv("APP_PORT", "3000"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		RefreshInterval: refresh,
		HTTPTimeout:     timeout,
		ProxyAddr:       getEnv("PROXY_ADDR", ""),
	}

	for _, name := range splitList(getEnv("EXCHANGES", strings.Join(exchange.ProfileNames(), ","))) {
		ec, err := loadExchange(name)
		if err != nil {
			return nil, err
		}
		cfg.Exchanges = append(cfg.Exchanges, ec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks struct constraints, then that every exchange is supported
// and its configured depth is one the exchange accepts.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	for _, ec := range c.Exchanges {
		profile, ok := exchange.LookupProfile(ec.Name)
		if !ok {
			return fmt.Errorf("unsupported exchange %q (supported: %s)", ec.Name, strings.Join(exchange.ProfileNames(), ", "))
		}
		if ec.Depth != 0 {
			if err := profile.Depth.Validate(ec.Depth); err != nil {
				return fmt.Errorf("%s depth: %w", ec.Name, err)
			}
		}
	}
	return nil
}

func loadExchange(name string) (ExchangeConfig, error) {
	prefix := strings.ToUpper(name) + "_"

	ec := ExchangeConfig{
		Name:  strings.ToLower(name),
		Pairs: splitList(getEnv(prefix+"PAIRS", "")),
	}

	if raw := getEnv(prefix+"DEPTH", ""); raw != "" {
		depth, err := strconv.Atoi(raw)
		if err != nil {
			return ExchangeConfig{}, fmt.Errorf("invalid %sDEPTH: %w", prefix, err)
		}
		ec.Depth = depth
	}

	key := getEnv(prefix+"API_KEY", "")
	secret := getEnv(prefix+"API_SECRET", "")
	if key != "" && secret != "" {
		testnet, _ := strconv.ParseBool(getEnv(prefix+"TESTNET", "false"))
		ec.Credentials = &models.Credentials{
			APIKey:     key,
			APISecret:  secret,
			Passphrase: getEnv(prefix+"API_PASSPHRASE", ""),
			Testnet:    testnet,
		}
	}

	return ec, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
