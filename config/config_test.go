package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EXCHANGES", "bingx")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.ProxyAddr)
	require.Len(t, cfg.Exchanges, 1)
	assert.Equal(t, exchange.BingX, cfg.Exchanges[0].Name)
	assert.Nil(t, cfg.Exchanges[0].Credentials)
	assert.Zero(t, cfg.Exchanges[0].Depth)
}

func TestLoadExchangeSettings(t *testing.T) {
	t.Setenv("EXCHANGES", "Bybit, gate")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REFRESH_INTERVAL", "30s")
	t.Setenv("PROXY_ADDR", "127.0.0.1:1080")
	t.Setenv("BYBIT_PAIRS", "BTCUSDT, ETHUSDT,,")
	t.Setenv("BYBIT_DEPTH", "50")
	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")
	t.Setenv("BYBIT_TESTNET", "true")
	t.Setenv("GATE_API_KEY", "only-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, "127.0.0.1:1080", cfg.ProxyAddr)
	require.Len(t, cfg.Exchanges, 2)

	bybit := cfg.Exchanges[0]
	assert.Equal(t, exchange.Bybit, bybit.Name)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, bybit.Pairs)
	assert.Equal(t, 50, bybit.Depth)
	assert.Equal(t, &models.Credentials{APIKey: "key", APISecret: "secret", Testnet: true}, bybit.Credentials)

	gate := cfg.Exchanges[1]
	assert.Equal(t, exchange.Gate, gate.Name)
	assert.Nil(t, gate.Credentials, "credentials need both key and secret")
	assert.Empty(t, gate.Pairs)
}

func TestLoadAllExchangesByDefault(t *testing.T) {
	// Setenv registers the restore; the variable itself must be absent.
	t.Setenv("EXCHANGES", "")
	require.NoError(t, os.Unsetenv("EXCHANGES"))

	cfg, err := Load()
	require.NoError(t, err)
	names := make([]string, len(cfg.Exchanges))
	for i, ec := range cfg.Exchanges {
		names[i] = ec.Name
	}
	assert.Equal(t, exchange.ProfileNames(), names)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unsupported exchange", map[string]string{"EXCHANGES": "binance"}},
		{"no exchanges", map[string]string{"EXCHANGES": " , "}},
		{"depth not accepted", map[string]string{"EXCHANGES": "bingx", "BINGX_DEPTH": "7"}},
		{"depth not a number", map[string]string{"EXCHANGES": "gate", "GATE_DEPTH": "ten"}},
		{"bad refresh interval", map[string]string{"EXCHANGES": "gate", "REFRESH_INTERVAL": "soon"}},
		{"zero refresh interval", map[string]string{"EXCHANGES": "gate", "REFRESH_INTERVAL": "0s"}},
		{"bad port", map[string]string{"EXCHANGES": "gate", "APP_PORT": "http"}},
		{"bad log level", map[string]string{"EXCHANGES": "gate", "LOG_LEVEL": "loud"}},
		{"bad proxy", map[string]string{"EXCHANGES": "gate", "PROXY_ADDR": "not a proxy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,b,, "))
	assert.Nil(t, splitList(""))
}
