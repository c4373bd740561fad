package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Exchange.Mode != "paper" {
		t.Errorf("Exchange.Mode = %q, want paper", cfg.Exchange.Mode)
	}
	if len(cfg.Exchange.Symbols) != 1 || cfg.Exchange.Symbols[0] != "BTCUSDT" {
		t.Errorf("Exchange.Symbols = %v, want [BTCUSDT]", cfg.Exchange.Symbols)
	}
	if cfg.Bot.OrderTimeout != 5*time.Second {
		t.Errorf("Bot.OrderTimeout = %v, want 5s", cfg.Bot.OrderTimeout)
	}
	if cfg.Bot.AggregationPolicy != "consensus" {
		t.Errorf("Bot.AggregationPolicy = %q, want consensus", cfg.Bot.AggregationPolicy)
	}
	if cfg.Advisor.Enabled {
		t.Error("Advisor.Enabled = true, want false by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRADE_SYMBOLS", "BTCUSDT, ETHUSDT ,SOLUSDT")
	t.Setenv("ORDER_TIMEOUT", "10s")
	t.Setenv("STALE_ORDER_TIMEOUT", "5m")
	t.Setenv("USE_TRAILING_STOP", "false")
	t.Setenv("PAPER_BALANCE", "25000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(cfg.Exchange.Symbols) != len(want) {
		t.Fatalf("Symbols = %v, want %v", cfg.Exchange.Symbols, want)
	}
	for i, s := range want {
		if cfg.Exchange.Symbols[i] != s {
			t.Errorf("Symbols[%d] = %q, want %q", i, cfg.Exchange.Symbols[i], s)
		}
	}
	if cfg.Bot.OrderTimeout != 10*time.Second {
		t.Errorf("OrderTimeout = %v, want 10s", cfg.Bot.OrderTimeout)
	}
	if cfg.Bot.UseTrailing {
		t.Error("UseTrailing = true, want false")
	}
	if cfg.Exchange.PaperBalance != 25000 {
		t.Errorf("PaperBalance = %v, want 25000", cfg.Exchange.PaperBalance)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "live mode requires api keys",
			env:     map[string]string{"EXCHANGE_MODE": "live"},
			wantErr: "BINANCE_API_KEY",
		},
		{
			name:    "unknown exchange mode",
			env:     map[string]string{"EXCHANGE_MODE": "backtest"},
			wantErr: "EXCHANGE_MODE",
		},
		{
			name: "stale timeout must exceed order timeout",
			env: map[string]string{
				"ORDER_TIMEOUT":       "1m",
				"STALE_ORDER_TIMEOUT": "30s",
			},
			wantErr: "STALE_ORDER_TIMEOUT",
		},
		{
			name:    "port out of range",
			env:     map[string]string{"SERVER_PORT": "70000"},
			wantErr: "SERVER_PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRiskConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "risk.yaml")

	yamlBody := `
max_position_size: 2500
max_daily_loss: 400
risk_per_trade_pct: 1.0
max_leverage: 5
allowed_symbols:
  - BTCUSDT
  - ETHUSDT
cooldown_duration: 10m
force_flatten_on_max_loss: true
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadRiskConfig(path)
	if err != nil {
		t.Fatalf("LoadRiskConfig: %v", err)
	}

	if cfg.MaxPositionSize != 2500 {
		t.Errorf("MaxPositionSize = %v, want 2500", cfg.MaxPositionSize)
	}
	if time.Duration(cfg.CooldownDuration) != 10*time.Minute {
		t.Errorf("CooldownDuration = %v, want 10m", cfg.CooldownDuration)
	}
	if !cfg.ForceFlattenOnMax {
		t.Error("ForceFlattenOnMax = false, want true")
	}
	// Непрописанные поля остаются дефолтными
	if cfg.StopLossPct != 2.0 {
		t.Errorf("StopLossPct = %v, want default 2.0", cfg.StopLossPct)
	}
	if len(cfg.AllowedSymbols) != 2 {
		t.Errorf("AllowedSymbols = %v, want 2 entries", cfg.AllowedSymbols)
	}

	limits := cfg.ToLimits()
	if limits.MaxLeverage != 5 {
		t.Errorf("MaxLeverage = %d, want 5", limits.MaxLeverage)
	}
	if err := limits.Validate(); err != nil {
		t.Errorf("converted limits invalid: %v", err)
	}
}

func TestLoadRiskConfigMissingFile(t *testing.T) {
	cfg, err := LoadRiskConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults, got %v", err)
	}
	def := DefaultRiskConfig()
	if cfg.MaxPositionSize != def.MaxPositionSize {
		t.Errorf("MaxPositionSize = %v, want default %v", cfg.MaxPositionSize, def.MaxPositionSize)
	}
}

func TestLoadRiskConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk.yaml")
	if err := os.WriteFile(path, []byte("max_position_size: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRiskConfig(path); err == nil {
		t.Fatal("malformed YAML should return error")
	}
}

func TestDSNWithoutPassword(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "bot", Password: "secret", Name: "tradebot", SSLMode: "disable"}
	if strings.Contains(d.DSNWithoutPassword(), "secret") {
		t.Error("DSNWithoutPassword leaks password")
	}
	if !strings.Contains(d.DSN(), "password=secret") {
		t.Error("DSN missing password")
	}
}
