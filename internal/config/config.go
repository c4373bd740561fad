package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
//
// Статичные параметры (сервер, БД, биржа) читаются из переменных
// окружения один раз на старте. Торговые лимиты живут в отдельном
// YAML-файле и перечитываются на лету (watcher.go).
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Exchange ExchangeConfig
	Bot      BotConfig
	Advisor  AdvisorConfig
	Logging  LoggingConfig

	// Путь к YAML с торговыми лимитами
	RiskFile string
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ExchangeConfig - подключение к бирже
type ExchangeConfig struct {
	Mode      string // paper, live
	APIKey    string
	APISecret string
	Testnet   bool
	Symbols   []string

	// Параметры paper-режима
	PaperBalance  float64
	PaperSlippage float64 // проскальзывание симулятора, %
}

// BotConfig - настройки торгового ядра
type BotConfig struct {
	// Таймауты исполнения
	OrderTimeout      time.Duration // таймаут отправки ордера
	StaleOrderTimeout time.Duration // возраст отмены зависшего ордера

	// Периодические задачи
	ReconcileInterval time.Duration // REST-сверка с биржей
	AccountInterval   time.Duration // обновление баланса

	// Точность объёма ордера (знаков после запятой)
	QtyPrecision int

	// Стратегии
	CandleInterval    time.Duration // интервал свечей для стратегий
	AggregationPolicy string        // weighted_average, consensus, best_confidence, conservative

	// Трейлинг-стоп
	UseTrailing           bool
	TrailingActivationPct float64
	TrailingDistancePct   float64
}

// AdvisorConfig - внешний ML-советник
type AdvisorConfig struct {
	Enabled  bool
	URL      string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradebot"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Exchange: ExchangeConfig{
			Mode:          getEnv("EXCHANGE_MODE", "paper"),
			APIKey:        getEnv("BINANCE_API_KEY", ""),
			APISecret:     getEnv("BINANCE_API_SECRET", ""),
			Testnet:       getEnvAsBool("BINANCE_TESTNET", false),
			Symbols:       getEnvAsList("TRADE_SYMBOLS", []string{"BTCUSDT"}),
			PaperBalance:  getEnvAsFloat("PAPER_BALANCE", 10000),
			PaperSlippage: getEnvAsFloat("PAPER_SLIPPAGE_PCT", 0.05),
		},
		Bot: BotConfig{
			OrderTimeout:      getEnvAsDuration("ORDER_TIMEOUT", 5*time.Second),
			StaleOrderTimeout: getEnvAsDuration("STALE_ORDER_TIMEOUT", 2*time.Minute),
			ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", 30*time.Second),
			AccountInterval:   getEnvAsDuration("ACCOUNT_UPDATE_INTERVAL", time.Minute),
			QtyPrecision:      getEnvAsInt("QTY_PRECISION", 3),
			CandleInterval:    getEnvAsDuration("CANDLE_INTERVAL", time.Minute),
			AggregationPolicy: getEnv("AGGREGATION_POLICY", "consensus"),
			UseTrailing:           getEnvAsBool("USE_TRAILING_STOP", true),
			TrailingActivationPct: getEnvAsFloat("TRAILING_ACTIVATION_PCT", 1.0),
			TrailingDistancePct:   getEnvAsFloat("TRAILING_DISTANCE_PCT", 0.5),
		},
		Advisor: AdvisorConfig{
			Enabled:  getEnvAsBool("ADVISOR_ENABLED", false),
			URL:      getEnv("ADVISOR_URL", "http://localhost:9000"),
			Timeout:  getEnvAsDuration("ADVISOR_TIMEOUT", 3*time.Second),
			CacheTTL: getEnvAsDuration("ADVISOR_CACHE_TTL", time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RiskFile: getEnv("RISK_CONFIG_FILE", "configs/risk.yaml"),
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	switch c.Exchange.Mode {
	case "paper", "live":
	default:
		return fmt.Errorf("EXCHANGE_MODE must be paper or live, got %q", c.Exchange.Mode)
	}
	if c.Exchange.Mode == "live" && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET are required in live mode")
	}
	if len(c.Exchange.Symbols) == 0 {
		return fmt.Errorf("TRADE_SYMBOLS must name at least one symbol")
	}
	if c.Exchange.PaperBalance <= 0 {
		return fmt.Errorf("PAPER_BALANCE must be positive, got %v", c.Exchange.PaperBalance)
	}

	if c.Bot.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %v", c.Bot.OrderTimeout)
	}
	if c.Bot.StaleOrderTimeout <= c.Bot.OrderTimeout {
		return fmt.Errorf("STALE_ORDER_TIMEOUT %v must exceed ORDER_TIMEOUT %v",
			c.Bot.StaleOrderTimeout, c.Bot.OrderTimeout)
	}
	if c.Bot.ReconcileInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive, got %v", c.Bot.ReconcileInterval)
	}
	if c.Bot.CandleInterval < time.Second {
		return fmt.Errorf("CANDLE_INTERVAL must be at least 1s, got %v", c.Bot.CandleInterval)
	}
	if c.Bot.QtyPrecision < 0 || c.Bot.QtyPrecision > 8 {
		return fmt.Errorf("QTY_PRECISION must be in [0, 8], got %d", c.Bot.QtyPrecision)
	}
	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
