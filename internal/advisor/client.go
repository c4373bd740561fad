package advisor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"tradebot/internal/models"
	"tradebot/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client - клиент внешнего ML-сервиса прогноза тренда
//
// Сервис сугубо вспомогательный: его ответ только гейтит вход,
// недоступность никак не влияет на работу бота. Ответы кэшируются
// на TTL, чтобы не ходить к модели на каждый сигнал.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cachedAdvice
}

type cachedAdvice struct {
	advice  *models.TrendAdvice
	fetched time.Time
}

// adviceResponse - формат ответа /predict
type adviceResponse struct {
	Symbol     string  `json:"symbol"`
	Trend      string  `json:"trend"` // UP, DOWN, FLAT
	Confidence float64 `json:"confidence"`
	ModelName  string  `json:"model_name"`
}

func NewClient(baseURL string, timeout, cacheTTL time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: timeout},
		log:      log,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedAdvice),
	}
}

// Advise возвращает прогноз тренда по символу
func (c *Client) Advise(ctx context.Context, symbol string) (*models.TrendAdvice, error) {
	c.mu.Lock()
	if cached, ok := c.cache[symbol]; ok && time.Since(cached.fetched) < c.cacheTTL {
		c.mu.Unlock()
		return cached.advice, nil
	}
	c.mu.Unlock()

	advice, err := retry.DoWithResult(ctx, func() (*models.TrendAdvice, error) {
		return c.fetch(ctx, symbol)
	}, retry.Config{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[symbol] = cachedAdvice{advice: advice, fetched: time.Now()}
	c.mu.Unlock()
	return advice, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (*models.TrendAdvice, error) {
	endpoint := fmt.Sprintf("%s/api/v1/predict?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("advisor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("advisor returned %d", resp.StatusCode)
	}

	var body adviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("advisor response: %w", err)
	}

	trend, err := parseTrend(body.Trend)
	if err != nil {
		return nil, err
	}

	return &models.TrendAdvice{
		Symbol:     body.Symbol,
		Trend:      trend,
		Confidence: body.Confidence,
		ModelName:  body.ModelName,
		Timestamp:  time.Now(),
	}, nil
}

func parseTrend(s string) (models.TrendDirection, error) {
	switch s {
	case "UP":
		return models.TrendUp, nil
	case "DOWN":
		return models.TrendDown, nil
	case "FLAT":
		return models.TrendFlat, nil
	default:
		return "", fmt.Errorf("unknown trend %q", s)
	}
}
