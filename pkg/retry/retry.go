package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ============================================================
// Повторы с экспоненциальной задержкой
//
// Используется для REST-запросов к бирже (сверка ордеров) и
// внешнему сервису-советнику. Контекст проверяется между
// попытками, Permanent-ошибки не повторяются.
// ============================================================

// Config управляет стратегией повторов
type Config struct {
	MaxRetries   int           // количество повторов после первой попытки
	InitialDelay time.Duration // задержка перед первым повтором
	MaxDelay     time.Duration // потолок задержки
	Multiplier   float64       // множитель экспоненты
	JitterFactor float64       // случайный разброс задержки, 0..1

	// RetryIf решает, повторять ли конкретную ошибку.
	// nil - повторяются все, кроме Permanent
	RetryIf func(error) bool
}

// DefaultConfig - профиль для обычных REST-запросов:
// задержки 100ms, 200ms, 400ms, 800ms с джиттером
func DefaultConfig() Config {
	return Config{
		MaxRetries:   4,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (c *Config) validate() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		c.InitialDelay = c.MaxDelay
	}
}

func (c *Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= c.Multiplier
	}
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.JitterFactor > 0 {
		// Разброс в обе стороны, чтобы повторы не синхронизировались
		d += d * c.JitterFactor * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

func (c *Config) retryable(err error) bool {
	var p *PermanentError
	if errors.As(err, &p) {
		return false
	}
	if c.RetryIf != nil {
		return c.RetryIf(err)
	}
	return true
}

// Do выполняет операцию с повторами по конфигурации
func Do(ctx context.Context, operation func() error, cfg Config) error {
	_, err := DoWithResult(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, cfg)
	return err
}

// DoWithResult выполняет операцию, возвращающую значение, с повторами
func DoWithResult[T any](ctx context.Context, operation func() (T, error), cfg Config) (T, error) {
	cfg.validate()

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !cfg.retryable(err) || attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(cfg.delay(attempt)):
		}
	}
	return zero, lastErr
}

// PermanentError помечает ошибку как неповторяемую
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent оборачивает ошибку, останавливая повторы
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
