package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/higher-guardian/internal/audit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SinkConfig параметры защиты хранилища аудита.
type SinkConfig struct {
	Name        string
	MaxRequests uint32        // Пробные запросы в полуоткрытом состоянии
	Interval    time.Duration // Период сброса счетчиков в закрытом состоянии
	Timeout     time.Duration // Время, через которое CB попробует "закрыться"
	Failures    uint32        // Ошибок подряд до размыкания
	RateLimit   float64       // Пачек в секунду
	RateBurst   int
	Attempts    uint
	CallTimeout time.Duration // Таймаут одной попытки записи
}

func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		Name:        "audit-sink",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		Failures:    5,
		RateLimit:   50,
		RateBurst:   10,
		Attempts:    3,
		CallTimeout: 10 * time.Second,
	}
}

func (c SinkConfig) withDefaults() SinkConfig {
	d := DefaultSinkConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Failures == 0 {
		c.Failures = d.Failures
	}
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = d.RateBurst
	}
	if c.Attempts == 0 {
		c.Attempts = d.Attempts
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// ReliableSink оборачивает хранилище аудита: лимитер, предохранитель, повторы.
type ReliableSink struct {
	next    audit.StorageInterface
	cfg     SinkConfig
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	metrics *Metrics
}

func NewReliableSink(next audit.StorageInterface, cfg SinkConfig, metrics *Metrics, logger *zap.Logger) *ReliableSink {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &ReliableSink{
		next:    next,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		metrics: metrics,
	}

	// Настройка предохранителя
	s.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("sink", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return s
}

func stateValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	}
	return 0
}

// WriteBatch реализует audit.StorageInterface.
func (s *ReliableSink) WriteBatch(ctx context.Context, events []audit.Event) error {
	// 1. Rate Limiter
	if err := s.limiter.Wait(ctx); err != nil {
		s.metrics.ErrorTotal.WithLabelValues("rate_limit").Inc()
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	// 2. Circuit Breaker
	_, err := s.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(s.cfg.Attempts),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Хранилище само сказало, сколько ждать
				var tErr *audit.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, обрыв) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		return nil, r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
			defer cancel()
			return s.next.WriteBatch(tCtx, events)
		})
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.metrics.ErrorTotal.WithLabelValues("breaker_open").Inc()
		} else {
			s.metrics.ErrorTotal.WithLabelValues("write").Inc()
		}
		return err
	}
	return nil
}

// State текущее состояние предохранителя (для health консоли).
func (s *ReliableSink) State() gobreaker.State {
	return s.cb.State()
}
