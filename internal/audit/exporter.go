package audit

/*
Exporter — асинхронная выгрузка журнала аудита.

- Горячий путь (валидация действий) только кладет событие в буферизованный канал
  и никогда не ждет хранилище. При переполнении событие сбрасывается в лог (load shedding).
- Воркер копит пачку и пишет ее в хранилище по таймеру или по достижении BatchSize.
- Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются события.
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

// Auditor — то, что видят компоненты ядра.
type Auditor interface {
	Log(event Event)
}

type Config struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

func DefaultConfig() Config {
	return Config{BufferSize: 10000, BatchSize: 100, FlushInterval: 500 * time.Millisecond}
}

type Exporter struct {
	ch     chan Event
	repo   StorageInterface
	cfg    Config
	logger *zap.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex // Log держит RLock, Stop берет Lock перед close(ch)
	closed bool
}

func NewExporter(repo StorageInterface, cfg Config, logger *zap.Logger) *Exporter {
	d := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		ch:     make(chan Event, cfg.BufferSize),
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(zap.String("mod", "audit")),
	}
}

func (e *Exporter) Start() {
	e.wg.Add(1)
	go e.worker()
}

// Stop запирает вход и ждет, пока воркер все допишет. Повторный вызов безопасен.
func (e *Exporter) Stop() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(e.ch)
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("auditor stopped gracefully")
}

// Pending — сколько событий ждет выгрузки. Идет в метрику заполненности буфера.
func (e *Exporter) Pending() int {
	return len(e.ch)
}

func (e *Exporter) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.logger.Warn("audit event dropped: auditor is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case e.ch <- event:
	default:
		e.logger.Error("audit_buffer_overflow",
			zap.String("agent_id", event.AgentID),
			zap.String("trace_id", event.TraceID),
			zap.String("status", event.Status),
		)
	}
}

func (e *Exporter) worker() {
	defer e.wg.Done()

	batch := make([]Event, 0, e.cfg.BatchSize)
	ticker := time.NewTicker(e.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: к моменту финального flush контекст сервиса уже отменен
		if err := e.repo.WriteBatch(context.Background(), batch); err != nil {
			e.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = make([]Event, 0, e.cfg.BatchSize)
	}

	for {
		select {
		case event, ok := <-e.ch:
			if !ok {
				flush()
				e.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= e.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
