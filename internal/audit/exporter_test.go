package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memStorage struct {
	mu      sync.Mutex
	batches [][]Event
	err     error
}

func (m *memStorage) WriteBatch(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(events))
	copy(cp, events)
	m.batches = append(m.batches, cp)
	return m.err
}

func (m *memStorage) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestExporterFlushesOnStop(t *testing.T) {
	store := &memStorage{}
	exp := NewExporter(store, Config{BufferSize: 100, BatchSize: 10, FlushInterval: time.Hour}, zap.NewNop())
	exp.Start()

	for i := 0; i < 25; i++ {
		exp.Log(Event{AgentID: "agent-1", Status: StatusApproved})
	}
	exp.Stop()

	assert.Equal(t, 25, store.total())
	for _, b := range store.batches {
		assert.LessOrEqual(t, len(b), 10)
		for _, ev := range b {
			assert.NotEmpty(t, ev.ID)
			assert.False(t, ev.Timestamp.IsZero())
		}
	}
}

func TestExporterFlushesOnTicker(t *testing.T) {
	store := &memStorage{}
	exp := NewExporter(store, Config{BufferSize: 10, BatchSize: 100, FlushInterval: 10 * time.Millisecond}, nil)
	exp.Start()
	defer exp.Stop()

	exp.Log(Event{AgentID: "agent-1"})
	require.Eventually(t, func() bool { return store.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestExporterDropsAfterStop(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &memStorage{}
	exp := NewExporter(store, DefaultConfig(), zap.New(core))
	exp.Start()
	exp.Stop()
	exp.Stop()

	exp.Log(Event{AgentID: "late"})
	assert.Equal(t, 0, store.total())
	assert.Equal(t, 1, logs.FilterMessage("audit event dropped: auditor is stopping").Len())
}

func TestExporterShedsLoadWhenFull(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	exp := NewExporter(&memStorage{}, Config{BufferSize: 2, BatchSize: 1, FlushInterval: time.Hour}, zap.New(core))
	// воркер не запущен: канал не разгружается

	for i := 0; i < 5; i++ {
		exp.Log(Event{AgentID: "agent-1"})
	}
	assert.Equal(t, 2, exp.Pending())
	assert.Equal(t, 3, logs.FilterMessage("audit_buffer_overflow").Len())
}

func TestExporterSurvivesStorageError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := &memStorage{err: errors.New("db down")}
	exp := NewExporter(store, Config{BufferSize: 10, BatchSize: 1, FlushInterval: time.Hour}, zap.New(core))
	exp.Start()

	exp.Log(Event{AgentID: "agent-1"})
	exp.Log(Event{AgentID: "agent-2"})
	exp.Stop()

	assert.Equal(t, 2, store.total())
	assert.Equal(t, 2, logs.FilterMessage("audit flush failed").Len())
}

func TestTraceIDContext(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", TraceIDFromContext(context.Background()))
	ctx := WithTraceID(context.Background(), "abc")
	assert.Equal(t, "abc", TraceIDFromContext(ctx))
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	score := 0.9
	err := NewLogSink(zap.New(core)).WriteBatch(context.Background(), []Event{
		{ID: "1", Source: SourceDecision, EthicsScore: &score},
		{ID: "2", Source: SourceNetwork},
	})
	require.NoError(t, err)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, 0.9, logs.All()[0].ContextMap()["ethics_score"])
}
