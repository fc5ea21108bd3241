package monitoring

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type alertSink struct {
	mu     sync.Mutex
	alerts []string
}

func (a *alertSink) ObserveAlert(alert string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestMonitor(cfg Config, logger *zap.Logger) (*SystemMonitor, *alertSink, *clock) {
	sink := &alertSink{}
	m := NewSystemMonitor(cfg, sink, logger)
	c := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	m.now = c.now
	m.startedAt = c.t
	return m, sink, c
}

func record(agent, activity string, level domain.RiskLevel, ts time.Time) domain.ActivityRecord {
	return domain.ActivityRecord{Timestamp: ts, AgentID: agent, ActivityType: activity, RiskLevel: level}
}

func TestSlidingWindowKeepsLastTenThousand(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig(), nil)
	for i := 0; i < 10001; i++ {
		m.LogActivity(record(fmt.Sprintf("agent-%d", i), domain.ActivityActionMonitored, domain.RiskLow, clk.t))
	}

	recent := m.RecentActivity(1)
	require.Len(t, recent, 10000)
	assert.Equal(t, "agent-1", recent[0].AgentID)
	assert.Equal(t, "agent-10000", recent[len(recent)-1].AgentID)
	assert.Equal(t, uint64(10001), m.Health().TotalActionsMonitored)
}

func TestHealthCounters(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig(), nil)
	for _, activity := range []string{
		domain.ActivityActionBlocked,
		domain.ActivityActionBlocked,
		domain.ActivityHumanApprovalRequired,
		domain.ActivityEthicalViolation,
		domain.ActivityActionWarned,
		"custom_event",
	} {
		m.LogActivity(record("agent-1", activity, domain.RiskLow, clk.t))
	}
	clk.t = clk.t.Add(90 * time.Minute)

	h := m.Health()
	assert.Equal(t, uint64(6), h.TotalActionsMonitored)
	assert.Equal(t, uint64(2), h.ActionsBlocked)
	assert.Equal(t, uint64(1), h.HumanApprovalsRequired)
	assert.Equal(t, uint64(1), h.EthicalViolations)
	assert.InDelta(t, 1.5, h.UptimeHours, 1e-9)
}

func TestHighRiskAlert(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m, sink, clk := newTestMonitor(DefaultConfig(), zap.New(core))

	// старые записи вне часа не считаются
	for i := 0; i < 20; i++ {
		m.LogActivity(record("agent-1", domain.ActivityActionBlocked, domain.RiskCritical, clk.t.Add(-2*time.Hour)))
	}
	for i := 0; i < 10; i++ {
		m.LogActivity(record("agent-1", domain.ActivityActionBlocked, domain.RiskHigh, clk.t))
		m.LogActivity(record("agent-1", domain.ActivityActionMonitored, domain.RiskModerate, clk.t))
	}
	assert.Empty(t, sink.alerts, "ten elevated records do not exceed the threshold")

	m.LogActivity(record("agent-2", domain.ActivityActionBlocked, domain.RiskCritical, clk.t))
	assert.Equal(t, []string{AlertHighRiskRate}, sink.alerts)
	assert.Equal(t, 1, logs.FilterMessage("high risk activity threshold exceeded").Len())
}

func TestAgentActivityWindow(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig(), nil)
	m.LogActivity(record("agent-1", "x", domain.RiskLow, clk.t.Add(-3*time.Hour)))
	m.LogActivity(record("agent-1", "x", domain.RiskLow, clk.t.Add(-30*time.Minute)))
	m.LogActivity(record("agent-2", "x", domain.RiskLow, clk.t))

	assert.Len(t, m.AgentActivity("agent-1", 1), 1)
	assert.Len(t, m.AgentActivity("agent-1", 4), 2)
	assert.Empty(t, m.AgentActivity("agent-3", 24))
	assert.Len(t, m.RecentActivity(24), 3)
}

func TestZeroTimestampIsStamped(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig(), nil)
	m.LogActivity(domain.ActivityRecord{AgentID: "agent-1"})
	recent := m.RecentActivity(1)
	require.Len(t, recent, 1)
	assert.Equal(t, clk.t, recent[0].Timestamp)
}

func TestGenerateReport(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig(), nil)

	// вне окна отчета
	m.LogActivity(record("agent-old", "x", domain.RiskCritical, clk.t.Add(-25*time.Hour)))

	// agent-b и agent-c по 2 записи, b встретился раньше
	m.LogActivity(record("agent-b", "x", domain.RiskLow, clk.t))
	m.LogActivity(record("agent-a", "x", domain.RiskHigh, clk.t))
	m.LogActivity(record("agent-c", "x", domain.RiskLow, clk.t))
	m.LogActivity(record("agent-c", "x", domain.RiskModerate, clk.t))
	m.LogActivity(record("agent-b", "x", domain.RiskLow, clk.t))
	for i := 0; i < 3; i++ {
		m.LogActivity(record("agent-z", "x", domain.RiskCritical, clk.t))
	}

	r := m.GenerateReport()
	assert.Equal(t, 24, r.PeriodHours)
	assert.Equal(t, 8, r.TotalActivities)
	assert.Equal(t, map[domain.RiskLevel]int{
		domain.RiskLow:      3,
		domain.RiskModerate: 1,
		domain.RiskHigh:     1,
		domain.RiskCritical: 3,
	}, r.RiskDistribution)
	assert.Equal(t, []domain.AgentActivityCount{
		{AgentID: "agent-z", Count: 3},
		{AgentID: "agent-b", Count: 2},
		{AgentID: "agent-c", Count: 2},
		{AgentID: "agent-a", Count: 1},
	}, r.TopAISystems)
	assert.Equal(t, uint64(9), r.SystemHealth.TotalActionsMonitored)
}

func TestReportTopIsCapped(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig(), nil)
	for i := 0; i < 15; i++ {
		m.LogActivity(record(fmt.Sprintf("agent-%02d", i), "x", domain.RiskLow, clk.t))
	}
	r := m.GenerateReport()
	require.Len(t, r.TopAISystems, 10)
	assert.Equal(t, "agent-00", r.TopAISystems[0].AgentID)
	assert.Equal(t, "agent-09", r.TopAISystems[9].AgentID)
}
