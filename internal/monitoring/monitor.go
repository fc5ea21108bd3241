// Package monitoring — журнал активности агентов, счетчики здоровья и отчеты.
package monitoring

import (
	"sort"
	"sync"
	"time"

	"github.com/xela07ax/higher-guardian/internal/buffer"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// AlertHighRiskRate — имя сигнала о превышении числа High/Critical за час.
const AlertHighRiskRate = "high_risk_actions_per_hour"

type Config struct {
	ActivityCapacity int           `mapstructure:"activity_capacity"`
	HighRiskPerHour  int           `mapstructure:"high_risk_per_hour"`
	ReportWindow     time.Duration `mapstructure:"report_window"`
	TopAgents        int           `mapstructure:"top_agents"`
}

func DefaultConfig() Config {
	return Config{
		ActivityCapacity: 10000,
		HighRiskPerHour:  10,
		ReportWindow:     24 * time.Hour,
		TopAgents:        10,
	}
}

// AlertObserver получает сигналы. Только наблюдение, эскалации нет.
type AlertObserver interface {
	ObserveAlert(alert string)
}

type SystemMonitor struct {
	mu     sync.RWMutex
	log    *buffer.SlidingWindow[domain.ActivityRecord]
	health domain.SystemHealth

	startedAt time.Time
	cfg       Config
	alerts    AlertObserver
	logger    *zap.Logger
	now       func() time.Time
}

func NewSystemMonitor(cfg Config, alerts AlertObserver, logger *zap.Logger) *SystemMonitor {
	d := DefaultConfig()
	if cfg.ActivityCapacity <= 0 {
		cfg.ActivityCapacity = d.ActivityCapacity
	}
	if cfg.HighRiskPerHour <= 0 {
		cfg.HighRiskPerHour = d.HighRiskPerHour
	}
	if cfg.ReportWindow <= 0 {
		cfg.ReportWindow = d.ReportWindow
	}
	if cfg.TopAgents <= 0 {
		cfg.TopAgents = d.TopAgents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	now := func() time.Time { return time.Now().UTC() }
	return &SystemMonitor{
		log:       buffer.NewSlidingWindow[domain.ActivityRecord](cfg.ActivityCapacity),
		startedAt: now(),
		cfg:       cfg,
		alerts:    alerts,
		logger:    logger.With(zap.String("mod", "monitoring")),
		now:       now,
	}
}

// LogActivity добавляет запись, обновляет счетчики и проверяет условие алерта.
func (m *SystemMonitor) LogActivity(record domain.ActivityRecord) {
	if record.Timestamp.IsZero() {
		record.Timestamp = m.now()
	}

	m.mu.Lock()
	m.log.Append(record)
	m.health.TotalActionsMonitored++
	switch record.ActivityType {
	case domain.ActivityActionBlocked:
		m.health.ActionsBlocked++
	case domain.ActivityHumanApprovalRequired:
		m.health.HumanApprovalsRequired++
	case domain.ActivityEthicalViolation:
		m.health.EthicalViolations++
	}
	elevated := m.elevatedSince(m.now().Add(-time.Hour))
	m.mu.Unlock()

	if elevated > m.cfg.HighRiskPerHour {
		m.logger.Warn("high risk activity threshold exceeded",
			zap.Int("count", elevated),
			zap.Int("threshold", m.cfg.HighRiskPerHour),
			zap.String("last_agent_id", record.AgentID),
		)
		if m.alerts != nil {
			m.alerts.ObserveAlert(AlertHighRiskRate)
		}
	}
}

// elevatedSince вызывается под блокировкой.
func (m *SystemMonitor) elevatedSince(cutoff time.Time) int {
	n := 0
	m.log.Each(func(r domain.ActivityRecord) bool {
		if r.Timestamp.After(cutoff) && r.RiskLevel.IsElevated() {
			n++
		}
		return true
	})
	return n
}

// Health — снимок счетчиков с аптаймом.
func (m *SystemMonitor) Health() domain.SystemHealth {
	m.mu.RLock()
	h := m.health
	m.mu.RUnlock()
	h.UptimeHours = m.now().Sub(m.startedAt).Hours()
	return h
}

// RecentActivity — записи за последние hours часов, от старых к новым.
func (m *SystemMonitor) RecentActivity(hours int) []domain.ActivityRecord {
	return m.filter(hours, func(domain.ActivityRecord) bool { return true })
}

func (m *SystemMonitor) AgentActivity(agentID string, hours int) []domain.ActivityRecord {
	return m.filter(hours, func(r domain.ActivityRecord) bool { return r.AgentID == agentID })
}

func (m *SystemMonitor) filter(hours int, keep func(domain.ActivityRecord) bool) []domain.ActivityRecord {
	cutoff := m.now().Add(-time.Duration(hours) * time.Hour)
	out := make([]domain.ActivityRecord, 0)

	m.mu.RLock()
	defer m.mu.RUnlock()
	m.log.Each(func(r domain.ActivityRecord) bool {
		if r.Timestamp.After(cutoff) && keep(r) {
			out = append(out, r)
		}
		return true
	})
	return out
}

// GenerateReport — гистограмма риска и самые активные агенты за окно отчета.
// При равенстве счетчиков порядок — по первому появлению агента в окне.
func (m *SystemMonitor) GenerateReport() domain.SystemReport {
	now := m.now()
	cutoff := now.Add(-m.cfg.ReportWindow)

	histogram := make(map[domain.RiskLevel]int)
	counts := make(map[string]int)
	var order []string
	total := 0

	m.mu.RLock()
	m.log.Each(func(r domain.ActivityRecord) bool {
		if !r.Timestamp.After(cutoff) {
			return true
		}
		total++
		histogram[r.RiskLevel]++
		if _, seen := counts[r.AgentID]; !seen {
			order = append(order, r.AgentID)
		}
		counts[r.AgentID]++
		return true
	})
	m.mu.RUnlock()

	top := make([]domain.AgentActivityCount, 0, len(order))
	for _, id := range order {
		top = append(top, domain.AgentActivityCount{AgentID: id, Count: counts[id]})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > m.cfg.TopAgents {
		top = top[:m.cfg.TopAgents]
	}

	return domain.SystemReport{
		GeneratedAt:      now,
		PeriodHours:      int(m.cfg.ReportWindow.Hours()),
		TotalActivities:  total,
		RiskDistribution: histogram,
		TopAISystems:     top,
		SystemHealth:     m.Health(),
	}
}
