// Package network — сетевой надзор за агентами: блок-лист, эвристика подозрительных
// подключений, правила фаервола и контроль трафика туннелей WireGuard.
package network

import (
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

// Категории вердиктов. Идут в лейбл метрики.
const (
	VerdictApproved   = "approved"
	VerdictBlockedIP  = "blocked_ip"
	VerdictSuspicious = "suspicious_pattern"
	VerdictFirewall   = "firewall_rule"
)

// Типы записей в журнале подозрительной активности.
const (
	ActivitySuspiciousConnection = "suspicious_connection_pattern"
	ActivityDataExfiltration     = "potential_data_exfiltration"
)

// Observer метрики сетевого монитора.
type Observer interface {
	ObserveConnectionVerdict(verdict string)
	ObserveExfiltration(tunnel string)
}

type Monitor struct {
	mu            sync.Mutex
	rules         []domain.FirewallRule
	blocked       []netip.Addr // Порядок вставки, без дублей
	suspicious    []domain.SuspiciousActivity
	connections   map[string]*domain.ConnectionInfo
	policy        domain.NetworkPolicy
	activeTunnels []string

	cfg      Config
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

func NewMonitor(cfg Config, observer Observer, logger *zap.Logger) *Monitor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		rules:       slices.Clone(cfg.Rules),
		connections: make(map[string]*domain.ConnectionInfo),
		policy:      clonePolicy(cfg.Policy),
		cfg:         cfg,
		observer:    observer,
		logger:      logger.With(zap.String("mod", "network")),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidateConnection: блок-лист → эвристика → правила фаервола → разрешить.
func (m *Monitor) ValidateConnection(ip netip.Addr, port uint16, proto domain.Protocol) domain.ConnectionDecision {
	ip = ip.Unmap()

	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.blocked, ip) {
		return m.verdict(VerdictBlockedIP, domain.ConnectionDecision{
			Allowed:              false,
			RiskLevel:            domain.RiskHigh,
			Reason:               fmt.Sprintf("IP %s is blocked", ip),
			InterventionRequired: true,
			Event: &domain.NetworkEvent{
				ActionType:  "network_connection_blocked",
				Description: fmt.Sprintf("Blocked connection to %s", ip),
				RiskFactors: []string{"blocked_ip"},
			},
		})
	}

	if m.isSuspicious(ip, port) {
		m.addSuspicious(ip, ActivitySuspiciousConnection, domain.RiskMedium)
		return m.verdict(VerdictSuspicious, domain.ConnectionDecision{
			Allowed:              false,
			RiskLevel:            domain.RiskMedium,
			Reason:               "Suspicious connection pattern detected",
			InterventionRequired: true,
			Event: &domain.NetworkEvent{
				ActionType:  "network_connection_suspicious",
				Description: fmt.Sprintf("Suspicious connection to %s", netip.AddrPortFrom(ip, port)),
				RiskFactors: []string{"suspicious_pattern"},
			},
		})
	}

	for _, rule := range m.rules {
		if !ruleMatches(rule, ip, port, proto) {
			continue
		}
		if rule.Action == domain.FirewallBlock {
			return m.verdict(VerdictFirewall, domain.ConnectionDecision{
				Allowed:   false,
				RiskLevel: domain.RiskMedium,
				Reason:    "Blocked by firewall rule: " + rule.Name,
				Event: &domain.NetworkEvent{
					ActionType:  "firewall_block",
					Description: "Connection blocked by rule " + rule.Name,
					RiskFactors: []string{"firewall_rule"},
				},
			})
		}
		// Monitor и Allow останавливают перебор
		break
	}

	return m.verdict(VerdictApproved, domain.ConnectionDecision{
		Allowed:   true,
		RiskLevel: domain.RiskLow,
		Reason:    "Connection approved",
		Event: &domain.NetworkEvent{
			ActionType:  "network_connection_approved",
			Description: fmt.Sprintf("Approved connection to %s", netip.AddrPortFrom(ip, port)),
			RiskFactors: []string{},
		},
	})
}

// verdict вызывается под m.mu; observer не должен ходить обратно в монитор.
func (m *Monitor) verdict(category string, d domain.ConnectionDecision) domain.ConnectionDecision {
	if m.observer != nil {
		m.observer.ObserveConnectionVerdict(category)
	}
	if !d.Allowed {
		m.logger.Warn("connection rejected", zap.String("verdict", category), zap.String("reason", d.Reason))
	}
	return d
}

// ruleMatches: заданные в правиле remote ip/port должны совпасть, протокол — совместим.
func ruleMatches(rule domain.FirewallRule, ip netip.Addr, port uint16, proto domain.Protocol) bool {
	if rule.RemoteIP.IsValid() && rule.RemoteIP.Unmap() != ip {
		return false
	}
	if rule.RemotePort != 0 && rule.RemotePort != port {
		return false
	}
	return rule.Protocol.Matches(proto)
}

func (m *Monitor) isSuspicious(ip netip.Addr, port uint16) bool {
	if slices.Contains(m.cfg.RiskyPorts, port) {
		return true
	}

	cutoff := m.now().Add(-m.cfg.SuspiciousWindow)
	recent := 0
	for _, a := range m.suspicious {
		if a.IP == ip && a.Timestamp.After(cutoff) {
			recent++
		}
	}
	return recent > m.cfg.SuspiciousLimit
}

// addSuspicious добавляет запись и отрезает все старше окна хранения.
func (m *Monitor) addSuspicious(ip netip.Addr, activityType string, severity domain.RiskLevel) {
	now := m.now()
	m.suspicious = append(m.suspicious, domain.SuspiciousActivity{
		IP:           ip,
		ActivityType: activityType,
		Timestamp:    now,
		Severity:     severity,
	})

	cutoff := now.Add(-m.cfg.Retention)
	m.suspicious = slices.DeleteFunc(m.suspicious, func(a domain.SuspiciousActivity) bool {
		return !a.Timestamp.After(cutoff)
	})
}

func (m *Monitor) AddFirewallRule(rule domain.FirewallRule) {
	m.mu.Lock()
	m.rules = append(m.rules, rule)
	m.mu.Unlock()
	m.logger.Info("firewall rule added", zap.String("rule", rule.Name), zap.String("action", string(rule.Action)))
}

// Rules копия правил в порядке применения.
func (m *Monitor) Rules() []domain.FirewallRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rules)
}

// BlockIP идемпотентен. Возвращает true, если адрес был добавлен.
func (m *Monitor) BlockIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.blocked, ip) {
		return false
	}
	m.blocked = append(m.blocked, ip)
	m.logger.Info("ip blocked", zap.String("ip", ip.String()))
	return true
}

// UnblockIP возвращает true, если адрес был в списке.
func (m *Monitor) UnblockIP(ip netip.Addr) bool {
	ip = ip.Unmap()
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.blocked)
	m.blocked = slices.DeleteFunc(m.blocked, func(b netip.Addr) bool { return b == ip })
	if len(m.blocked) == before {
		return false
	}
	m.logger.Info("ip unblocked", zap.String("ip", ip.String()))
	return true
}

func (m *Monitor) BlockedIPs() []netip.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.blocked)
}

func (m *Monitor) SuspiciousActivities() []domain.SuspiciousActivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.suspicious)
}
