package network

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

type verdicts struct {
	mu     sync.Mutex
	seen   []string
	exfils []string
}

func (v *verdicts) ObserveConnectionVerdict(verdict string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seen = append(v.seen, verdict)
}

func (v *verdicts) ObserveExfiltration(tunnel string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.exfils = append(v.exfils, tunnel)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestMonitor(cfg Config) (*Monitor, *verdicts, *clock) {
	obs := &verdicts{}
	m := NewMonitor(cfg, obs, zap.NewNop())
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m.now = c.now
	return m, obs, c
}

var remote = netip.MustParseAddr("198.51.100.7")

func TestDefaultConnectionIsAllowed(t *testing.T) {
	m, obs, _ := newTestMonitor(DefaultConfig())

	d := m.ValidateConnection(remote, 443, domain.ProtocolTCP)
	assert.True(t, d.Allowed)
	assert.Equal(t, domain.RiskLow, d.RiskLevel)
	assert.Equal(t, []string{VerdictApproved}, obs.seen)

	// правило Monitor_WireGuard_Traffic совпадает по UDP, но только останавливает перебор
	d = m.ValidateConnection(remote, 51820, domain.ProtocolUDP)
	assert.True(t, d.Allowed)
}

func TestBlockedIPAlwaysRejected(t *testing.T) {
	m, _, _ := newTestMonitor(DefaultConfig())
	blocked := netip.MustParseAddr("203.0.113.5")
	assert.True(t, m.BlockIP(blocked))
	assert.False(t, m.BlockIP(blocked), "second block is a no-op")

	for _, port := range []uint16{0, 22, 80, 443, 51820} {
		for _, proto := range []domain.Protocol{domain.ProtocolTCP, domain.ProtocolUDP, domain.ProtocolICMP} {
			d := m.ValidateConnection(blocked, port, proto)
			assert.False(t, d.Allowed)
			assert.Equal(t, domain.RiskHigh, d.RiskLevel)
			assert.True(t, d.InterventionRequired)
		}
	}
	// блок-лист проверяется раньше эвристики: рискованный порт не пишет запись
	assert.Empty(t, m.SuspiciousActivities())

	// IPv4-mapped IPv6 — тот же адрес
	d := m.ValidateConnection(netip.MustParseAddr("::ffff:203.0.113.5"), 443, domain.ProtocolTCP)
	assert.False(t, d.Allowed)

	assert.True(t, m.UnblockIP(blocked))
	assert.False(t, m.UnblockIP(blocked))
	assert.True(t, m.ValidateConnection(blocked, 443, domain.ProtocolTCP).Allowed)
}

func TestBlockedIPsKeepInsertionOrder(t *testing.T) {
	m, _, _ := newTestMonitor(DefaultConfig())
	a, b, c := netip.MustParseAddr("10.0.0.3"), netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("10.0.0.2")
	m.BlockIP(a)
	m.BlockIP(b)
	m.BlockIP(a)
	m.BlockIP(c)
	assert.Equal(t, []netip.Addr{a, b, c}, m.BlockedIPs())
}

func TestRiskyPortIsSuspicious(t *testing.T) {
	m, obs, _ := newTestMonitor(DefaultConfig())

	d := m.ValidateConnection(remote, 3389, domain.ProtocolTCP)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.RiskMedium, d.RiskLevel)
	require.NotNil(t, d.Event)
	assert.Equal(t, []string{"suspicious_pattern"}, d.Event.RiskFactors)

	activities := m.SuspiciousActivities()
	require.Len(t, activities, 1)
	assert.Equal(t, ActivitySuspiciousConnection, activities[0].ActivityType)
	assert.Equal(t, domain.RiskMedium, activities[0].Severity)
	assert.Equal(t, []string{VerdictSuspicious}, obs.seen)
}

func TestRepeatedSuspiciousActivityFlagsIP(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig())

	// шесть попыток на рискованный порт за минуту
	for i := 0; i < 6; i++ {
		m.ValidateConnection(remote, 22, domain.ProtocolTCP)
		clk.t = clk.t.Add(10 * time.Second)
	}
	// теперь и безобидный порт подозрителен
	d := m.ValidateConnection(remote, 443, domain.ProtocolTCP)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Suspicious connection pattern detected", d.Reason)

	// другой IP не задет
	assert.True(t, m.ValidateConnection(netip.MustParseAddr("198.51.100.8"), 443, domain.ProtocolTCP).Allowed)

	// за пределами пятиминутного окна записи уже не считаются
	clk.t = clk.t.Add(6 * time.Minute)
	assert.True(t, m.ValidateConnection(remote, 443, domain.ProtocolTCP).Allowed)
}

func TestSuspiciousStoreIsPrunedToRetention(t *testing.T) {
	m, _, clk := newTestMonitor(DefaultConfig())

	m.ValidateConnection(remote, 22, domain.ProtocolTCP)
	clk.t = clk.t.Add(25 * time.Hour)
	m.ValidateConnection(remote, 23, domain.ProtocolTCP)

	activities := m.SuspiciousActivities()
	require.Len(t, activities, 1)
	assert.Equal(t, clk.t, activities[0].Timestamp)
}

func TestFirewallRules(t *testing.T) {
	m, obs, _ := newTestMonitor(DefaultConfig())
	db := netip.MustParseAddr("192.0.2.10")

	m.AddFirewallRule(domain.FirewallRule{Name: "Allow_DB_Replica", Action: domain.FirewallAllow, Protocol: domain.ProtocolTCP, RemoteIP: db, RemotePort: 5432})
	m.AddFirewallRule(domain.FirewallRule{Name: "Block_Postgres", Action: domain.FirewallBlock, Protocol: domain.ProtocolTCP, RemotePort: 5432})
	m.AddFirewallRule(domain.FirewallRule{Name: "Block_DNS_Any", Action: domain.FirewallBlock, Protocol: domain.ProtocolAny, RemotePort: 53})

	// первое совпадение — Allow, перебор останавливается
	assert.True(t, m.ValidateConnection(db, 5432, domain.ProtocolTCP).Allowed)

	d := m.ValidateConnection(remote, 5432, domain.ProtocolTCP)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Blocked by firewall rule: Block_Postgres", d.Reason)
	assert.Equal(t, domain.RiskMedium, d.RiskLevel)
	assert.False(t, d.InterventionRequired)

	// протокол несовместим — правило не совпадает
	assert.True(t, m.ValidateConnection(remote, 5432, domain.ProtocolUDP).Allowed)

	// Any совпадает с любым протоколом; для UDP раньше срабатывает Monitor_WireGuard_Traffic
	assert.False(t, m.ValidateConnection(remote, 53, domain.ProtocolTCP).Allowed)
	assert.True(t, m.ValidateConnection(remote, 53, domain.ProtocolUDP).Allowed)

	assert.Contains(t, obs.seen, VerdictFirewall)
	assert.Len(t, m.Rules(), 4)
}

func TestLocalPortIsNotMatched(t *testing.T) {
	m, _, _ := newTestMonitor(Config{Rules: []domain.FirewallRule{
		{Name: "Block_Local_8080", Action: domain.FirewallBlock, Protocol: domain.ProtocolTCP, LocalPort: 8080},
	}})
	// без remote ip/port правило с протоколом TCP совпадает с любым TCP
	assert.False(t, m.ValidateConnection(remote, 443, domain.ProtocolTCP).Allowed)
	assert.True(t, m.ValidateConnection(remote, 443, domain.ProtocolUDP).Allowed)
}

func TestExfiltrationHeuristic(t *testing.T) {
	tests := []struct {
		name     string
		sent     uint64
		received uint64
		flagged  bool
	}{
		{"pure outbound over 500MB", 600_000_000, 0, true},
		{"balanced small", 1000, 1000, false},
		{"ratio 20 over 100MB", 200_000_000, 10_000_000, true},
		{"ratio 20 under 100MB", 50_000_000, 2_500_000, false},
		{"pure outbound under 500MB", 400_000_000, 0, false},
		{"ratio exactly 10", 200_000_000, 20_000_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, obs, _ := newTestMonitor(DefaultConfig())
			cfg := domain.WireGuardConfig{Name: "wg0", Endpoint: "192.0.2.50:51820", PublicKey: "pk"}

			d := m.MonitorWireGuardTunnel(cfg, tt.sent, tt.received)
			assert.Equal(t, !tt.flagged, d.Allowed)

			stats, ok := m.TunnelStats("wg0")
			require.True(t, ok)
			assert.Equal(t, tt.sent, stats.BytesSent)
			assert.Equal(t, tt.received, stats.BytesReceived)

			if tt.flagged {
				assert.Equal(t, domain.RiskHigh, d.RiskLevel)
				assert.Equal(t, []string{"wg0"}, obs.exfils)
				activities := m.SuspiciousActivities()
				require.Len(t, activities, 1)
				assert.Equal(t, ActivityDataExfiltration, activities[0].ActivityType)
				assert.Equal(t, netip.MustParseAddr("192.0.2.50"), activities[0].IP)
			} else {
				assert.Empty(t, m.SuspiciousActivities())
			}
		})
	}
}

func TestTunnelCountersAccumulate(t *testing.T) {
	m, _, _ := newTestMonitor(DefaultConfig())
	cfg := domain.WireGuardConfig{Name: "wg1", Endpoint: "not-an-ip"}

	m.MonitorWireGuardTunnel(cfg, 100, 200)
	m.MonitorWireGuardTunnel(cfg, 50, 25)

	stats, ok := m.TunnelStats("wg1")
	require.True(t, ok)
	assert.Equal(t, uint64(150), stats.BytesSent)
	assert.Equal(t, uint64(225), stats.BytesReceived)
	assert.Equal(t, netip.IPv4Unspecified(), stats.RemoteIP)

	_, ok = m.TunnelStats("missing")
	assert.False(t, ok)
}

func TestValidateTunnelCreation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = domain.NetworkPolicy{
		AllowedEndpoints:  []string{"vpn.example.com", "192.0.2."},
		BlockedIPs:        []string{"192.0.2.66"},
		MaxConnections:    2,
		RequireEncryption: true,
	}
	m, _, _ := newTestMonitor(cfg)

	ok := domain.WireGuardConfig{Name: "wg0", Endpoint: "192.0.2.10:51820", PublicKey: "pk"}
	assert.True(t, m.ValidateTunnelCreation(ok).Allowed)

	d := m.ValidateTunnelCreation(domain.WireGuardConfig{Name: "x", Endpoint: "203.0.113.1:51820", PublicKey: "pk"})
	assert.False(t, d.Allowed)
	assert.Equal(t, "Endpoint 203.0.113.1:51820 not in allowed list", d.Reason)
	assert.Equal(t, domain.RiskHigh, d.RiskLevel)

	d = m.ValidateTunnelCreation(domain.WireGuardConfig{Name: "x", Endpoint: "192.0.2.66:51820", PublicKey: "pk"})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "blocked by policy")

	d = m.ValidateTunnelCreation(domain.WireGuardConfig{Name: "x", Endpoint: "vpn.example.com:51820"})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "Encryption required")

	m.AddActiveTunnel("wg0")
	m.AddActiveTunnel("wg1")
	d = m.ValidateTunnelCreation(ok)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Maximum tunnel connections reached", d.Reason)
	assert.Equal(t, domain.RiskMedium, d.RiskLevel)
	assert.True(t, d.InterventionRequired)

	m.RemoveActiveTunnel("wg0")
	assert.Equal(t, []string{"wg1"}, m.ActiveTunnels())
	assert.True(t, m.ValidateTunnelCreation(ok).Allowed)
}

func TestUpdatePolicyReplacesWholesale(t *testing.T) {
	m, _, _ := newTestMonitor(DefaultConfig())
	m.UpdatePolicy(domain.NetworkPolicy{AllowedEndpoints: []string{"10.0.0."}, MaxConnections: 1})

	p := m.Policy()
	assert.Equal(t, []string{"10.0.0."}, p.AllowedEndpoints)
	assert.False(t, p.RequireEncryption, "no merge with the previous policy")

	// policy.BlockedIPs не попадает в блок-лист соединений
	m.UpdatePolicy(domain.NetworkPolicy{BlockedIPs: []string{remote.String()}, MaxConnections: 1})
	assert.Empty(t, m.BlockedIPs())
	assert.True(t, m.ValidateConnection(remote, 443, domain.ProtocolTCP).Allowed)
}

func TestMonitorTraffic(t *testing.T) {
	m, _, _ := newTestMonitor(DefaultConfig())
	const mib = 1024 * 1024

	assert.True(t, m.MonitorTraffic("wg0", 500*mib, 500*mib).Allowed)
	assert.True(t, m.MonitorTraffic("wg0", 1000*mib, mib-1).Allowed)

	d := m.MonitorTraffic("wg0", 600*mib, 401*mib)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Traffic limit exceeded: 1001MB", d.Reason)
}
