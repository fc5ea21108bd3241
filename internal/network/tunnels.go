package network

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"slices"
	"strings"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

const tunnelKeyPrefix = "wg_"

// MonitorWireGuardTunnel копит счетчики туннеля и проверяет эвристику утечки
// по переданным за этот период байтам.
func (m *Monitor) MonitorWireGuardTunnel(cfg domain.WireGuardConfig, bytesSent, bytesReceived uint64) domain.ConnectionDecision {
	endpoint := parseEndpoint(cfg.Endpoint)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := tunnelKeyPrefix + cfg.Name
	conn, ok := m.connections[key]
	if !ok {
		conn = &domain.ConnectionInfo{
			RemoteIP:      endpoint.Addr(),
			RemotePort:    endpoint.Port(),
			Protocol:      domain.ProtocolUDP,
			EstablishedAt: now,
		}
		m.connections[key] = conn
	}
	conn.BytesSent = saturatingAdd(conn.BytesSent, bytesSent)
	conn.BytesReceived = saturatingAdd(conn.BytesReceived, bytesReceived)
	conn.LastActivity = now

	if m.isExfiltration(bytesSent, bytesReceived) {
		m.addSuspicious(endpoint.Addr(), ActivityDataExfiltration, domain.RiskHigh)
		if m.observer != nil {
			m.observer.ObserveExfiltration(cfg.Name)
		}
		m.logger.Warn("potential data exfiltration",
			zap.String("tunnel", cfg.Name),
			zap.Uint64("bytes_sent", bytesSent),
			zap.Uint64("bytes_received", bytesReceived),
		)
		return domain.ConnectionDecision{
			Allowed:              false,
			RiskLevel:            domain.RiskHigh,
			Reason:               "Potential data exfiltration detected",
			InterventionRequired: true,
			Event: &domain.NetworkEvent{
				ActionType:  "data_exfiltration_detected",
				Description: "High outbound traffic on tunnel " + cfg.Name,
				RiskFactors: []string{"data_exfiltration"},
			},
		}
	}

	return domain.ConnectionDecision{
		Allowed:   true,
		RiskLevel: domain.RiskLow,
		Reason:    "Tunnel traffic normal",
	}
}

// isExfiltration: перекос отправки при двустороннем трафике или большой чистый исходящий.
func (m *Monitor) isExfiltration(sent, received uint64) bool {
	if sent > 0 && received > 0 {
		ratio := float64(sent) / float64(received)
		return ratio > m.cfg.ExfilRatio && sent > m.cfg.ExfilMinBytes
	}
	return sent > m.cfg.ExfilOutboundBytes
}

// ValidateTunnelCreation проверяет туннель против активной политики.
func (m *Monitor) ValidateTunnelCreation(cfg domain.WireGuardConfig) domain.ConnectionDecision {
	m.mu.Lock()
	defer m.mu.Unlock()

	policy := m.policy
	reject := func(level domain.RiskLevel, reason string) domain.ConnectionDecision {
		m.logger.Warn("tunnel creation rejected", zap.String("tunnel", cfg.Name), zap.String("reason", reason))
		return domain.ConnectionDecision{
			Allowed:              false,
			RiskLevel:            level,
			Reason:               reason,
			InterventionRequired: true,
		}
	}

	if len(policy.AllowedEndpoints) > 0 && !slices.ContainsFunc(policy.AllowedEndpoints, func(ep string) bool {
		return strings.Contains(cfg.Endpoint, ep)
	}) {
		return reject(domain.RiskHigh, fmt.Sprintf("Endpoint %s not in allowed list", cfg.Endpoint))
	}

	host := parseEndpoint(cfg.Endpoint).Addr()
	for _, raw := range policy.BlockedIPs {
		if blocked, err := netip.ParseAddr(raw); err == nil && blocked.Unmap() == host {
			return reject(domain.RiskHigh, fmt.Sprintf("Endpoint %s is blocked by policy", cfg.Endpoint))
		}
	}

	if policy.RequireEncryption && cfg.PublicKey == "" {
		return reject(domain.RiskHigh, "Encryption required: tunnel has no public key")
	}

	// Исчерпан лимит соединений: уровень Medium
	if len(m.activeTunnels) >= int(policy.MaxConnections) {
		return reject(domain.RiskMedium, "Maximum tunnel connections reached")
	}

	return domain.ConnectionDecision{
		Allowed:   true,
		RiskLevel: domain.RiskLow,
		Reason:    "Tunnel creation approved",
	}
}

// MonitorTraffic ограничивает суммарный объем за период (в МиБ).
func (m *Monitor) MonitorTraffic(tunnel string, bytesSent, bytesReceived uint64) domain.ConnectionDecision {
	totalMB := saturatingAdd(bytesSent, bytesReceived) / (1024 * 1024)
	if totalMB > m.cfg.TrafficCapMegabytes {
		m.logger.Warn("tunnel traffic limit exceeded", zap.String("tunnel", tunnel), zap.Uint64("total_mb", totalMB))
		return domain.ConnectionDecision{
			Allowed:              false,
			RiskLevel:            domain.RiskHigh,
			Reason:               fmt.Sprintf("Traffic limit exceeded: %dMB", totalMB),
			InterventionRequired: true,
		}
	}
	return domain.ConnectionDecision{
		Allowed:   true,
		RiskLevel: domain.RiskLow,
		Reason:    "Traffic within normal limits",
	}
}

// UpdatePolicy заменяет политику целиком.
func (m *Monitor) UpdatePolicy(policy domain.NetworkPolicy) {
	m.mu.Lock()
	m.policy = clonePolicy(policy)
	m.mu.Unlock()
	m.logger.Info("network policy replaced",
		zap.Strings("allowed_endpoints", policy.AllowedEndpoints),
		zap.Uint32("max_connections", policy.MaxConnections),
	)
}

func (m *Monitor) Policy() domain.NetworkPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clonePolicy(m.policy)
}

// AddActiveTunnel не дедуплицирует: каждый вызов занимает слот.
func (m *Monitor) AddActiveTunnel(name string) {
	m.mu.Lock()
	m.activeTunnels = append(m.activeTunnels, name)
	m.mu.Unlock()
}

// RemoveActiveTunnel удаляет все вхождения имени.
func (m *Monitor) RemoveActiveTunnel(name string) {
	m.mu.Lock()
	m.activeTunnels = slices.DeleteFunc(m.activeTunnels, func(t string) bool { return t == name })
	m.mu.Unlock()
}

func (m *Monitor) ActiveTunnels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.activeTunnels)
}

// TunnelStats накопленные счетчики туннеля.
func (m *Monitor) TunnelStats(name string) (domain.ConnectionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[tunnelKeyPrefix+name]
	if !ok {
		return domain.ConnectionInfo{}, false
	}
	return *conn, true
}

// parseEndpoint принимает "host:port" или голый адрес. Нераспознанное — 0.0.0.0.
func parseEndpoint(endpoint string) netip.AddrPort {
	if ap, err := netip.ParseAddrPort(endpoint); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	if addr, err := netip.ParseAddr(endpoint); err == nil {
		return netip.AddrPortFrom(addr.Unmap(), 0)
	}
	if host, _, err := net.SplitHostPort(endpoint); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil {
			return netip.AddrPortFrom(addr.Unmap(), 0)
		}
	}
	return netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func clonePolicy(p domain.NetworkPolicy) domain.NetworkPolicy {
	p.AllowedEndpoints = slices.Clone(p.AllowedEndpoints)
	p.BlockedIPs = slices.Clone(p.BlockedIPs)
	return p
}
