package domain

import (
	"net/netip"
	"strings"
	"time"
)

type FirewallAction string

const (
	FirewallAllow   FirewallAction = "ALLOW"
	FirewallBlock   FirewallAction = "BLOCK"
	FirewallMonitor FirewallAction = "MONITOR"
)

type TrafficDirection string

const (
	DirectionInbound  TrafficDirection = "INBOUND"
	DirectionOutbound TrafficDirection = "OUTBOUND"
	DirectionBoth     TrafficDirection = "BOTH"
)

type Protocol string

const (
	ProtocolTCP  Protocol = "TCP"
	ProtocolUDP  Protocol = "UDP"
	ProtocolICMP Protocol = "ICMP"
	ProtocolAny  Protocol = "ANY"
)

// ParseProtocol принимает имя в любом регистре. Пустая строка — Any.
func ParseProtocol(s string) (Protocol, bool) {
	switch p := Protocol(strings.ToUpper(strings.TrimSpace(s))); p {
	case ProtocolTCP, ProtocolUDP, ProtocolICMP, ProtocolAny:
		return p, true
	case "":
		return ProtocolAny, true
	}
	return "", false
}

// Matches — совместимость протокола правила с протоколом соединения.
func (p Protocol) Matches(candidate Protocol) bool {
	return p == ProtocolAny || p == candidate
}

// FirewallRule — декларативное правило. Нулевые RemoteIP/RemotePort означают "любой".
// LocalPort и Direction хранятся, но в сопоставлении не участвуют.
type FirewallRule struct {
	Name       string           `json:"name"`
	Action     FirewallAction   `json:"action"`
	Direction  TrafficDirection `json:"direction"`
	Protocol   Protocol         `json:"protocol"`
	LocalPort  uint16           `json:"local_port,omitempty"`
	RemotePort uint16           `json:"remote_port,omitempty"`
	RemoteIP   netip.Addr       `json:"remote_ip,omitzero"`
}

type WireGuardConfig struct {
	Name       string   `json:"name"`
	PrivateKey string   `json:"-"` // Никогда не отдаем наружу
	PublicKey  string   `json:"public_key"`
	Endpoint   string   `json:"endpoint"`
	AllowedIPs []string `json:"allowed_ips"`
	ListenPort uint16   `json:"listen_port"`
}

// NetworkPolicy заменяется целиком, частичного слияния нет.
type NetworkPolicy struct {
	AllowedEndpoints  []string `json:"allowed_endpoints" mapstructure:"allowed_endpoints"`
	BlockedIPs        []string `json:"blocked_ips" mapstructure:"blocked_ips"`
	MaxConnections    uint32   `json:"max_connections" mapstructure:"max_connections"`
	RequireEncryption bool     `json:"require_encryption" mapstructure:"require_encryption"`
}

func DefaultNetworkPolicy() NetworkPolicy {
	return NetworkPolicy{MaxConnections: 10, RequireEncryption: true}
}

type SuspiciousActivity struct {
	IP           netip.Addr `json:"ip"`
	ActivityType string     `json:"activity_type"`
	Timestamp    time.Time  `json:"timestamp"`
	Severity     RiskLevel  `json:"severity"`
}

// ConnectionInfo — накопительные счетчики туннеля.
type ConnectionInfo struct {
	RemoteIP      netip.Addr `json:"remote_ip"`
	RemotePort    uint16     `json:"remote_port"`
	Protocol      Protocol   `json:"protocol"`
	BytesSent     uint64     `json:"bytes_sent"`
	BytesReceived uint64     `json:"bytes_received"`
	EstablishedAt time.Time  `json:"established_at"`
	LastActivity  time.Time  `json:"last_activity"`
}

// NetworkEvent — что именно зафиксировал сетевой монитор.
type NetworkEvent struct {
	ActionType  string   `json:"action_type"`
	Description string   `json:"description"`
	RiskFactors []string `json:"risk_factors"`
}

// ConnectionDecision — вердикт сетевого монитора.
type ConnectionDecision struct {
	Allowed              bool          `json:"allowed"`
	RiskLevel            RiskLevel     `json:"risk_level"`
	Reason               string        `json:"reason"`
	InterventionRequired bool          `json:"intervention_required"`
	Event                *NetworkEvent `json:"event,omitempty"`
}
