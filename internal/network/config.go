package network

import (
	"time"

	"github.com/xela07ax/higher-guardian/internal/domain"
)

type Config struct {
	RiskyPorts       []uint16      `mapstructure:"risky_ports"`
	SuspiciousWindow time.Duration `mapstructure:"suspicious_window"`
	SuspiciousLimit  int           `mapstructure:"suspicious_limit"` // Срабатывает, когда записей больше лимита
	Retention        time.Duration `mapstructure:"retention"`

	ExfilRatio          float64 `mapstructure:"exfil_ratio"`
	ExfilMinBytes       uint64  `mapstructure:"exfil_min_bytes"`
	ExfilOutboundBytes  uint64  `mapstructure:"exfil_outbound_bytes"`
	TrafficCapMegabytes uint64  `mapstructure:"traffic_cap_mb"`

	Policy domain.NetworkPolicy   `mapstructure:"policy"`
	Rules  []domain.FirewallRule `mapstructure:"-"` // nil — правила по умолчанию
}

func DefaultConfig() Config {
	return Config{
		RiskyPorts:          []uint16{22, 23, 135, 139, 445, 1433, 3389},
		SuspiciousWindow:    5 * time.Minute,
		SuspiciousLimit:     5,
		Retention:           24 * time.Hour,
		ExfilRatio:          10,
		ExfilMinBytes:       100_000_000,
		ExfilOutboundBytes:  500_000_000,
		TrafficCapMegabytes: 1000,
		Policy:              domain.DefaultNetworkPolicy(),
	}
}

// DefaultRules наблюдение за трафиком WireGuard.
func DefaultRules() []domain.FirewallRule {
	return []domain.FirewallRule{
		{
			Name:      "Monitor_WireGuard_Traffic",
			Action:    domain.FirewallMonitor,
			Direction: domain.DirectionBoth,
			Protocol:  domain.ProtocolUDP,
			LocalPort: 51820,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RiskyPorts == nil {
		c.RiskyPorts = d.RiskyPorts
	}
	if c.SuspiciousWindow <= 0 {
		c.SuspiciousWindow = d.SuspiciousWindow
	}
	if c.SuspiciousLimit <= 0 {
		c.SuspiciousLimit = d.SuspiciousLimit
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.ExfilRatio <= 0 {
		c.ExfilRatio = d.ExfilRatio
	}
	if c.ExfilMinBytes == 0 {
		c.ExfilMinBytes = d.ExfilMinBytes
	}
	if c.ExfilOutboundBytes == 0 {
		c.ExfilOutboundBytes = d.ExfilOutboundBytes
	}
	if c.TrafficCapMegabytes == 0 {
		c.TrafficCapMegabytes = d.TrafficCapMegabytes
	}
	if c.Policy.MaxConnections == 0 {
		c.Policy.MaxConnections = d.Policy.MaxConnections
	}
	if c.Rules == nil {
		c.Rules = DefaultRules()
	}
	return c
}
