package service

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/infra"
	"go.uber.org/zap"
)

// NetworkAdmin административная часть NetworkSecurityMonitor.
type NetworkAdmin interface {
	BlockIP(ip netip.Addr) bool
	UnblockIP(ip netip.Addr) bool
	BlockedIPs() []netip.Addr
	AddFirewallRule(rule domain.FirewallRule)
	Rules() []domain.FirewallRule
	UpdatePolicy(policy domain.NetworkPolicy)
	Policy() domain.NetworkPolicy
	ActiveTunnels() []string
	TunnelStats(name string) (domain.ConnectionInfo, bool)
	SuspiciousActivities() []domain.SuspiciousActivity
}

// TunnelView активный туннель со счетчиками (если трафик уже был).
type TunnelView struct {
	Name  string                 `json:"name"`
	Stats *domain.ConnectionInfo `json:"stats,omitempty"`
}

type NetworkService struct {
	NetworkAdmin
	rdb    *redis.Client // nil — только локальный блок-лист
	logger *zap.Logger
}

func NewNetworkService(rdb *redis.Client, net NetworkAdmin, logger *zap.Logger) *NetworkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkService{
		NetworkAdmin: net,
		rdb:          rdb,
		logger:       logger.Named("network-service"),
	}
}

func (s *NetworkService) Block(ctx context.Context, ip netip.Addr) error {
	return s.updateBlocklist(ctx, ip, true)
}

func (s *NetworkService) Unblock(ctx context.Context, ip netip.Addr) error {
	return s.updateBlocklist(ctx, ip, false)
}

// updateBlocklist локальное состояние, затем set в Redis и сигнал остальным инстансам.
func (s *NetworkService) updateBlocklist(ctx context.Context, ip netip.Addr, blocked bool) error {
	ip = ip.Unmap()
	if blocked {
		s.NetworkAdmin.BlockIP(ip)
	} else {
		s.NetworkAdmin.UnblockIP(ip)
	}
	if s.rdb == nil {
		return nil
	}

	// 1. Persistence Layer
	var err error
	if blocked {
		err = s.rdb.SAdd(ctx, infra.RedisKeyBlockedIPs, ip.String()).Err()
	} else {
		err = s.rdb.SRem(ctx, infra.RedisKeyBlockedIPs, ip.String()).Err()
	}
	if err != nil {
		s.logger.Error("failed to update blocklist in Redis", zap.String("ip", ip.String()), zap.Error(err))
		return fmt.Errorf("blocklist store error: %w", err)
	}

	// 2. Real-time Signaling
	signal := "off"
	if blocked {
		signal = "on"
	}
	payload := fmt.Sprintf("%s:%s", ip, signal)
	if err := s.rdb.Publish(ctx, infra.RedisChanIPBlock, payload).Err(); err != nil {
		s.logger.Warn("runtime signal delivery failed",
			zap.String("channel", infra.RedisChanIPBlock),
			zap.Error(err))
	}
	return nil
}

func (s *NetworkService) Tunnels() []TunnelView {
	names := s.NetworkAdmin.ActiveTunnels()
	views := make([]TunnelView, 0, len(names))
	for _, name := range names {
		v := TunnelView{Name: name}
		if stats, ok := s.NetworkAdmin.TunnelStats(name); ok {
			v.Stats = &stats
		}
		views = append(views, v)
	}
	return views
}
