package service

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"github.com/xela07ax/higher-guardian/internal/guardian"
	"github.com/xela07ax/higher-guardian/internal/network"
	"github.com/xela07ax/higher-guardian/internal/risk"
	"github.com/xela07ax/higher-guardian/internal/transaction"
)

func newGuardianService(t *testing.T) (*GuardianService, *guardian.Guardian, *transaction.Monitor) {
	t.Helper()
	g := guardian.NewGuardian(risk.NewAnalyzer(risk.DefaultConfig(), nil, nil), nil, nil, nil, nil, nil, guardian.DefaultConfig())
	tx := transaction.NewMonitor(transaction.DefaultConfig(), nil, nil)
	return NewGuardianService(g, tx, nil), g, tx
}

func TestSetLimitsFeedsBothComponents(t *testing.T) {
	svc, g, tx := newGuardianService(t)

	require.NoError(t, svc.SetLimits("agent-1", Limits{MaxAmount: 100, DailyLimit: 250}))

	guard, ok := g.TransactionGuard("agent-1")
	require.True(t, ok)
	assert.Equal(t, 100.0, guard.MaxAmount)

	summary := tx.SpendingSummary("agent-1")
	assert.Equal(t, 100.0, summary.TransactionLimit)
	assert.Equal(t, 250.0, summary.DailyLimit)

	view := svc.Limits("agent-1")
	require.NotNil(t, view.Guard)
	assert.Equal(t, 250.0, view.Guard.DailyLimit)
	assert.Nil(t, svc.Limits("agent-2").Guard)
}

func TestSetLimitsRejectsNegative(t *testing.T) {
	svc, g, tx := newGuardianService(t)

	err := svc.SetLimits("agent-1", Limits{MaxAmount: -1})
	assert.ErrorIs(t, err, domain.ErrSystemError)
	_, ok := g.TransactionGuard("agent-1")
	assert.False(t, ok)
	assert.Zero(t, tx.SpendingSummary("agent-1").TransactionLimit)

	assert.ErrorIs(t, svc.SetLimits("agent-1", Limits{MaxAmount: 1, DailyLimit: -5}), domain.ErrSystemError)
}

func TestUpsertAgentRequiresID(t *testing.T) {
	svc, _, _ := newGuardianService(t)
	assert.ErrorIs(t, svc.UpsertAgent(domain.AISystemProfile{Name: "nameless"}), domain.ErrSystemError)

	require.NoError(t, svc.UpsertAgent(domain.AISystemProfile{ID: "a1", Name: "bot"}))
	agent, ok := svc.Agent("a1")
	require.True(t, ok)
	assert.Equal(t, "bot", agent.Name)
	assert.Len(t, svc.Agents(), 1)
}

func TestOverrideUnknownDecision(t *testing.T) {
	svc, _, _ := newGuardianService(t)
	_, err := svc.Override(context.Background(), "missing", true, "op-1")
	assert.ErrorIs(t, err, domain.ErrDecisionNotFound)
}

func TestNetworkServiceWithoutRedis(t *testing.T) {
	nm := network.NewMonitor(network.DefaultConfig(), nil, nil)
	svc := NewNetworkService(nil, nm, nil)
	ip := netip.MustParseAddr("192.0.2.10")

	require.NoError(t, svc.Block(context.Background(), ip))
	assert.Equal(t, []netip.Addr{ip}, svc.BlockedIPs())
	assert.False(t, nm.ValidateConnection(ip, 443, domain.ProtocolTCP).Allowed)

	require.NoError(t, svc.Unblock(context.Background(), ip))
	assert.Empty(t, svc.BlockedIPs())
}

func TestNetworkServiceTunnels(t *testing.T) {
	nm := network.NewMonitor(network.DefaultConfig(), nil, nil)
	svc := NewNetworkService(nil, nm, nil)

	nm.AddActiveTunnel("wg0")
	nm.AddActiveTunnel("wg1")
	nm.MonitorWireGuardTunnel(domain.WireGuardConfig{Name: "wg1", Endpoint: "198.51.100.1:51820"}, 10, 20)

	views := svc.Tunnels()
	require.Len(t, views, 2)
	assert.Nil(t, views[0].Stats)
	require.NotNil(t, views[1].Stats)
	assert.Equal(t, uint64(20), views[1].Stats.BytesReceived)
}
