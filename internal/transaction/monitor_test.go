package transaction

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/domain"
	"go.uber.org/zap"
)

const goodRecipient = "acct-0001-vendor"

type rejections struct {
	mu      sync.Mutex
	reasons []string
}

func (r *rejections) ObserveTransactionRejected(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func tx(agent string, amount float64, recipient string) domain.Transaction {
	return domain.Transaction{ID: "tx", AgentID: agent, Amount: amount, Recipient: recipient, TransactionType: "payment"}
}

func newMonitor() (*Monitor, *rejections) {
	obs := &rejections{}
	m := NewMonitor(DefaultConfig(), obs, zap.NewNop())
	m.SetSpendingLimit("agent-1", 500)
	m.SetDailyLimit("agent-1", 1000)
	return m, obs
}

func TestValidateTransaction(t *testing.T) {
	tests := []struct {
		name   string
		tx     domain.Transaction
		kind   domain.ErrorKind
		reason string
	}{
		{name: "within limits", tx: tx("agent-1", 99.5, goodRecipient)},
		{name: "over single cap", tx: tx("agent-1", 500.01, goodRecipient), kind: domain.KindTransactionLimitExceeded, reason: ReasonTransactionLimit},
		{name: "short recipient", tx: tx("agent-1", 10.5, "abc"), kind: domain.KindHumanApprovalRequired, reason: ReasonSuspicious},
		{name: "unknown recipient", tx: tx("agent-1", 10.5, "unknown-wallet-42"), kind: domain.KindHumanApprovalRequired, reason: ReasonSuspicious},
		{name: "negative amount", tx: tx("agent-1", -5, goodRecipient), kind: domain.KindSystemError, reason: ReasonInvalid},
		{name: "nan amount", tx: tx("agent-1", math.NaN(), goodRecipient), kind: domain.KindSystemError, reason: ReasonInvalid},
		{name: "round amount without limits", tx: tx("agent-9", 5000, goodRecipient), kind: domain.KindHumanApprovalRequired, reason: ReasonSuspicious},
		{name: "non round large amount without limits", tx: tx("agent-9", 5000.25, goodRecipient)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, obs := newMonitor()
			err := m.ValidateTransaction(tt.tx)
			if tt.kind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.tx.Amount, m.SpendingSummary(tt.tx.AgentID).DailySpent)
				assert.Empty(t, obs.reasons)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, domain.KindOf(err))
			assert.Equal(t, []string{tt.reason}, obs.reasons)
			assert.Zero(t, m.SpendingSummary(tt.tx.AgentID).DailySpent)
		})
	}
}

func TestDailyLimitRejectionLeavesTotalUnchanged(t *testing.T) {
	m, _ := newMonitor()

	require.NoError(t, m.ValidateTransaction(tx("agent-1", 450.5, goodRecipient)))
	require.NoError(t, m.ValidateTransaction(tx("agent-1", 450.5, goodRecipient)))
	before := m.SpendingSummary("agent-1").DailySpent
	assert.Equal(t, 901.0, before)

	err := m.ValidateTransaction(tx("agent-1", 100.5, goodRecipient))
	assert.ErrorIs(t, err, domain.ErrTransactionLimitExceeded)
	assert.Equal(t, before, m.SpendingSummary("agent-1").DailySpent)

	// подозрительная тоже не списывается
	err = m.ValidateTransaction(tx("agent-1", 50.5, "short"))
	assert.ErrorIs(t, err, domain.ErrHumanApprovalRequired)
	assert.Equal(t, before, m.SpendingSummary("agent-1").DailySpent)
}

func TestExactLimitsPass(t *testing.T) {
	m, _ := newMonitor()
	m.SetSpendingLimit("agent-1", 600)
	require.NoError(t, m.ValidateTransaction(tx("agent-1", 499.5, goodRecipient)))
	require.NoError(t, m.ValidateTransaction(tx("agent-1", 500.5, goodRecipient)))
	assert.Equal(t, 1000.0, m.SpendingSummary("agent-1").DailySpent)
}

func TestResetDailySpending(t *testing.T) {
	m, _ := newMonitor()
	require.NoError(t, m.ValidateTransaction(tx("agent-1", 300.5, goodRecipient)))
	m.ResetDailySpending()

	s := m.SpendingSummary("agent-1")
	assert.Zero(t, s.DailySpent)
	assert.Equal(t, 1000.0, s.DailyLimit)
	assert.Equal(t, 500.0, s.TransactionLimit)
}

func TestSummaryForUnknownAgent(t *testing.T) {
	m, _ := newMonitor()
	assert.Equal(t, domain.SpendingSummary{AgentID: "ghost"}, m.SpendingSummary("ghost"))
}

func TestConcurrentSpendingNeverExceedsDailyLimit(t *testing.T) {
	m, _ := newMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.ValidateTransaction(tx("agent-1", 99.5, goodRecipient))
		}()
	}
	wg.Wait()

	spent := m.SpendingSummary("agent-1").DailySpent
	assert.LessOrEqual(t, spent, 1000.0)
	assert.Equal(t, 995.0, spent)
}
