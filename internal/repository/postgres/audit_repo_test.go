package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/higher-guardian/internal/audit"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	tooMany := &pgconn.PgError{Code: "53300", Message: "too many connections"}
	err := classify(tooMany)
	var te *audit.ThrottleError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, throttleDelay, te.RetryAfter)
	assert.ErrorIs(t, err, tooMany)

	unique := &pgconn.PgError{Code: "23505"}
	assert.Same(t, unique, classify(unique))

	plain := errors.New("conn reset")
	assert.Equal(t, plain, classify(plain))
}

func TestBuildInsertNumbersPlaceholdersAcrossRows(t *testing.T) {
	score := 0.75
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	events := []audit.Event{
		{
			ID: "00000000-0000-0000-0000-000000000001", TraceID: "t-1", Source: audit.SourceDecision,
			AgentID: "agent-1", ActionID: "a-1", ActionType: "data_analysis",
			Payload:   map[string]interface{}{"explanation": "report"},
			RiskLevel: "LOW", Intervention: "MONITOR", EthicsScore: &score,
			Status: audit.StatusApproved, Reasoning: "Risk factors: ", Timestamp: ts,
		},
		{
			ID: "00000000-0000-0000-0000-000000000002", TraceID: "t-2", Source: audit.SourceTransaction,
			AgentID: "agent-2", ActionType: "transaction", RiskLevel: "HIGH", RiskScore: 0.7,
			Status: audit.StatusRejected, Reasoning: "limit", Timestamp: ts,
		},
	}

	query, args := buildInsert(events)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO guardian_audit (id, trace_id,"))
	assert.True(t, strings.HasSuffix(query, " ON CONFLICT (id) DO NOTHING"))
	assert.Contains(t, query, "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14), "+
		"($15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28) ON CONFLICT")
	assert.NotContains(t, query, "$29")

	require.Len(t, args, 2*auditColumns)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", args[0])
	assert.JSONEq(t, `{"explanation":"report"}`, string(args[6].([]byte)))
	assert.Equal(t, 0.75, args[10])
	assert.Equal(t, ts, args[13])

	second := args[auditColumns:]
	assert.Equal(t, "00000000-0000-0000-0000-000000000002", second[0])
	assert.Equal(t, audit.SourceTransaction, second[2])
	assert.Equal(t, "null", string(second[6].([]byte)), "nil payload")
	assert.Nil(t, second[10], "nil ethics score becomes SQL NULL")
	assert.Equal(t, audit.StatusRejected, second[11])
}

func TestBatchRowsFitParameterLimit(t *testing.T) {
	assert.LessOrEqual(t, maxBatchRows*auditColumns, maxParams)

	events := make([]audit.Event, maxBatchRows)
	for i := range events {
		events[i].ID = fmt.Sprintf("id-%d", i)
	}
	query, args := buildInsert(events)
	assert.Len(t, args, maxBatchRows*auditColumns)
	assert.Contains(t, query, fmt.Sprintf("$%d)", maxBatchRows*auditColumns))
}
