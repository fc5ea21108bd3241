package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/xela07ax/higher-guardian/internal/audit"
)

const auditColumns = 14

const schema = `
CREATE TABLE IF NOT EXISTS guardian_audit (
	id            UUID PRIMARY KEY,
	trace_id      TEXT NOT NULL,
	source        TEXT NOT NULL,
	agent_id      TEXT NOT NULL,
	action_id     TEXT NOT NULL,
	action_type   TEXT NOT NULL,
	payload       JSONB,
	risk_level    TEXT NOT NULL,
	risk_score    DOUBLE PRECISION NOT NULL,
	intervention  TEXT NOT NULL,
	ethics_score  DOUBLE PRECISION,
	status        TEXT NOT NULL,
	reasoning     TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS guardian_audit_agent_idx ON guardian_audit (agent_id, created_at);
`

// Пауза перед повтором, когда у Postgres кончились ресурсы (класс SQLSTATE 53).
const throttleDelay = 2 * time.Second

type AuditRepo struct {
	db *sql.DB
}

type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewAuditRepo открывает пул. Соединение проверяется отдельно через Ping.
func NewAuditRepo(connString string, pool PoolConfig) (*AuditRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if pool.MaxConns > 0 {
		db.SetMaxOpenConns(int(pool.MaxConns))
	}
	if pool.MinConns > 0 {
		db.SetMaxIdleConns(int(pool.MinConns))
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}, nil
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (r *AuditRepo) Close() error {
	return r.db.Close()
}

// Postgres принимает не больше 65535 параметров на запрос.
const (
	maxParams    = 65535
	maxBatchRows = maxParams / auditColumns
)

const insertPrefix = "INSERT INTO guardian_audit (id, trace_id, source, agent_id, action_id, action_type, payload, " +
	"risk_level, risk_score, intervention, ethics_score, status, reasoning, created_at) VALUES "

const insertSuffix = " ON CONFLICT (id) DO NOTHING"

// WriteBatch пишет пачку многострочными вставками по maxBatchRows строк. Повтор пачки не дублирует строки.
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	for start := 0; start < len(events); start += maxBatchRows {
		end := min(start+maxBatchRows, len(events))
		query, args := buildInsert(events[start:end])
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return classify(err)
		}
	}
	return nil
}

// buildInsert собирает VALUES ($1..$14), ($15..$28), ... и плоский список аргументов.
func buildInsert(events []audit.Event) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(insertPrefix)
	args := make([]interface{}, 0, len(events)*auditColumns)

	for i, e := range events {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= auditColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", i*auditColumns+c)
		}
		sb.WriteString(")")

		payload, err := json.Marshal(e.Payload)
		if err != nil {
			payload = []byte("null")
		}
		var ethics interface{}
		if e.EthicsScore != nil {
			ethics = *e.EthicsScore
		}

		args = append(args,
			e.ID, e.TraceID, e.Source, e.AgentID, e.ActionID, e.ActionType,
			payload, e.RiskLevel, e.RiskScore, e.Intervention, ethics,
			e.Status, e.Reasoning, e.Timestamp,
		)
	}

	sb.WriteString(insertSuffix)
	return sb.String(), args
}

// classify превращает нехватку ресурсов Postgres в ThrottleError для политики повторов.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "53") {
		return &audit.ThrottleError{RetryAfter: throttleDelay, Cause: err}
	}
	return err
}
