package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink пишет события в структурный лог. Используется, когда БД для аудита не настроена.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit_trail")}
}

func (s *LogSink) WriteBatch(_ context.Context, events []Event) error {
	for _, ev := range events {
		fields := []zap.Field{
			zap.String("id", ev.ID),
			zap.String("trace_id", ev.TraceID),
			zap.String("source", ev.Source),
			zap.String("agent_id", ev.AgentID),
			zap.String("action_id", ev.ActionID),
			zap.String("action_type", ev.ActionType),
			zap.String("status", ev.Status),
			zap.Bool("approved", ev.Approved),
			zap.String("risk_level", ev.RiskLevel),
			zap.Float64("risk_score", ev.RiskScore),
			zap.String("reasoning", ev.Reasoning),
			zap.Time("ts", ev.Timestamp),
		}
		if ev.EthicsScore != nil {
			fields = append(fields, zap.Float64("ethics_score", *ev.EthicsScore))
		}
		s.logger.Info("audit", fields...)
	}
	return nil
}
