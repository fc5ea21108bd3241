package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/xela07ax/higher-guardian/internal/audit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryAuthInterceptor проверяет токен агента в метаданных и прокидывает trace id
func UnaryAuthInterceptor(tokens *AgentTokens) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// 1. Извлекаем метаданные из контекста
		md, _ := metadata.FromIncomingContext(ctx)

		// 2. Ищем токен (в gRPC заголовки обычно в нижнем регистре)
		if tokens.Enabled() {
			values := md.Get("x-guardian-token")
			if len(values) == 0 {
				return nil, status.Error(codes.Unauthenticated, "missing access token")
			}
			if !tokens.Valid(values[0]) {
				return nil, status.Error(codes.Unauthenticated, "invalid access token")
			}
		}

		// 3. Trace ID тот же, что и в HTTP
		traceID := uuid.New().String()
		if ids := md.Get("x-trace-id"); len(ids) > 0 && ids[0] != "" {
			traceID = ids[0]
		}

		return handler(audit.WithTraceID(ctx, traceID), req)
	}
}
