package engine

import (
	"context"
	"encoding/json"

	"github.com/xela07ax/higher-guardian/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Сервис описан вручную: запрос и ответ — google.protobuf.Struct, кодогенерация не нужна.
const (
	GuardianServiceName  = "guardian.v1.GuardianService"
	validateActionMethod = "/" + GuardianServiceName + "/ValidateAction"
)

type GuardianServiceServer interface {
	ValidateAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var GuardianServiceDesc = grpc.ServiceDesc{
	ServiceName: GuardianServiceName,
	HandlerType: (*GuardianServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateAction", Handler: validateActionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "guardian/v1/guardian.proto",
}

func validateActionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GuardianServiceServer).ValidateAction(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: validateActionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(GuardianServiceServer).ValidateAction(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type GRPCGatewayServer struct {
	gw *Gateway
}

func NewGRPCGatewayServer(gw *Gateway) *GRPCGatewayServer {
	return &GRPCGatewayServer{gw: gw}
}

// Register вешает сервис на gRPC сервер.
func (s *GRPCGatewayServer) Register(srv *grpc.Server) {
	srv.RegisterService(&GuardianServiceDesc, s)
}

func (s *GRPCGatewayServer) ValidateAction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	// 1. Разбираем Struct в запрос
	fields := in.AsMap()
	req := ActionRequest{}
	req.AgentID, _ = fields["agent_id"].(string)
	req.ActionType, _ = fields["action_type"].(string)
	req.Payload, _ = fields["payload"].(map[string]interface{})

	// 2. Вызываем единый пайплайн обработки (Тот же, что и для HTTP!)
	resp, err := s.gw.ProcessAction(ctx, req)
	if err != nil {
		if domain.KindOf(err) == domain.KindSystemError {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	// 3. Собираем ответ обратно в Protobuf
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	result, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return result, nil
}

// GuardianServiceClient клиент для агентов и тестов.
type GuardianServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGuardianServiceClient(cc grpc.ClientConnInterface) *GuardianServiceClient {
	return &GuardianServiceClient{cc: cc}
}

func (c *GuardianServiceClient) ValidateAction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, validateActionMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
