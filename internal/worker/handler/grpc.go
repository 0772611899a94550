package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/worker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const syncAdminService = "omnipos.sync.v1.SyncAdmin"

// SyncAdminServer answers with loosely typed structs so that no generated
// code is needed on either side.
type SyncAdminServer interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Trigger(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// RetryErrors accepts an optional "op_ids" list.
	RetryErrors(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterSyncAdminServer(s grpc.ServiceRegistrar, srv SyncAdminServer) {
	s.RegisterService(&SyncAdminServiceDesc, srv)
}

var SyncAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: syncAdminService,
	HandlerType: (*SyncAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: getStatsHandler},
		{MethodName: "Trigger", Handler: triggerHandler},
		{MethodName: "RetryErrors", Handler: retryErrorsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/sync/v1/admin.proto",
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncAdminServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + syncAdminService + "/GetStats"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(SyncAdminServer).GetStats(ctx, req.(*emptypb.Empty))
	})
}

func triggerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncAdminServer).Trigger(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + syncAdminService + "/Trigger"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(SyncAdminServer).Trigger(ctx, req.(*emptypb.Empty))
	})
}

func retryErrorsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyncAdminServer).RetryErrors(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + syncAdminService + "/RetryErrors"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(SyncAdminServer).RetryErrors(ctx, req.(*structpb.Struct))
	})
}

// SyncAdminClient calls a running daemon.
type SyncAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncAdminClient(cc grpc.ClientConnInterface) *SyncAdminClient {
	return &SyncAdminClient{cc: cc}
}

func (c *SyncAdminClient) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+syncAdminService+"/GetStats", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SyncAdminClient) Trigger(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+syncAdminService+"/Trigger", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SyncAdminClient) RetryErrors(ctx context.Context, opIDs []string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	ids := make([]any, len(opIDs))
	for i, id := range opIDs {
		ids[i] = id
	}
	in, err := structpb.NewStruct(map[string]any{"op_ids": ids})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+syncAdminService+"/RetryErrors", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type SyncAdminHandler struct {
	sync   Syncer
	outbox outbox.UseCase
	logger logger.ZapLogger
}

func NewSyncAdminHandler(sync Syncer, ob outbox.UseCase, log logger.ZapLogger) *SyncAdminHandler {
	return &SyncAdminHandler{
		sync:   sync,
		outbox: ob,
		logger: log,
	}
}

func (h *SyncAdminHandler) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats, err := h.outbox.Stats(ctx)
	if err != nil {
		h.logger.Error("failed to read outbox stats", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(map[string]any{
		"outbox": stats,
		"worker": h.sync.Status(),
	})
}

func (h *SyncAdminHandler) Trigger(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	err := h.sync.TriggerNow()
	switch {
	case errors.Is(err, worker.ErrCycleInFlight):
		return nil, status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, worker.ErrStopped):
		return nil, status.Error(codes.Unavailable, err.Error())
	case err != nil:
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(map[string]string{"status": "triggered"})
}

func (h *SyncAdminHandler) RetryErrors(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var opIDs []string
	if list := req.GetFields()["op_ids"].GetListValue(); list != nil {
		for _, v := range list.GetValues() {
			if id := v.GetStringValue(); id != "" {
				opIDs = append(opIDs, id)
			}
		}
	}

	retried, err := h.outbox.RetryErrorOperations(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	requeued, err := h.outbox.Requeue(ctx, opIDs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(retryResponse{Retried: retried, Requeued: requeued})
}

// toStruct goes through JSON so that json tags decide the field names.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}
