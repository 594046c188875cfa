package grpc

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/simaogato/wealthflow-planner/internal/logger"
)

// ClientIDHeader optionally names the calling client; it is added to the request logger
const ClientIDHeader = "x-client-id"

// AuthInterceptor checks the API token in the "authorization" metadata, sent
// either bare or as "Bearer <token>", and rejects the call with Unauthenticated
// when it is missing or wrong. A client id in ClientIDHeader is attached to the
// request logger before the handler runs.
func AuthInterceptor(apiToken string) grpc.UnaryServerInterceptor {
	want := []byte(apiToken)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization header")
		}
		token, ok := bearerToken(values[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "unsupported authorization scheme")
		}
		if len(want) == 0 || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		if ids := md.Get(ClientIDHeader); len(ids) > 0 && ids[0] != "" {
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("client", ids[0]))
		}
		return handler(ctx, req)
	}
}

// bearerToken strips an optional "Bearer " prefix. Any other scheme is rejected.
func bearerToken(value string) (string, bool) {
	value = strings.TrimSpace(value)
	scheme, rest, found := strings.Cut(value, " ")
	if !found {
		return value, true
	}
	if !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// LoggingInterceptor attaches a request-scoped logger to the context and logs
// each call with its status code and latency.
func LoggingInterceptor(log *zap.SugaredLogger) grpc.UnaryServerInterceptor {
	log = logger.OrNop(log)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		reqLog := log.With("method", info.FullMethod, "request_id", uuid.NewString())

		resp, err := handler(logger.WithContext(ctx, reqLog), req)

		code := status.Code(err)
		fields := []interface{}{"code", code.String(), "duration", time.Since(start)}
		switch code {
		case codes.OK:
			reqLog.Debugw("rpc handled", fields...)
		case codes.Internal, codes.Unknown, codes.Unavailable:
			reqLog.Errorw("rpc failed", append(fields, "error", err)...)
		default:
			reqLog.Infow("rpc rejected", append(fields, "error", err)...)
		}
		return resp, err
	}
}

// NewGRPCServer builds a grpc.Server with logging and token auth and registers
// the planner service plus reflection on it
func NewGRPCServer(srv PlannerServer, token string, log *zap.SugaredLogger) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(log),
		AuthInterceptor(token),
	))
	RegisterPlannerServer(s, srv)
	reflection.Register(s)
	return s
}
