// Package interceptors carries the request id and idempotency key of an
// incoming call into its context, for both HTTP and gRPC servers.
package interceptors

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/food-ordering/internal/pkg/interceptors/constants"
)

func WithRequestMetadata(ctx context.Context, requestID, idempotencyKey string) context.Context {
	ctx = context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
	return context.WithValue(ctx, constants.ContextKeyIdempotencyKey, idempotencyKey)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}

func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(constants.ContextKeyIdempotencyKey).(string)
	return key
}

// UnaryServerInterceptor reads x-request-id and x-idempotency-key from the
// incoming metadata. A missing request id is generated.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		requestID := GetMetadataValue(ctx, constants.HeaderXRequestId)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		idempotencyKey := GetMetadataValue(ctx, constants.HeaderXIdempotencyKey)

		ctx = WithRequestMetadata(ctx, requestID, idempotencyKey)
		slog.DebugContext(ctx, "grpc call",
			"method", info.FullMethod, "request_id", requestID, "idempotency_key", idempotencyKey)

		return handler(ctx, req)
	}
}

// GetMetadataValue returns the first value of key in the incoming metadata.
func GetMetadataValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}
