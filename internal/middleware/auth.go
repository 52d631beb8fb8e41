package middleware

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/api/handler"
	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/domain"
	authUC "github.com/fastygo/taskplanner/usecase/auth"
)

// Authenticator verifies an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*authUC.Claims, error)
}

// JWTAuth rejects requests without a valid Bearer token and exposes the
// caller id to handlers as a user value and the X-User-ID header.
func JWTAuth(auth Authenticator, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "No token, authorization denied")
				return
			}

			claims, err := auth.Authenticate(ctx, tokenString)
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "Token is not valid")
				return
			}

			ctx.SetUserValue(handler.OwnerIDKey, claims.UserID)
			ctx.SetUserValue(handler.SessionIDKey, claims.ID)
			ctx.Request.Header.Set("X-User-ID", claims.UserID)

			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return header
}
