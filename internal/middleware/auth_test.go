package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskplanner/api/handler"
	"github.com/fastygo/taskplanner/domain"
	authUC "github.com/fastygo/taskplanner/usecase/auth"
)

type stubAuth map[string]string

func (s stubAuth) Authenticate(_ context.Context, token string) (*authUC.Claims, error) {
	user, ok := s[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	claims := &authUC.Claims{UserID: user}
	claims.ID = "session-" + user
	return claims, nil
}

func TestJWTAuth(t *testing.T) {
	var gotOwner, gotSession string
	next := func(ctx *fasthttp.RequestCtx) {
		gotOwner, _ = ctx.UserValue(handler.OwnerIDKey).(string)
		gotSession, _ = ctx.UserValue(handler.SessionIDKey).(string)
		ctx.SetStatusCode(fasthttp.StatusOK)
	}
	h := JWTAuth(stubAuth{"good": "u1"}, nil)(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", fasthttp.StatusUnauthorized},
		{"unknown token", "Bearer bad", fasthttp.StatusUnauthorized},
		{"bearer token", "Bearer good", fasthttp.StatusOK},
		{"bare token", "good", fasthttp.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOwner, gotSession = "", ""
			var ctx fasthttp.RequestCtx
			if tt.header != "" {
				ctx.Request.Header.Set("Authorization", tt.header)
			}
			h(&ctx)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
			if tt.status == fasthttp.StatusOK {
				assert.Equal(t, "u1", gotOwner)
				assert.Equal(t, "session-u1", gotSession)
				assert.Equal(t, "u1", string(ctx.Request.Header.Peek("X-User-ID")))
			} else {
				assert.Empty(t, gotOwner)
				assert.Contains(t, string(ctx.Response.Body()), `"success":false`)
			}
		})
	}
}
