package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/pkg/httpcontext"
	authUC "github.com/fastygo/taskplanner/usecase/auth"
)

// SessionIDKey is the user value holding the session id of the verified token.
const SessionIDKey = "session_id"

type AuthHandler struct {
	baseHandler
	uc *authUC.UseCase
}

func NewAuthHandler(uc *authUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Register a new user
// @Tags auth
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(ctx *fasthttp.RequestCtx) {
	var req transport.RegisterRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Register(stdCtx, authUC.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, clientInfo(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, token)
}

// @Summary Issue a new session
// @Tags auth
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	var req transport.LoginRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Email == "" || req.Password == "" {
		h.badRequest(ctx, "email and password are required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Login(stdCtx, req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, token)
}

// @Summary Refresh an existing session
// @Tags auth
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	var req transport.RefreshRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.SessionID == "" {
		h.badRequest(ctx, "session_id is required")
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Refresh(stdCtx, req.SessionID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, token)
}

// @Summary Revoke the current session
// @Tags auth
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	if h.ownerID(ctx) == "" {
		return
	}
	sessionID, _ := ctx.UserValue(SessionIDKey).(string)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if sessionID != "" {
		if err := h.uc.Logout(stdCtx, sessionID); err != nil {
			h.respondError(ctx, stdCtx, err)
			return
		}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewMessage("Logged out"))
}

func clientInfo(ctx *fasthttp.RequestCtx) authUC.ClientInfo {
	info := authUC.ClientInfo{UserAgent: string(ctx.Request.Header.UserAgent())}
	if addr := ctx.RemoteAddr(); addr != nil {
		info.RemoteAddr = addr.String()
	}
	return info
}
