package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/pkg/httpcontext"
	profileUC "github.com/fastygo/taskplanner/usecase/profile"
)

// ProfileHandler serves the caller's own user record.
type ProfileHandler struct {
	baseHandler
	uc *profileUC.UseCase
}

func NewProfileHandler(uc *profileUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// GetProfile handles GET /api/v1/profile.
func (h *ProfileHandler) GetProfile(ctx *fasthttp.RequestCtx) {
	h.serve(ctx, func(stdCtx context.Context, userID string) (*domain.User, error) {
		return h.uc.GetProfile(stdCtx, userID)
	})
}

// UpdateProfile handles PUT /api/v1/profile. Only name and metadata are editable.
func (h *ProfileHandler) UpdateProfile(ctx *fasthttp.RequestCtx) {
	var req transport.ProfileUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.badRequest(ctx, "invalid payload")
		return
	}
	h.serve(ctx, func(stdCtx context.Context, userID string) (*domain.User, error) {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return h.uc.UpdateProfile(stdCtx, userID, profileUC.Update{Name: req.Name, Metadata: req.Metadata})
	})
}

func (h *ProfileHandler) serve(ctx *fasthttp.RequestCtx, load func(context.Context, string) (*domain.User, error)) {
	userID := h.ownerID(ctx)
	if userID == "" {
		return
	}
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := load(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, stdCtx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.NewProfileView(user))
}
