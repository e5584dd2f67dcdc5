package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/tradesite/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetMe は認証ユーザーのプロフィールを返す。
	GetMe(ctx context.Context, clerkID string) (*model.User, error)
	// UpdatePlan はユーザーのプラン階層を更新する。
	UpdatePlan(ctx context.Context, clerkID string, planType model.PlanType) (*model.User, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userResponse はユーザープロフィールのAPIレスポンス。
type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"`
	PlanType  *string    `json:"plan_type"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// updatePlanRequest はプラン更新リクエストのボディ。
type updatePlanRequest struct {
	PlanType string `json:"plan_type"`
}

// Me は認証ユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetMe(r.Context(), clerkID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdatePlan はプラン階層を更新する。
// PUT /api/users/me/plan
func (h *UserHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updatePlanRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.service.UpdatePlan(r.Context(), clerkID, model.PlanType(req.PlanType))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	var planType *string
	if user.PlanType != nil {
		s := string(*user.PlanType)
		planType = &s
	}
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		PlanType:  planType,
		LastLogin: user.LastLogin,
		CreatedAt: user.CreatedAt,
	}
}
