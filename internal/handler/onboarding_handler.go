package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/onboarding"
)

// OnboardingServiceInterface はオンボーディングハンドラーが必要とするサービスインターフェース。
type OnboardingServiceInterface interface {
	SaveStep(ctx context.Context, stepID string, current, fragment onboarding.Draft) (*onboarding.StepResult, error)
	Submit(ctx context.Context, clerkID string, draft onboarding.Draft) (*model.Business, error)
}

// OnboardingHandler はオンボーディングウィザードのHTTPハンドラー。
// ドラフトはクライアントが保持し、サーバーは検証とマージのみ行う。
type OnboardingHandler struct {
	service OnboardingServiceInterface
}

// NewOnboardingHandler はOnboardingHandlerを生成する。
func NewOnboardingHandler(service OnboardingServiceInterface) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

// Steps はウィザードのステップ定義を返す。
// GET /api/onboarding/steps
func (h *OnboardingHandler) Steps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, onboarding.Steps())
}

// saveStepRequest はステップ保存リクエストのボディ。
type saveStepRequest struct {
	Draft    onboarding.Draft `json:"draft"`
	Fragment onboarding.Draft `json:"fragment"`
}

// SaveStep はステップの入力断片を検証してドラフトにマージする。
// POST /api/onboarding/steps/:step
func (h *OnboardingHandler) SaveStep(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	var req saveStepRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.SaveStep(r.Context(), chi.URLParam(r, "step"), req.Draft, req.Fragment)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// submitRequest は最終送信リクエストのボディ。
type submitRequest struct {
	Draft onboarding.Draft `json:"draft"`
}

// Submit はドラフト全体を再検証してビジネスを作成する。
// POST /api/onboarding/submit
func (h *OnboardingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	b, err := h.service.Submit(r.Context(), clerkID, req.Draft)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBusinessResponse(b))
}
