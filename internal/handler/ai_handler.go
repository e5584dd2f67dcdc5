package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tradesite/internal/model"
)

// AIServiceInterface はAI生成ハンドラーが必要とするサービスインターフェース。
type AIServiceInterface interface {
	Generate(ctx context.Context, clerkID, businessID string, section model.SectionType, tone model.ToneType) (*model.GeneratedContent, error)
	GetUsage(ctx context.Context, clerkID, businessID string) (*model.AIUsage, error)
	Reset(ctx context.Context, clerkID, businessID string) error
}

// AIHandler はAIコンテンツ生成のHTTPハンドラー。
type AIHandler struct {
	service AIServiceInterface
}

// NewAIHandler はAIHandlerを生成する。
func NewAIHandler(service AIServiceInterface) *AIHandler {
	return &AIHandler{service: service}
}

// generateRequest はコンテンツ生成リクエストのボディ。
type generateRequest struct {
	Section string `json:"section"`
	Tone    string `json:"tone"`
}

// Generate はクォータを消費してセクションコンテンツを生成する。
// POST /api/businesses/:id/ai/generate
func (h *AIHandler) Generate(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Section == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("生成するセクションを指定してください。"))
		return
	}

	content, err := h.service.Generate(
		r.Context(), clerkID, chi.URLParam(r, "id"),
		model.SectionType(req.Section), model.ToneType(req.Tone),
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

// GetUsage はクォータ使用状況を返す。
// GET /api/businesses/:id/ai/usage
func (h *AIHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUsage(r.Context(), clerkID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Reset はクォータカウンタをリセットする。管理者のみ。
// POST /api/businesses/:id/ai/reset
func (h *AIHandler) Reset(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Reset(r.Context(), clerkID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}
