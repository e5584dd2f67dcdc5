package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/template"
)

// TemplateServiceInterface はテンプレートハンドラーが必要とするサービスインターフェース。
type TemplateServiceInterface interface {
	List(ctx context.Context) ([]*model.Template, error)
	GetBySlug(ctx context.Context, slug string) (*model.Template, error)
	GetActive(ctx context.Context, clerkID, businessID string) (*template.ActiveSelection, error)
	Select(ctx context.Context, clerkID, businessID, templateID string) error
	UpdateCustomizations(ctx context.Context, clerkID, businessID string, in model.TemplateCustomizations) error
}

// TemplateHandler はサイトテンプレートのHTTPハンドラー。
type TemplateHandler struct {
	service TemplateServiceInterface
}

// NewTemplateHandler はTemplateHandlerを生成する。
func NewTemplateHandler(service TemplateServiceInterface) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// List はテンプレートカタログを返す。
// GET /api/templates
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if templates == nil {
		templates = []*model.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// GetBySlug はテンプレート詳細を返す。
// GET /api/templates/:slug
func (h *TemplateHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.service.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// GetActive はビジネスの現在のテンプレート選択を返す。
// GET /api/businesses/:id/template
func (h *TemplateHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	selection, err := h.service.GetActive(r.Context(), clerkID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selection)
}

// selectTemplateRequest はテンプレート選択リクエストのボディ。
type selectTemplateRequest struct {
	TemplateID string `json:"template_id"`
}

// Select はビジネスのテンプレートを切り替える。
// PUT /api/businesses/:id/template
func (h *TemplateHandler) Select(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req selectTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.Select(r.Context(), clerkID, chi.URLParam(r, "id"), req.TemplateID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}

// UpdateCustomizations はテンプレートカスタマイズをマージ更新する。
// PUT /api/businesses/:id/template/customizations
func (h *TemplateHandler) UpdateCustomizations(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req model.TemplateCustomizations
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateCustomizations(r.Context(), clerkID, chi.URLParam(r, "id"), req); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}
