package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/tradesite/internal/domainverify"
)

// DomainServiceInterface はドメインハンドラーが必要とするサービスインターフェース。
type DomainServiceInterface interface {
	SetDomain(ctx context.Context, clerkID, businessID, domain string) (string, error)
	Verify(ctx context.Context, clerkID, businessID, method string) (*domainverify.VerifyResult, error)
	RemoveDomain(ctx context.Context, clerkID, businessID string) error
}

// DomainHandler はカスタムドメインのHTTPハンドラー。
type DomainHandler struct {
	service DomainServiceInterface
}

// NewDomainHandler はDomainHandlerを生成する。
func NewDomainHandler(service DomainServiceInterface) *DomainHandler {
	return &DomainHandler{service: service}
}

// setDomainRequest はドメイン設定リクエストのボディ。
type setDomainRequest struct {
	Domain string `json:"domain"`
}

// setDomainResponse はドメイン設定レスポンス。
// 検証トークンと、DNS/ファイル両方式の設定手順に必要な値を返す。
type setDomainResponse struct {
	Domain            string `json:"domain"`
	VerificationToken string `json:"verification_token"`
	DNSRecordName     string `json:"dns_record_name"`
	FilePath          string `json:"file_path"`
}

// SetDomain はカスタムドメインを登録し検証トークンを発行する。
// PUT /api/businesses/:id/domain
func (h *DomainHandler) SetDomain(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req setDomainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	token, err := h.service.SetDomain(r.Context(), clerkID, chi.URLParam(r, "id"), req.Domain)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setDomainResponse{
		Domain:            req.Domain,
		VerificationToken: token,
		DNSRecordName:     domainverify.DNSRecordName,
		FilePath:          domainverify.WellKnownPath,
	})
}

// verifyDomainRequest はドメイン検証リクエストのボディ。
type verifyDomainRequest struct {
	Method string `json:"method"`
}

// Verify はドメイン所有を検証する。
// POST /api/businesses/:id/domain/verify
func (h *DomainHandler) Verify(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req verifyDomainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Verify(r.Context(), clerkID, chi.URLParam(r, "id"), req.Method)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RemoveDomain はカスタムドメインの登録を解除する。
// DELETE /api/businesses/:id/domain
func (h *DomainHandler) RemoveDomain(w http.ResponseWriter, r *http.Request) {
	clerkID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveDomain(r.Context(), clerkID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	writeSuccess(w)
}
