package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/hitoshi/tradesite/internal/model"
)

// maxWebhookBodySize はwebhookボディの最大サイズ。
const maxWebhookBodySize = 1 * 1024 * 1024

// IdentityServiceInterface はwebhookハンドラーが必要とするサービスインターフェース。
type IdentityServiceInterface interface {
	// HandleWebhookEvent はIdPのユーザー同期イベントを処理する。
	HandleWebhookEvent(ctx context.Context, eventType string, data json.RawMessage) error
}

// WebhookHandler はIdPからのユーザー同期webhookのHTTPハンドラー。
// 署名検証はsvixプロトコル（svix-id / svix-timestamp / svix-signature）で行う。
type WebhookHandler struct {
	service IdentityServiceInterface
	secret  string
}

// NewWebhookHandler はWebhookHandlerを生成する。
// secretが空の場合、エンドポイントは常に500を返す（設定漏れを黙って通さない）。
func NewWebhookHandler(service IdentityServiceInterface, secret string) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		secret:  secret,
	}
}

// webhookEvent はIdPイベントの外側のエンベロープ。
type webhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleWebhook はユーザー同期イベントを処理する。
// POST /api/webhooks/clerk
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		slog.Error("webhook secret is not configured")
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "webhookが設定されていません。",
			Category: "system",
			Action:   "管理者に問い合わせてください。",
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	wh, err := svix.NewWebhook(h.secret)
	if err != nil {
		slog.Error("failed to initialize webhook verifier", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "webhookの検証に失敗しました。",
			Category: "system",
			Action:   "管理者に問い合わせてください。",
		})
		return
	}

	if err := wh.Verify(body, r.Header); err != nil {
		slog.Warn("webhook signature verification failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_SIGNATURE",
			Message:  "webhookの署名を検証できません。",
			Category: "auth",
			Action:   "webhookの設定を確認してください。",
		})
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.service.HandleWebhookEvent(r.Context(), event.Type, event.Data); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w)
}
