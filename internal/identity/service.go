// Package identity はIdP（Clerk）とローカルユーザーの同期を提供する。
//
// ユーザーの作成・更新・削除はIdP側で発生し、webhookイベントとして
// 通知される。本パッケージはイベントを冪等に反映し、プロフィール取得と
// プラン変更のドメインロジックを提供する。
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/tradesite/internal/metrics"
	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/repository"
)

// 処理対象のwebhookイベント種別。
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// webhookUserPayload はIdPのユーザーイベントのdataフィールド。
// 必要なフィールドのみ取り出す。
type webhookUserPayload struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// Service はユーザー同期のサービス層。
type Service struct {
	userRepo repository.UserRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, collector metrics.MetricsCollector) *Service {
	return &Service{
		userRepo: userRepo,
		metrics:  collector,
	}
}

// HandleWebhookEvent は検証済みのwebhookイベントをローカルDBへ反映する。
// 未知のイベント種別は無視して成功を返す（IdP側の新イベントで壊れないように）。
func (s *Service) HandleWebhookEvent(ctx context.Context, eventType string, data json.RawMessage) error {
	switch eventType {
	case EventUserCreated, EventUserUpdated:
		var payload webhookUserPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return model.NewValidationError("webhookペイロードを解析できません。")
		}
		if payload.ID == "" {
			return model.NewValidationError("webhookペイロードにユーザーIDがありません。")
		}

		email := ""
		if len(payload.EmailAddresses) > 0 {
			email = payload.EmailAddresses[0].EmailAddress
		}
		fullName := strings.TrimSpace(payload.FirstName + " " + payload.LastName)

		user, err := s.userRepo.Upsert(ctx, payload.ID, email, fullName)
		if err != nil {
			return fmt.Errorf("ユーザーの同期に失敗しました: %w", err)
		}

		slog.Info("user synced from webhook",
			slog.String("event_type", eventType),
			slog.String("clerk_id", user.ClerkID),
		)

	case EventUserDeleted:
		var payload webhookUserPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return model.NewValidationError("webhookペイロードを解析できません。")
		}
		if payload.ID == "" {
			return model.NewValidationError("webhookペイロードにユーザーIDがありません。")
		}

		if err := s.userRepo.DeleteByClerkID(ctx, payload.ID); err != nil {
			return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
		}

		slog.Info("user deleted from webhook",
			slog.String("clerk_id", payload.ID),
		)

	default:
		slog.Info("ignoring unknown webhook event",
			slog.String("event_type", eventType),
		)
		return nil
	}

	if s.metrics != nil {
		s.metrics.RecordWebhookEvent(eventType)
	}
	return nil
}

// GetMe は認証済みユーザーのローカル行を返す。
// webhookがまだ届いていない場合はUSER_NOT_FOUNDを返す。
func (s *Service) GetMe(ctx context.Context, clerkID string) (*model.User, error) {
	user, err := s.userRepo.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdatePlan はユーザーのプラン階層を変更し、更新後のユーザーを返す。
// ビジネス行が存在する場合はそのplan_typeも同一トランザクションで揃える。
func (s *Service) UpdatePlan(ctx context.Context, clerkID string, planType model.PlanType) (*model.User, error) {
	if !planType.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("不明なプランです: %s", planType))
	}

	user, err := s.userRepo.FindByClerkID(ctx, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := s.userRepo.UpdatePlan(ctx, clerkID, planType); err != nil {
		return nil, fmt.Errorf("プランの更新に失敗しました: %w", err)
	}

	slog.Info("plan updated",
		slog.String("clerk_id", clerkID),
		slog.String("plan_type", string(planType)),
	)

	user.PlanType = &planType
	return user, nil
}
