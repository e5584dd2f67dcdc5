// Package usage はAI生成の月次クォータゲートを提供する。
//
// クォータの判定と消費は単一の条件付きUPDATEで行い、同時リクエストでも
// カウンタが上限を超えないことを保証する。生成が失敗した場合は
// 補償的なデクリメントで予約を解放する。
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/tradesite/internal/aigen"
	"github.com/hitoshi/tradesite/internal/metrics"
	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/plan"
)

// BusinessQuotaRepository はクォータ操作に必要なリポジトリの部分集合。
// repository.BusinessRepositoryの部分集合として定義する。
type BusinessQuotaRepository interface {
	FindByID(ctx context.Context, id string) (*model.Business, error)
	FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error)
	TryIncrementAIGenerations(ctx context.Context, id string, limit int) (bool, error)
	DecrementAIGenerations(ctx context.Context, id string) error
	ResetAIUsage(ctx context.Context, id string) error
}

// UserFinder は管理者判定に必要なリポジトリの部分集合。
type UserFinder interface {
	FindByClerkID(ctx context.Context, clerkID string) (*model.User, error)
}

// Service はAI生成クォータのサービス層。
type Service struct {
	businessRepo BusinessQuotaRepository
	userFinder   UserFinder
	generator    aigen.ContentGenerator
	metrics      metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// generatorはAPIキー未設定時にnilを許容する（生成は常に失敗を返す）。
func NewService(
	businessRepo BusinessQuotaRepository,
	userFinder UserFinder,
	generator aigen.ContentGenerator,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		businessRepo: businessRepo,
		userFinder:   userFinder,
		generator:    generator,
		metrics:      collector,
	}
}

// Generate はクォータを消費してセクションコンテンツを生成する。
//
// 手順:
//  1. 所有権の結合でビジネスを取得（存在しない/他人のものは404）
//  2. 条件付きUPDATEでクォータ枠を1つ予約（失敗ならQUOTA_EXCEEDED、書き込みなし）
//  3. 生成を実行。失敗時は予約を解放してGENERATION_FAILED
func (s *Service) Generate(ctx context.Context, clerkID, businessID string, section model.SectionType, tone model.ToneType) (*model.GeneratedContent, error) {
	b, err := s.businessRepo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}

	if s.generator == nil {
		return nil, model.NewGenerationFailedError()
	}

	limits := plan.LimitsFor(b.PlanType)
	reserved, err := s.businessRepo.TryIncrementAIGenerations(ctx, b.ID, limits.MaxAIGenerations)
	if err != nil {
		return nil, fmt.Errorf("クォータの予約に失敗しました: %w", err)
	}
	if !reserved {
		if s.metrics != nil {
			s.metrics.RecordQuotaRejection(string(b.PlanType))
		}
		slog.Info("ai generation rejected by quota",
			slog.String("business_id", b.ID),
			slog.String("plan_type", string(b.PlanType)),
		)
		return nil, model.NewQuotaExceededError()
	}

	start := time.Now()
	content, err := s.generator.Generate(ctx, b, section, tone)
	if err != nil {
		// 予約の解放。失敗してもユーザーエラーには変えない（クォータが1件損なわれるだけ）
		if decErr := s.businessRepo.DecrementAIGenerations(ctx, b.ID); decErr != nil {
			slog.Error("failed to release quota reservation",
				slog.String("business_id", b.ID),
				slog.String("error", decErr.Error()),
			)
		}
		if s.metrics != nil {
			s.metrics.RecordGenerationFailure(string(section), "upstream_error")
		}
		slog.Error("ai generation failed",
			slog.String("business_id", b.ID),
			slog.String("section", string(section)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewGenerationFailedError()
	}

	if s.metrics != nil {
		s.metrics.RecordGenerationSuccess(string(section))
		s.metrics.RecordGenerationLatency(time.Since(start))
	}
	return content, nil
}

// GetUsage はクォータの読み取り専用プロジェクションを返す。
func (s *Service) GetUsage(ctx context.Context, clerkID, businessID string) (*model.AIUsage, error) {
	b, err := s.businessRepo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}

	limits := plan.LimitsFor(b.PlanType)
	return &model.AIUsage{
		Used:        b.AIGenerationsCount,
		Limit:       limits.MaxAIGenerations,
		Remaining:   plan.RemainingGenerations(b.PlanType, b.AIGenerationsCount),
		PeriodStart: b.AIPeriodStart,
		PlanType:    b.PlanType,
	}, nil
}

// Reset はカウンタを0に戻し、期間開始を現在時刻にする。
// role=adminのユーザーのみ実行できる。対象ビジネスの所有は要求しない。
func (s *Service) Reset(ctx context.Context, clerkID, businessID string) error {
	user, err := s.userFinder.FindByClerkID(ctx, clerkID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	if !user.IsAdmin() {
		return model.NewForbiddenError()
	}

	b, err := s.businessRepo.FindByID(ctx, businessID)
	if err != nil {
		return fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return model.NewBusinessNotFoundError()
	}

	if err := s.businessRepo.ResetAIUsage(ctx, b.ID); err != nil {
		return fmt.Errorf("AI使用量のリセットに失敗しました: %w", err)
	}

	slog.Info("ai usage reset",
		slog.String("business_id", b.ID),
		slog.String("admin_clerk_id", clerkID),
	)
	return nil
}
