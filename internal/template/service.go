// Package template はテンプレートカタログの参照と選択状態の管理を提供する。
//
// アクティブなテンプレートは1ビジネスにつき常に最大1つ。切り替えは
// リポジトリ側のトランザクションで非アクティブ化と再アクティブ化を
// まとめて行う。
package template

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/repository"
)

// planRank はプラン階層の順序。テンプレートのplan_levelゲートに使用する。
var planRank = map[model.PlanType]int{
	model.PlanFree:     0,
	model.PlanStarter:  1,
	model.PlanBusiness: 2,
}

// BusinessFinder は所有権チェックに必要なリポジトリの部分集合。
type BusinessFinder interface {
	FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error)
}

// Service はテンプレート操作のサービス層。
type Service struct {
	templateRepo repository.TemplateRepository
	businessRepo BusinessFinder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(templateRepo repository.TemplateRepository, businessRepo BusinessFinder) *Service {
	return &Service{
		templateRepo: templateRepo,
		businessRepo: businessRepo,
	}
}

// List はアクティブなテンプレートカタログを返す。
func (s *Service) List(ctx context.Context) ([]*model.Template, error) {
	templates, err := s.templateRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("テンプレート一覧の取得に失敗しました: %w", err)
	}
	return templates, nil
}

// GetBySlug はスラグでテンプレートを取得する。
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.Template, error) {
	tmpl, err := s.templateRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("テンプレートの取得に失敗しました: %w", err)
	}
	if tmpl == nil {
		return nil, model.NewTemplateNotFoundError(slug)
	}
	return tmpl, nil
}

// ActiveSelection はビジネスの現在のテンプレート選択状態。
type ActiveSelection struct {
	Template       *model.Template              `json:"template"`
	Customizations model.TemplateCustomizations `json:"customizations"`
}

// GetActive はビジネスのアクティブなテンプレートと設定を返す。
// 未選択の場合はエラーになる。
func (s *Service) GetActive(ctx context.Context, clerkID, businessID string) (*ActiveSelection, error) {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return nil, err
	}

	active, err := s.templateRepo.FindActiveForBusiness(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("選択状態の取得に失敗しました: %w", err)
	}
	if active == nil {
		return nil, model.NewNoActiveTemplateError()
	}

	tmpl, err := s.templateRepo.FindByID(ctx, active.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("テンプレートの取得に失敗しました: %w", err)
	}
	if tmpl == nil {
		return nil, model.NewTemplateNotFoundError(active.TemplateID)
	}

	return &ActiveSelection{
		Template:       tmpl,
		Customizations: active.Customizations,
	}, nil
}

// Select はビジネスのテンプレートを切り替える。
// テンプレートのplan_levelがビジネスのプランを超える場合は拒否する。
// 過去に選択したことのあるテンプレートへ戻した場合、カスタマイズは保持される。
func (s *Service) Select(ctx context.Context, clerkID, businessID, templateID string) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	tmpl, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return fmt.Errorf("テンプレートの取得に失敗しました: %w", err)
	}
	if tmpl == nil {
		return model.NewTemplateNotFoundError(templateID)
	}

	if planRank[b.PlanType] < planRank[tmpl.PlanLevel] {
		return model.NewPlanRequiredError(fmt.Sprintf("テンプレート「%s」", tmpl.Name))
	}

	if err := s.templateRepo.SelectTemplate(ctx, b.ID, tmpl.ID); err != nil {
		return fmt.Errorf("テンプレートの切り替えに失敗しました: %w", err)
	}

	slog.Info("template selected",
		slog.String("business_id", b.ID),
		slog.String("template_id", tmpl.ID),
		slog.String("template_slug", tmpl.Slug),
	)
	return nil
}

// UpdateCustomizations はアクティブ行のカスタマイズをキー単位でマージ更新する。
func (s *Service) UpdateCustomizations(ctx context.Context, clerkID, businessID string, in model.TemplateCustomizations) error {
	b, err := s.owned(ctx, businessID, clerkID)
	if err != nil {
		return err
	}

	active, err := s.templateRepo.FindActiveForBusiness(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("選択状態の取得に失敗しました: %w", err)
	}
	if active == nil {
		return model.NewNoActiveTemplateError()
	}

	merged := active.Customizations.Merge(in)
	if err := s.templateRepo.UpdateCustomizations(ctx, active.ID, merged); err != nil {
		return fmt.Errorf("カスタマイズの保存に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
	b, err := s.businessRepo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}
	return b, nil
}
