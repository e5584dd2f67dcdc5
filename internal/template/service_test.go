package template

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/tradesite/internal/model"
)

// mockTemplateRepository はテスト用のTemplateRepository実装。
type mockTemplateRepository struct {
	listActiveFunc            func(ctx context.Context) ([]*model.Template, error)
	findBySlugFunc            func(ctx context.Context, slug string) (*model.Template, error)
	findByIDFunc              func(ctx context.Context, id string) (*model.Template, error)
	findActiveForBusinessFunc func(ctx context.Context, businessID string) (*model.BusinessTemplate, error)
	selectTemplateFunc        func(ctx context.Context, businessID, templateID string) error
	updateCustomizationsFunc  func(ctx context.Context, businessTemplateID string, c model.TemplateCustomizations) error
}

func (m *mockTemplateRepository) ListActive(ctx context.Context) ([]*model.Template, error) {
	return m.listActiveFunc(ctx)
}

func (m *mockTemplateRepository) FindBySlug(ctx context.Context, slug string) (*model.Template, error) {
	return m.findBySlugFunc(ctx, slug)
}

func (m *mockTemplateRepository) FindByID(ctx context.Context, id string) (*model.Template, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockTemplateRepository) FindActiveForBusiness(ctx context.Context, businessID string) (*model.BusinessTemplate, error) {
	return m.findActiveForBusinessFunc(ctx, businessID)
}

func (m *mockTemplateRepository) SelectTemplate(ctx context.Context, businessID, templateID string) error {
	return m.selectTemplateFunc(ctx, businessID, templateID)
}

func (m *mockTemplateRepository) UpdateCustomizations(ctx context.Context, businessTemplateID string, c model.TemplateCustomizations) error {
	return m.updateCustomizationsFunc(ctx, businessTemplateID, c)
}

// mockBusinessFinder はテスト用のBusinessFinder実装。
type mockBusinessFinder struct {
	findOwnedFunc func(ctx context.Context, businessID, clerkID string) (*model.Business, error)
}

func (m *mockBusinessFinder) FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
	return m.findOwnedFunc(ctx, businessID, clerkID)
}

func asAPIError(t *testing.T, err error) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	return apiErr
}

func ownedFinder(planType model.PlanType) *mockBusinessFinder {
	return &mockBusinessFinder{
		findOwnedFunc: func(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
			return &model.Business{ID: "b-1", PlanType: planType}, nil
		},
	}
}

func starterTemplate() *model.Template {
	return &model.Template{
		ID:        "t-pro",
		Slug:      "professional",
		Name:      "Professional",
		PlanLevel: model.PlanStarter,
	}
}

// TestGetBySlug_NotFound は未登録スラグのエラーを検証する。
func TestGetBySlug_NotFound(t *testing.T) {
	repo := &mockTemplateRepository{
		findBySlugFunc: func(ctx context.Context, slug string) (*model.Template, error) {
			return nil, nil
		},
	}
	s := NewService(repo, nil)

	_, err := s.GetBySlug(context.Background(), "nonexistent")
	if asAPIError(t, err).Code != model.ErrCodeTemplateNotFound {
		t.Errorf("expected TEMPLATE_NOT_FOUND, got %v", err)
	}
}

// TestSelect_Success はプランを満たすテンプレートへの切り替えを検証する。
func TestSelect_Success(t *testing.T) {
	var gotBusinessID, gotTemplateID string
	repo := &mockTemplateRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Template, error) {
			return starterTemplate(), nil
		},
		selectTemplateFunc: func(ctx context.Context, businessID, templateID string) error {
			gotBusinessID, gotTemplateID = businessID, templateID
			return nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanStarter))

	if err := s.Select(context.Background(), "clerk-1", "b-1", "t-pro"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if gotBusinessID != "b-1" || gotTemplateID != "t-pro" {
		t.Errorf("SelectTemplate called with (%q, %q)", gotBusinessID, gotTemplateID)
	}
}

// TestSelect_PlanGate はプラン不足のテンプレート選択の拒否を検証する。
func TestSelect_PlanGate(t *testing.T) {
	repo := &mockTemplateRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Template, error) {
			return starterTemplate(), nil
		},
		selectTemplateFunc: func(ctx context.Context, businessID, templateID string) error {
			t.Fatal("SelectTemplate should not be called when plan is insufficient")
			return nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanFree))

	err := s.Select(context.Background(), "clerk-1", "b-1", "t-pro")
	if asAPIError(t, err).Code != model.ErrCodePlanRequired {
		t.Errorf("expected PLAN_REQUIRED, got %v", err)
	}
}

// TestSelect_TemplateNotFound は不明テンプレートIDのエラーを検証する。
func TestSelect_TemplateNotFound(t *testing.T) {
	repo := &mockTemplateRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Template, error) {
			return nil, nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanBusiness))

	err := s.Select(context.Background(), "clerk-1", "b-1", "t-missing")
	if asAPIError(t, err).Code != model.ErrCodeTemplateNotFound {
		t.Errorf("expected TEMPLATE_NOT_FOUND, got %v", err)
	}
}

// TestSelect_NotOwned は他人のビジネスの拒否を検証する。
func TestSelect_NotOwned(t *testing.T) {
	finder := &mockBusinessFinder{
		findOwnedFunc: func(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
			return nil, nil
		},
	}
	s := NewService(nil, finder)

	err := s.Select(context.Background(), "clerk-1", "b-other", "t-pro")
	if asAPIError(t, err).Code != model.ErrCodeBusinessNotFound {
		t.Errorf("expected BUSINESS_NOT_FOUND, got %v", err)
	}
}

// TestGetActive_NoSelection は未選択状態のエラーを検証する。
func TestGetActive_NoSelection(t *testing.T) {
	repo := &mockTemplateRepository{
		findActiveForBusinessFunc: func(ctx context.Context, businessID string) (*model.BusinessTemplate, error) {
			return nil, nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanFree))

	_, err := s.GetActive(context.Background(), "clerk-1", "b-1")
	if asAPIError(t, err).Code != model.ErrCodeNoActiveTemplate {
		t.Errorf("expected NO_ACTIVE_TEMPLATE, got %v", err)
	}
}

// TestGetActive_Success は選択状態の取得を検証する。
func TestGetActive_Success(t *testing.T) {
	repo := &mockTemplateRepository{
		findActiveForBusinessFunc: func(ctx context.Context, businessID string) (*model.BusinessTemplate, error) {
			return &model.BusinessTemplate{
				ID:         "bt-1",
				BusinessID: businessID,
				TemplateID: "t-pro",
				IsActive:   true,
				Customizations: model.TemplateCustomizations{
					Theme: map[string]string{"primary": "#0044cc"},
				},
			}, nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Template, error) {
			return starterTemplate(), nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanStarter))

	selection, err := s.GetActive(context.Background(), "clerk-1", "b-1")
	if err != nil {
		t.Fatalf("GetActive returned error: %v", err)
	}
	if selection.Template.Slug != "professional" {
		t.Errorf("Template.Slug = %q", selection.Template.Slug)
	}
	if selection.Customizations.Theme["primary"] != "#0044cc" {
		t.Errorf("Customizations = %+v", selection.Customizations)
	}
}

// TestUpdateCustomizations_Merge はキー単位のマージ更新を検証する。
func TestUpdateCustomizations_Merge(t *testing.T) {
	var saved model.TemplateCustomizations
	repo := &mockTemplateRepository{
		findActiveForBusinessFunc: func(ctx context.Context, businessID string) (*model.BusinessTemplate, error) {
			return &model.BusinessTemplate{
				ID: "bt-1",
				Customizations: model.TemplateCustomizations{
					Theme:          map[string]string{"primary": "#0044cc", "accent": "#ff6600"},
					HiddenSections: []string{"testimonials"},
				},
			}, nil
		},
		updateCustomizationsFunc: func(ctx context.Context, businessTemplateID string, c model.TemplateCustomizations) error {
			if businessTemplateID != "bt-1" {
				t.Errorf("businessTemplateID = %q", businessTemplateID)
			}
			saved = c
			return nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanStarter))

	err := s.UpdateCustomizations(context.Background(), "clerk-1", "b-1", model.TemplateCustomizations{
		Theme: map[string]string{"primary": "#111111"},
	})
	if err != nil {
		t.Fatalf("UpdateCustomizations returned error: %v", err)
	}

	if saved.Theme["primary"] != "#111111" {
		t.Errorf("primary = %q, want overridden", saved.Theme["primary"])
	}
	if saved.Theme["accent"] != "#ff6600" {
		t.Errorf("accent = %q, want preserved", saved.Theme["accent"])
	}
	if len(saved.HiddenSections) != 1 {
		t.Errorf("HiddenSections = %v, want preserved", saved.HiddenSections)
	}
}

// TestUpdateCustomizations_NoActive は未選択状態での拒否を検証する。
func TestUpdateCustomizations_NoActive(t *testing.T) {
	repo := &mockTemplateRepository{
		findActiveForBusinessFunc: func(ctx context.Context, businessID string) (*model.BusinessTemplate, error) {
			return nil, nil
		},
	}
	s := NewService(repo, ownedFinder(model.PlanStarter))

	err := s.UpdateCustomizations(context.Background(), "clerk-1", "b-1", model.TemplateCustomizations{})
	if asAPIError(t, err).Code != model.ErrCodeNoActiveTemplate {
		t.Errorf("expected NO_ACTIVE_TEMPLATE, got %v", err)
	}
}
