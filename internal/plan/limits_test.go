package plan

import (
	"testing"

	"github.com/hitoshi/tradesite/internal/model"
)

// TestLimitsFor は各プランの上限テーブルを検証する。
func TestLimitsFor(t *testing.T) {
	tests := []struct {
		plan             model.PlanType
		maxServices      int
		maxAIGenerations int
		customDomain     bool
	}{
		{model.PlanFree, 5, 10, false},
		{model.PlanStarter, 15, 75, true},
		{model.PlanBusiness, 999, 999, true},
	}

	for _, tt := range tests {
		limits := LimitsFor(tt.plan)
		if limits.MaxServices != tt.maxServices {
			t.Errorf("LimitsFor(%s).MaxServices = %d, want %d", tt.plan, limits.MaxServices, tt.maxServices)
		}
		if limits.MaxAIGenerations != tt.maxAIGenerations {
			t.Errorf("LimitsFor(%s).MaxAIGenerations = %d, want %d", tt.plan, limits.MaxAIGenerations, tt.maxAIGenerations)
		}
		if limits.CustomDomain != tt.customDomain {
			t.Errorf("LimitsFor(%s).CustomDomain = %v, want %v", tt.plan, limits.CustomDomain, tt.customDomain)
		}
	}
}

// TestLimitsFor_UnknownPlan は不明なプランがfree相当になることを検証する。
func TestLimitsFor_UnknownPlan(t *testing.T) {
	limits := LimitsFor(model.PlanType("enterprise"))
	if limits != LimitsFor(model.PlanFree) {
		t.Errorf("unknown plan should fall back to free limits, got %+v", limits)
	}
}

// TestRemainingGenerations は残り生成回数が負にならないことを検証する。
func TestRemainingGenerations(t *testing.T) {
	tests := []struct {
		plan model.PlanType
		used int
		want int
	}{
		{model.PlanFree, 0, 10},
		{model.PlanFree, 9, 1},
		{model.PlanFree, 10, 0},
		{model.PlanFree, 15, 0}, // 上限超過状態でも0を下回らない
		{model.PlanStarter, 75, 0},
		{model.PlanBusiness, 100, 899},
	}

	for _, tt := range tests {
		if got := RemainingGenerations(tt.plan, tt.used); got != tt.want {
			t.Errorf("RemainingGenerations(%s, %d) = %d, want %d", tt.plan, tt.used, got, tt.want)
		}
	}
}

// TestWithinLimit は上限判定の境界を検証する。
func TestWithinLimit(t *testing.T) {
	if !WithinLimit(5, 4) {
		t.Error("WithinLimit(5, 4) = false, want true")
	}
	if WithinLimit(5, 5) {
		t.Error("WithinLimit(5, 5) = true, want false")
	}
}
