// Package plan はプラン階層ごとの機能上限の静的テーブルを提供する。
// テーブルは永続化せず、リクエストごとに再計算する。
package plan

import "github.com/hitoshi/tradesite/internal/model"

// Limits はプラン階層ごとの数値上限と機能フラグを表す。
type Limits struct {
	MaxServices     int
	MaxServiceAreas int
	MaxKeywords     int
	MaxImages       int
	MaxLocations    int

	CustomDomain          bool
	RemoveBranding        bool
	CustomThemes          bool
	AnalyticsIntegration  bool
	SocialMediaIntegration bool

	MaxAIGenerations int
}

// limitsTable はプラン階層と上限の固定マッピング。
var limitsTable = map[model.PlanType]Limits{
	model.PlanFree: {
		MaxServices:      5,
		MaxServiceAreas:  1,
		MaxKeywords:      5,
		MaxImages:        1,
		MaxLocations:     1,
		MaxAIGenerations: 10,
	},
	model.PlanStarter: {
		MaxServices:            15,
		MaxServiceAreas:        5,
		MaxKeywords:            15,
		MaxImages:              15,
		MaxLocations:           1,
		CustomDomain:           true,
		RemoveBranding:         true,
		CustomThemes:           true,
		AnalyticsIntegration:   true,
		SocialMediaIntegration: true,
		MaxAIGenerations:       75,
	},
	model.PlanBusiness: {
		MaxServices:            999,
		MaxServiceAreas:        999,
		MaxKeywords:            999,
		MaxImages:              999,
		MaxLocations:           999,
		CustomDomain:           true,
		RemoveBranding:         true,
		CustomThemes:           true,
		AnalyticsIntegration:   true,
		SocialMediaIntegration: true,
		MaxAIGenerations:       999,
	},
}

// LimitsFor は指定プランの上限テーブルを返す。
// 不明なプランはfreeと同じ上限を返す。
func LimitsFor(planType model.PlanType) Limits {
	if limits, ok := limitsTable[planType]; ok {
		return limits
	}
	return limitsTable[model.PlanFree]
}

// WithinLimit は現在の件数が上限未満（＝もう1件追加できる）かを返す。
func WithinLimit(limit, currentCount int) bool {
	return currentCount < limit
}

// RemainingGenerations は残りのAI生成回数を返す。負にはならない。
func RemainingGenerations(planType model.PlanType, used int) int {
	remaining := LimitsFor(planType).MaxAIGenerations - used
	if remaining < 0 {
		return 0
	}
	return remaining
}
