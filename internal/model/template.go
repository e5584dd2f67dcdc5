package model

import "time"

// Template はテンプレートカタログのエントリ。イミュータブル。
type Template struct {
	ID          string
	Slug        string
	Name        string
	Description string
	PlanLevel   PlanType
	Sections    []TemplateSection
	Status      string
	CreatedAt   time.Time
}

// TemplateSection はテンプレートを構成するセクション定義。
type TemplateSection struct {
	Type     string            `json:"type"`
	Variants []TemplateVariant `json:"variants"`
}

// TemplateVariant はセクションの表示バリアント。
type TemplateVariant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// BusinessTemplate はビジネスとテンプレートの結合行。
// 不変条件: 1ビジネスにつきアクティブな行は常に最大1つ。
type BusinessTemplate struct {
	ID             string
	BusinessID     string
	TemplateID     string
	IsActive       bool
	Customizations TemplateCustomizations
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TemplateCustomizations はテンプレートへの上書き設定のブロブ。
type TemplateCustomizations struct {
	Theme          map[string]string      `json:"theme,omitempty"`
	Sections       []SectionCustomization `json:"sections,omitempty"`
	HiddenSections []string               `json:"hidden_sections,omitempty"`
}

// SectionCustomization はセクション単位のバリアント/プロパティ上書き。
type SectionCustomization struct {
	SectionName string         `json:"section_name"`
	Variant     string         `json:"variant,omitempty"`
	Props       map[string]any `json:"props,omitempty"`
}

// Merge はcに含まれる設定をベースに上書きした新しいブロブを返す。
// 指定されなかったキーは既存の値を維持する（キー単位の浅いマージ）。
func (c TemplateCustomizations) Merge(in TemplateCustomizations) TemplateCustomizations {
	out := c
	if in.Theme != nil {
		if out.Theme == nil {
			out.Theme = map[string]string{}
		} else {
			merged := make(map[string]string, len(out.Theme)+len(in.Theme))
			for k, v := range out.Theme {
				merged[k] = v
			}
			out.Theme = merged
		}
		for k, v := range in.Theme {
			out.Theme[k] = v
		}
	}
	if in.Sections != nil {
		out.Sections = in.Sections
	}
	if in.HiddenSections != nil {
		out.HiddenSections = in.HiddenSections
	}
	return out
}
