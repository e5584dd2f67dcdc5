package model

// SectionType はAI生成対象のサイトセクションを表す。
type SectionType string

const (
	SectionHero     SectionType = "hero"
	SectionAbout    SectionType = "about"
	SectionServices SectionType = "services"
	SectionContact  SectionType = "contact"
	SectionCTA      SectionType = "cta"
)

// ToneType は生成コンテンツのトーンを表す。
type ToneType string

const (
	ToneProfessional ToneType = "professional"
	ToneFriendly     ToneType = "friendly"
	ToneCasual       ToneType = "casual"
)

// IsValid はトーンとして有効な値かを返す。
func (t ToneType) IsValid() bool {
	switch t {
	case ToneProfessional, ToneFriendly, ToneCasual:
		return true
	}
	return false
}

// GeneratedContent はAIが生成したセクションコンテンツ。
// セクションごとに埋まるフィールドが異なるため、全てoptional。
type GeneratedContent struct {
	Headline    string          `json:"headline,omitempty"`
	Subheadline string          `json:"subheadline,omitempty"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content,omitempty"`
	CTAText     string          `json:"cta_text,omitempty"`
	Items       []GeneratedItem `json:"items,omitempty"`
}

// GeneratedItem は生成コンテンツ内のリスト項目。
type GeneratedItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IsEmpty は全フィールドが空かを返す。
func (c GeneratedContent) IsEmpty() bool {
	return c.Headline == "" && c.Subheadline == "" && c.Description == "" &&
		c.Content == "" && c.CTAText == "" && len(c.Items) == 0
}
