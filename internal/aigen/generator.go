// Package aigen はOpenAI Chat Completionsによるサイトコンテンツ生成を提供する。
//
// セクション種別ごとに期待するJSONフィールドが異なるため、プロンプトに
// 出力フォーマットを明示し、response_format=json_objectで強制する。
package aigen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hitoshi/tradesite/internal/model"
)

const (
	generationTemperature = 0.7
	generationMaxTokens   = 500
)

// ContentGenerator はセクションコンテンツ生成のインターフェース。
type ContentGenerator interface {
	// Generate は指定セクションのコンテンツを生成する。
	// 上流APIの失敗・空レスポンス・不正なJSONはエラーを返す。
	Generate(ctx context.Context, b *model.Business, section model.SectionType, tone model.ToneType) (*model.GeneratedContent, error)
}

// chatCompleter はgo-openaiクライアントのうち使用するメソッドの部分集合。
// テストでのモック差し替え用。
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator はContentGeneratorのOpenAI実装。
type Generator struct {
	client chatCompleter
	model  string
}

// NewGenerator はOpenAI APIを使用するGeneratorを生成する。
func NewGenerator(apiKey, model string) *Generator {
	return &Generator{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Generate は指定セクションのコンテンツを生成する。
func (g *Generator) Generate(ctx context.Context, b *model.Business, section model.SectionType, tone model.ToneType) (*model.GeneratedContent, error) {
	if !tone.IsValid() {
		tone = model.ToneProfessional
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildSystemPrompt(b, tone),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildSectionPrompt(b, section),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("コンテンツ生成APIの呼び出しに失敗しました: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("コンテンツ生成APIが空のレスポンスを返しました")
	}

	var content model.GeneratedContent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &content); err != nil {
		return nil, fmt.Errorf("生成されたコンテンツを解析できません: %w", err)
	}
	if content.IsEmpty() {
		return nil, fmt.Errorf("生成されたコンテンツが空です")
	}

	return &content, nil
}

// buildSystemPrompt はビジネスの素性とトーンを与えるシステムプロンプトを構築する。
func buildSystemPrompt(b *model.Business, tone model.ToneType) string {
	return fmt.Sprintf(
		"You are a professional copywriter creating website content for %s, a %s business. "+
			"Write in a %s tone. Be concise but compelling. Focus on benefits and value. "+
			"Return JSON only, no markdown.",
		b.BusinessName, b.Category, tone,
	)
}

// buildSectionPrompt はセクション種別ごとのユーザープロンプトを構築する。
func buildSectionPrompt(b *model.Business, section model.SectionType) string {
	var sb strings.Builder
	sb.WriteString("Business: " + b.BusinessName + "\n")
	sb.WriteString("Category: " + b.Category + "\n")
	if b.About != "" {
		sb.WriteString("About: " + b.About + "\n")
	}
	if names := serviceNames(b); len(names) > 0 {
		sb.WriteString("Services: " + strings.Join(names, ", ") + "\n")
	}
	if areas := areaNames(b); len(areas) > 0 {
		sb.WriteString("Service Areas: " + strings.Join(areas, ", ") + "\n")
	}
	sb.WriteString("\n")

	switch section {
	case model.SectionHero:
		sb.WriteString(`Write a hero section. Return JSON with keys: "headline" (max 10 words), "subheadline" (max 25 words), "cta_text" (max 5 words).`)
	case model.SectionAbout:
		sb.WriteString(`Write an about section. Return JSON with keys: "headline" (max 8 words), "content" (2-3 short paragraphs).`)
	case model.SectionServices:
		sb.WriteString(`Write an intro for the services section. Return JSON with keys: "headline" (max 8 words), "description" (max 40 words).`)
	case model.SectionContact:
		sb.WriteString(`Write an intro for the contact section. Return JSON with keys: "headline" (max 8 words), "description" (max 30 words).`)
	case model.SectionCTA:
		sb.WriteString(`Write a call-to-action banner. Return JSON with keys: "headline" (max 10 words), "description" (max 25 words), "cta_text" (max 5 words).`)
	default:
		sb.WriteString(`Write website copy for this business. Return JSON with keys: "headline" (max 10 words), "description" (max 40 words).`)
	}

	return sb.String()
}

func serviceNames(b *model.Business) []string {
	names := make([]string, 0, len(b.Services))
	for _, svc := range b.Services {
		if svc.Name != "" {
			names = append(names, svc.Name)
		}
	}
	return names
}

func areaNames(b *model.Business) []string {
	names := make([]string, 0, len(b.ServiceAreas))
	for _, area := range b.ServiceAreas {
		if area.Name != "" {
			names = append(names, area.Name)
		}
	}
	return names
}

// compile-time interface check
var _ ContentGenerator = (*Generator)(nil)
