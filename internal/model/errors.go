// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, plan, business, ai, domain, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeBusinessNotFound    = "BUSINESS_NOT_FOUND"
	ErrCodeBusinessExists      = "BUSINESS_EXISTS"
	ErrCodeTemplateNotFound    = "TEMPLATE_NOT_FOUND"
	ErrCodeNoActiveTemplate    = "NO_ACTIVE_TEMPLATE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidStep         = "INVALID_STEP"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeLimitReached        = "LIMIT_REACHED"
	ErrCodePlanRequired        = "PLAN_REQUIRED"
	ErrCodeGenerationFailed    = "GENERATION_FAILED"
	ErrCodeVerificationFailed  = "VERIFICATION_FAILED"
	ErrCodeNoVerificationToken = "NO_VERIFICATION_TOKEN"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewBusinessNotFoundError はビジネスが見つからない場合のエラーを生成する。
// 所有権チェックの失敗も同じエラーを返す（存在と所有を区別しない）。
func NewBusinessNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBusinessNotFound,
		Message:  "ビジネスが見つかりません。",
		Category: "business",
		Action:   "ビジネスIDを確認してください。",
	}
}

// NewBusinessExistsError はビジネスが既に存在する場合のエラーを生成する。
func NewBusinessExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeBusinessExists,
		Message:  "ビジネスは既に登録されています。",
		Category: "business",
		Action:   "ダッシュボードから既存のビジネスを編集してください。",
	}
}

// NewTemplateNotFoundError はテンプレートが見つからない場合のエラーを生成する。
func NewTemplateNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTemplateNotFound,
		Message:  fmt.Sprintf("指定されたテンプレートが見つかりません: %s", id),
		Category: "business",
		Action:   "テンプレートIDを確認してください。",
	}
}

// NewNoActiveTemplateError はアクティブなテンプレートが無い場合のエラーを生成する。
func NewNoActiveTemplateError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveTemplate,
		Message:  "アクティブなテンプレートがありません。",
		Category: "business",
		Action:   "先にテンプレートを選択してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStepError は不明なオンボーディングステップのエラーを生成する。
func NewInvalidStepError(step string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStep,
		Message:  fmt.Sprintf("不明なオンボーディングステップです: %s", step),
		Category: "validation",
		Action:   "business_type、business_basics、services、locations のいずれかを指定してください。",
	}
}

// NewQuotaExceededError はAI生成上限到達エラーを生成する。
func NewQuotaExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExceeded,
		Message:  "AI生成の上限に達しています。",
		Category: "ai",
		Action:   "プランをアップグレードすると生成回数を増やせます。",
	}
}

// NewLimitReachedError はプラン上限到達エラーを生成する。
func NewLimitReachedError(what string, limit int) *APIError {
	return &APIError{
		Code:     ErrCodeLimitReached,
		Message:  fmt.Sprintf("%sの登録数が上限（%d件）に達しています。", what, limit),
		Category: "plan",
		Action:   "不要な項目を削除するか、プランをアップグレードしてください。",
	}
}

// NewPlanRequiredError はプラン機能制限エラーを生成する。
func NewPlanRequiredError(feature string) *APIError {
	return &APIError{
		Code:     ErrCodePlanRequired,
		Message:  fmt.Sprintf("%sは現在のプランでは利用できません。", feature),
		Category: "plan",
		Action:   "プランをアップグレードしてください。",
	}
}

// NewGenerationFailedError はAI生成失敗エラーを生成する。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeGenerationFailed,
		Message:  "コンテンツの生成に失敗しました。",
		Category: "ai",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewVerificationFailedError はドメイン所有権検証の失敗エラーを生成する。
func NewVerificationFailedError(method string) *APIError {
	return &APIError{
		Code:     ErrCodeVerificationFailed,
		Message:  fmt.Sprintf("ドメインの所有権を確認できませんでした（%s）。", method),
		Category: "domain",
		Action:   "検証レコード/ファイルの設置後、反映を待ってから再度お試しください。",
	}
}

// NewNoVerificationTokenError は検証トークン未発行エラーを生成する。
func NewNoVerificationTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeNoVerificationToken,
		Message:  "検証トークンが発行されていません。",
		Category: "domain",
		Action:   "先にカスタムドメインを設定してください。",
	}
}
