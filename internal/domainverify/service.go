// Package domainverify はカスタムドメインの設定と所有権検証を提供する。
//
// 検証はDNS TXTレコード（_tradesite-verify.<domain>）または検証ファイル
// （https://<domain>/.well-known/tradesite-verify.txt）のいずれかで行う。
// ファイル検証はユーザー入力由来のドメインへアクセスするため、
// SSRF防止付きHTTPクライアントを使用する。
package domainverify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/tradesite/internal/metrics"
	"github.com/hitoshi/tradesite/internal/model"
	"github.com/hitoshi/tradesite/internal/plan"
	"github.com/hitoshi/tradesite/internal/security"
)

const (
	// DNSRecordName は検証用TXTレコードのサブドメイン。
	DNSRecordName = "_tradesite-verify"
	// WellKnownPath は検証ファイルのwell-knownパス。
	WellKnownPath = "/.well-known/tradesite-verify.txt"

	tokenBytes = 16

	fetchTimeout    = 10 * time.Second
	maxResponseSize = 64 * 1024
)

// 検証方式。
const (
	MethodDNS  = "dns"
	MethodFile = "file"
)

// ドメイン形状の検証。先頭末尾の英数字、ラベル区切りのドット、TLD必須。
var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// VerifyResult は検証実行の結果。
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Method   string `json:"method"`
	Domain   string `json:"domain"`
}

// DomainRepository はドメイン操作に必要なリポジトリの部分集合。
type DomainRepository interface {
	FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error)
	SetDomain(ctx context.Context, id, domain, token string) error
	ClearDomain(ctx context.Context, id string) error
	MarkDomainVerified(ctx context.Context, id, method string) error
}

// TXTResolver はDNS TXTレコードの参照インターフェース。
// net.Resolverがそのまま満たす。
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Service はドメイン検証のサービス層。
type Service struct {
	repo      DomainRepository
	resolver  TXTResolver
	ssrfGuard security.SSRFGuardService
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo DomainRepository, resolver TXTResolver, guard security.SSRFGuardService, collector metrics.MetricsCollector) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		ssrfGuard: guard,
		metrics:   collector,
	}
}

// SetDomain はカスタムドメインを設定し、新しい検証トークンを発行する。
// 既存の検証状態はクリアされる。カスタムドメインはプラン機能。
func (s *Service) SetDomain(ctx context.Context, clerkID, businessID, domain string) (string, error) {
	b, err := s.repo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return "", fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return "", model.NewBusinessNotFoundError()
	}

	if !plan.LimitsFor(b.PlanType).CustomDomain {
		return "", model.NewPlanRequiredError("カスタムドメイン")
	}

	domain = normalizeDomain(domain)
	if !domainPattern.MatchString(domain) {
		return "", model.NewValidationError("ドメインの形式が正しくありません。")
	}

	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("検証トークンの生成に失敗しました: %w", err)
	}

	if err := s.repo.SetDomain(ctx, b.ID, domain, token); err != nil {
		return "", fmt.Errorf("ドメインの設定に失敗しました: %w", err)
	}

	slog.Info("custom domain set",
		slog.String("business_id", b.ID),
		slog.String("domain", domain),
	)
	return token, nil
}

// Verify はドメインの所有権を検証する。
// 成功時のみ検証済みマークを書き込む。失敗時は書き込みを行わず
// verified=falseの結果を返す。
func (s *Service) Verify(ctx context.Context, clerkID, businessID, method string) (*VerifyResult, error) {
	if method != MethodDNS && method != MethodFile {
		return nil, model.NewValidationError("検証方式は dns / file のいずれかを指定してください。")
	}

	b, err := s.repo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return nil, fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return nil, model.NewBusinessNotFoundError()
	}
	if b.Domain == "" || b.DNSVerificationToken == "" {
		return nil, model.NewNoVerificationTokenError()
	}

	var verified bool
	switch method {
	case MethodDNS:
		verified = s.verifyDNS(ctx, b.Domain, b.DNSVerificationToken)
	case MethodFile:
		verified = s.verifyFile(ctx, b.Domain, b.DNSVerificationToken)
	}

	if s.metrics != nil {
		s.metrics.RecordDomainVerification(method, verified)
	}

	if !verified {
		slog.Info("domain verification failed",
			slog.String("business_id", b.ID),
			slog.String("domain", b.Domain),
			slog.String("method", method),
		)
		return &VerifyResult{Verified: false, Method: method, Domain: b.Domain}, nil
	}

	if err := s.repo.MarkDomainVerified(ctx, b.ID, method); err != nil {
		return nil, fmt.Errorf("検証結果の保存に失敗しました: %w", err)
	}

	slog.Info("domain verified",
		slog.String("business_id", b.ID),
		slog.String("domain", b.Domain),
		slog.String("method", method),
	)
	return &VerifyResult{Verified: true, Method: method, Domain: b.Domain}, nil
}

// RemoveDomain はドメイン関連の状態をまとめてクリアする。
func (s *Service) RemoveDomain(ctx context.Context, clerkID, businessID string) error {
	b, err := s.repo.FindOwned(ctx, businessID, clerkID)
	if err != nil {
		return fmt.Errorf("ビジネスの取得に失敗しました: %w", err)
	}
	if b == nil {
		return model.NewBusinessNotFoundError()
	}

	if err := s.repo.ClearDomain(ctx, b.ID); err != nil {
		return fmt.Errorf("ドメインの削除に失敗しました: %w", err)
	}
	return nil
}

// verifyDNS は検証用TXTレコードを参照してトークンと比較する。
func (s *Service) verifyDNS(ctx context.Context, domain, token string) bool {
	records, err := s.resolver.LookupTXT(ctx, DNSRecordName+"."+domain)
	if err != nil {
		slog.Info("txt lookup failed",
			slog.String("domain", domain),
			slog.String("error", err.Error()),
		)
		return false
	}
	for _, record := range records {
		if strings.TrimSpace(record) == token {
			return true
		}
	}
	return false
}

// verifyFile は検証ファイルをSSRF防止付きクライアントで取得して比較する。
func (s *Service) verifyFile(ctx context.Context, domain, token string) bool {
	fileURL := "https://" + domain + WellKnownPath
	if err := s.ssrfGuard.ValidateURL(fileURL); err != nil {
		slog.Info("verification url rejected",
			slog.String("domain", domain),
			slog.String("error", err.Error()),
		)
		return false
	}

	client := s.ssrfGuard.NewSafeClient(fetchTimeout, maxResponseSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Info("verification file fetch failed",
			slog.String("domain", domain),
			slog.String("error", err.Error()),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(body)) == token
}

// newToken は16バイトの乱数をhexエンコードした検証トークンを生成する。
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// normalizeDomain は入力ドメインを比較可能な形に正規化する。
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimSuffix(domain, "/")
	return domain
}
