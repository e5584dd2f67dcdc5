package domainverify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tradesite/internal/model"
)

// mockDomainRepository はテスト用のDomainRepository実装。
type mockDomainRepository struct {
	findOwnedFunc          func(ctx context.Context, businessID, clerkID string) (*model.Business, error)
	setDomainFunc          func(ctx context.Context, id, domain, token string) error
	clearDomainFunc        func(ctx context.Context, id string) error
	markDomainVerifiedFunc func(ctx context.Context, id, method string) error
}

func (m *mockDomainRepository) FindOwned(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
	return m.findOwnedFunc(ctx, businessID, clerkID)
}

func (m *mockDomainRepository) SetDomain(ctx context.Context, id, domain, token string) error {
	return m.setDomainFunc(ctx, id, domain, token)
}

func (m *mockDomainRepository) ClearDomain(ctx context.Context, id string) error {
	return m.clearDomainFunc(ctx, id)
}

func (m *mockDomainRepository) MarkDomainVerified(ctx context.Context, id, method string) error {
	return m.markDomainVerifiedFunc(ctx, id, method)
}

// mockResolver はテスト用のTXTResolver実装。
type mockResolver struct {
	lookupTXTFunc func(ctx context.Context, name string) ([]string, error)
}

func (m *mockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	return m.lookupTXTFunc(ctx, name)
}

// roundTripperFunc はhttp.RoundTripperの関数アダプタ。
type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// mockSSRFGuard はテスト用のSSRFGuardService実装。
type mockSSRFGuard struct {
	validateErr error
	roundTrip   roundTripperFunc
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	return m.validateErr
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Transport: m.roundTrip}
}

func asAPIError(t *testing.T, err error) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	return apiErr
}

func starterBusiness() *model.Business {
	return &model.Business{
		ID:                   "b-1",
		PlanType:             model.PlanStarter,
		Domain:               "example.com",
		DNSVerificationToken: "abc123token",
	}
}

func ownedRepo(b *model.Business) *mockDomainRepository {
	return &mockDomainRepository{
		findOwnedFunc: func(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
			return b, nil
		},
	}
}

// TestSetDomain_Success はトークン発行と正規化されたドメインの保存を検証する。
func TestSetDomain_Success(t *testing.T) {
	var gotDomain, gotToken string
	repo := ownedRepo(starterBusiness())
	repo.setDomainFunc = func(ctx context.Context, id, domain, token string) error {
		gotDomain, gotToken = domain, token
		return nil
	}
	s := NewService(repo, nil, nil, nil)

	token, err := s.SetDomain(context.Background(), "clerk-1", "b-1", "https://WWW.Example.com/")
	if err != nil {
		t.Fatalf("SetDomain returned error: %v", err)
	}

	if gotDomain != "example.com" {
		t.Errorf("domain = %q, want example.com", gotDomain)
	}
	// 16バイトのhexエンコードで32文字
	if len(token) != 32 || token != gotToken {
		t.Errorf("token = %q (len %d)", token, len(token))
	}
}

// TestSetDomain_PlanRequired はfreeプランの拒否を検証する。
func TestSetDomain_PlanRequired(t *testing.T) {
	b := starterBusiness()
	b.PlanType = model.PlanFree
	s := NewService(ownedRepo(b), nil, nil, nil)

	_, err := s.SetDomain(context.Background(), "clerk-1", "b-1", "example.com")
	if asAPIError(t, err).Code != model.ErrCodePlanRequired {
		t.Errorf("expected PLAN_REQUIRED, got %v", err)
	}
}

// TestSetDomain_InvalidShape はドメイン形式の検証を検証する。
func TestSetDomain_InvalidShape(t *testing.T) {
	tests := []string{"", "no-tld", "-bad.com", "exa mple.com", "example..com"}
	s := NewService(ownedRepo(starterBusiness()), nil, nil, nil)

	for _, domain := range tests {
		_, err := s.SetDomain(context.Background(), "clerk-1", "b-1", domain)
		if asAPIError(t, err).Code != model.ErrCodeValidationFailed {
			t.Errorf("domain %q: expected VALIDATION_FAILED, got %v", domain, err)
		}
	}
}

// TestVerify_InvalidMethod は不明な検証方式の拒否を検証する。
func TestVerify_InvalidMethod(t *testing.T) {
	s := NewService(ownedRepo(starterBusiness()), nil, nil, nil)

	_, err := s.Verify(context.Background(), "clerk-1", "b-1", "email")
	if asAPIError(t, err).Code != model.ErrCodeValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %v", err)
	}
}

// TestVerify_NoToken はトークン未発行時のエラーを検証する。
func TestVerify_NoToken(t *testing.T) {
	b := starterBusiness()
	b.Domain = ""
	b.DNSVerificationToken = ""
	s := NewService(ownedRepo(b), nil, nil, nil)

	_, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodDNS)
	if asAPIError(t, err).Code != model.ErrCodeNoVerificationToken {
		t.Errorf("expected NO_VERIFICATION_TOKEN, got %v", err)
	}
}

// TestVerify_DNSSuccess はTXTレコード一致時の検証済みマークを検証する。
func TestVerify_DNSSuccess(t *testing.T) {
	var markedMethod string
	repo := ownedRepo(starterBusiness())
	repo.markDomainVerifiedFunc = func(ctx context.Context, id, method string) error {
		markedMethod = method
		return nil
	}
	resolver := &mockResolver{
		lookupTXTFunc: func(ctx context.Context, name string) ([]string, error) {
			if name != "_tradesite-verify.example.com" {
				t.Errorf("lookup name = %q", name)
			}
			return []string{"other-record", " abc123token "}, nil
		},
	}
	s := NewService(repo, resolver, nil, nil)

	result, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodDNS)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Verified || result.Method != MethodDNS {
		t.Errorf("result = %+v", result)
	}
	if markedMethod != MethodDNS {
		t.Errorf("marked method = %q, want dns", markedMethod)
	}
}

// TestVerify_DNSMismatch はトークン不一致時に書き込みが行われないことを検証する。
func TestVerify_DNSMismatch(t *testing.T) {
	repo := ownedRepo(starterBusiness())
	repo.markDomainVerifiedFunc = func(ctx context.Context, id, method string) error {
		t.Fatal("MarkDomainVerified should not be called on mismatch")
		return nil
	}
	resolver := &mockResolver{
		lookupTXTFunc: func(ctx context.Context, name string) ([]string, error) {
			return []string{"wrong-token"}, nil
		},
	}
	s := NewService(repo, resolver, nil, nil)

	result, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodDNS)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Verified {
		t.Error("expected verified=false")
	}
}

// TestVerify_DNSLookupError はDNS参照失敗がverified=falseになることを検証する。
func TestVerify_DNSLookupError(t *testing.T) {
	repo := ownedRepo(starterBusiness())
	repo.markDomainVerifiedFunc = func(ctx context.Context, id, method string) error {
		t.Fatal("MarkDomainVerified should not be called")
		return nil
	}
	resolver := &mockResolver{
		lookupTXTFunc: func(ctx context.Context, name string) ([]string, error) {
			return nil, errors.New("no such host")
		},
	}
	s := NewService(repo, resolver, nil, nil)

	result, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodDNS)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Verified {
		t.Error("expected verified=false")
	}
}

// TestVerify_FileSuccess は検証ファイル一致時の検証済みマークを検証する。
func TestVerify_FileSuccess(t *testing.T) {
	var markedMethod string
	repo := ownedRepo(starterBusiness())
	repo.markDomainVerifiedFunc = func(ctx context.Context, id, method string) error {
		markedMethod = method
		return nil
	}
	guard := &mockSSRFGuard{
		roundTrip: func(req *http.Request) (*http.Response, error) {
			if req.URL.String() != "https://example.com/.well-known/tradesite-verify.txt" {
				t.Errorf("url = %q", req.URL.String())
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("abc123token\n")),
			}, nil
		},
	}
	s := NewService(repo, nil, guard, nil)

	result, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodFile)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !result.Verified {
		t.Error("expected verified=true")
	}
	if markedMethod != MethodFile {
		t.Errorf("marked method = %q, want file", markedMethod)
	}
}

// TestVerify_FileNotFound は404応答がverified=falseになることを検証する。
func TestVerify_FileNotFound(t *testing.T) {
	repo := ownedRepo(starterBusiness())
	repo.markDomainVerifiedFunc = func(ctx context.Context, id, method string) error {
		t.Fatal("MarkDomainVerified should not be called")
		return nil
	}
	guard := &mockSSRFGuard{
		roundTrip: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader("not found")),
			}, nil
		},
	}
	s := NewService(repo, nil, guard, nil)

	result, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodFile)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Verified {
		t.Error("expected verified=false")
	}
}

// TestVerify_FileURLRejected はSSRFガードが拒否したURLで検証しないことを検証する。
func TestVerify_FileURLRejected(t *testing.T) {
	repo := ownedRepo(starterBusiness())
	guard := &mockSSRFGuard{
		validateErr: errors.New("blocked host"),
		roundTrip: func(req *http.Request) (*http.Response, error) {
			t.Fatal("request should not be sent for rejected url")
			return nil, nil
		},
	}
	s := NewService(repo, nil, guard, nil)

	result, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodFile)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Verified {
		t.Error("expected verified=false")
	}
}

// TestRemoveDomain はドメイン状態のクリアを検証する。
func TestRemoveDomain(t *testing.T) {
	var clearedID string
	repo := ownedRepo(starterBusiness())
	repo.clearDomainFunc = func(ctx context.Context, id string) error {
		clearedID = id
		return nil
	}
	s := NewService(repo, nil, nil, nil)

	if err := s.RemoveDomain(context.Background(), "clerk-1", "b-1"); err != nil {
		t.Fatalf("RemoveDomain returned error: %v", err)
	}
	if clearedID != "b-1" {
		t.Errorf("cleared id = %q, want b-1", clearedID)
	}
}

// TestVerify_NotOwned は他人のビジネスの拒否を検証する。
func TestVerify_NotOwned(t *testing.T) {
	repo := &mockDomainRepository{
		findOwnedFunc: func(ctx context.Context, businessID, clerkID string) (*model.Business, error) {
			return nil, nil
		},
	}
	s := NewService(repo, nil, nil, nil)

	_, err := s.Verify(context.Background(), "clerk-1", "b-1", MethodDNS)
	if asAPIError(t, err).Code != model.ErrCodeBusinessNotFound {
		t.Errorf("expected BUSINESS_NOT_FOUND, got %v", err)
	}
}
