package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordGenerationSuccess は生成成功カウンタの増加を検証する。
func TestRecordGenerationSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGenerationSuccess("hero")
	c.RecordGenerationSuccess("hero")
	c.RecordGenerationSuccess("about")

	if got := testutil.ToFloat64(c.generationSuccess.WithLabelValues("hero")); got != 2 {
		t.Errorf("generation success (hero) = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.generationSuccess.WithLabelValues("about")); got != 1 {
		t.Errorf("generation success (about) = %f, want 1", got)
	}
}

// TestRecordGenerationFailure は生成失敗カウンタの増加を検証する。
func TestRecordGenerationFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGenerationFailure("hero", "api_error")
	c.RecordGenerationFailure("hero", "api_error")
	c.RecordGenerationFailure("cta", "parse_error")

	if got := testutil.ToFloat64(c.generationFail.WithLabelValues("hero", "api_error")); got != 2 {
		t.Errorf("generation fail (hero/api_error) = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.generationFail.WithLabelValues("cta", "parse_error")); got != 1 {
		t.Errorf("generation fail (cta/parse_error) = %f, want 1", got)
	}
}

// TestRecordQuotaRejection はクォータ拒否カウンタのラベル別増加を検証する。
func TestRecordQuotaRejection(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordQuotaRejection("free")
	c.RecordQuotaRejection("free")
	c.RecordQuotaRejection("starter")

	if got := testutil.ToFloat64(c.quotaRejections.WithLabelValues("free")); got != 2 {
		t.Errorf("quota rejections (free) = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.quotaRejections.WithLabelValues("starter")); got != 1 {
		t.Errorf("quota rejections (starter) = %f, want 1", got)
	}
}

// TestRecordWebhookEvent はwebhookイベントカウンタの増加を検証する。
func TestRecordWebhookEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordWebhookEvent("user.created")
	c.RecordWebhookEvent("user.updated")
	c.RecordWebhookEvent("user.created")

	if got := testutil.ToFloat64(c.webhookEvents.WithLabelValues("user.created")); got != 2 {
		t.Errorf("webhook events (user.created) = %f, want 2", got)
	}
	if got := testutil.ToFloat64(c.webhookEvents.WithLabelValues("user.updated")); got != 1 {
		t.Errorf("webhook events (user.updated) = %f, want 1", got)
	}
}

// TestRecordDomainVerification は検証試行カウンタのresultラベルを検証する。
func TestRecordDomainVerification(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDomainVerification("dns", true)
	c.RecordDomainVerification("dns", false)
	c.RecordDomainVerification("file", true)

	if got := testutil.ToFloat64(c.domainVerifications.WithLabelValues("dns", "success")); got != 1 {
		t.Errorf("domain verifications (dns/success) = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.domainVerifications.WithLabelValues("dns", "fail")); got != 1 {
		t.Errorf("domain verifications (dns/fail) = %f, want 1", got)
	}
	if got := testutil.ToFloat64(c.domainVerifications.WithLabelValues("file", "success")); got != 1 {
		t.Errorf("domain verifications (file/success) = %f, want 1", got)
	}
}

// TestRecordOnboardingCompleted はオンボーディング完了カウンタの増加を検証する。
func TestRecordOnboardingCompleted(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOnboardingCompleted()
	c.RecordOnboardingCompleted()

	if got := testutil.ToFloat64(c.onboardingCompleted); got != 2 {
		t.Errorf("onboarding completed = %f, want 2", got)
	}
}

// TestRecordGenerationLatency はレイテンシヒストグラムへの記録を検証する。
func TestRecordGenerationLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGenerationLatency(800 * time.Millisecond)
	c.RecordGenerationLatency(2 * time.Second)

	count := testutil.CollectAndCount(c.generationLatency)
	if count != 1 {
		t.Errorf("latency metric count = %d, want 1", count)
	}
}

// TestNewCollector_RegistersAllMetrics は全メトリクスがレジストリに登録されることを検証する。
func TestNewCollector_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	// ラベル付きメトリクスは一度記録しないとGatherに現れない
	c.RecordGenerationSuccess("hero")
	c.RecordGenerationFailure("hero", "api_error")
	c.RecordGenerationLatency(time.Second)
	c.RecordQuotaRejection("free")
	c.RecordWebhookEvent("user.created")
	c.RecordDomainVerification("dns", true)
	c.RecordOnboardingCompleted()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather returned error: %v", err)
	}

	want := map[string]bool{
		"tradesite_ai_generation_success_total":   false,
		"tradesite_ai_generation_fail_total":      false,
		"tradesite_ai_generation_latency_seconds": false,
		"tradesite_ai_quota_rejections_total":     false,
		"tradesite_webhook_events_total":          false,
		"tradesite_domain_verifications_total":    false,
		"tradesite_onboarding_completed_total":    false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}
