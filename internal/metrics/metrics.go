// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層から利用する。
type MetricsCollector interface {
	RecordGenerationSuccess(section string)
	RecordGenerationFailure(section string, reason string)
	RecordGenerationLatency(duration time.Duration)
	RecordQuotaRejection(planType string)
	RecordWebhookEvent(eventType string)
	RecordDomainVerification(method string, success bool)
	RecordOnboardingCompleted()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generationSuccess   *prometheus.CounterVec
	generationFail      *prometheus.CounterVec
	generationLatency   prometheus.Histogram
	quotaRejections     *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	domainVerifications *prometheus.CounterVec
	onboardingCompleted prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesite_ai_generation_success_total",
			Help: "AIコンテンツ生成成功の合計数",
		}, []string{"section"}),
		generationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesite_ai_generation_fail_total",
			Help: "AIコンテンツ生成失敗の合計数",
		}, []string{"section", "reason"}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesite_ai_generation_latency_seconds",
			Help:    "AIコンテンツ生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		quotaRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesite_ai_quota_rejections_total",
			Help: "月次クォータによるAI生成拒否の合計数",
		}, []string{"plan_type"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesite_webhook_events_total",
			Help: "処理されたIdP webhookイベントの合計数",
		}, []string{"event_type"}),
		domainVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesite_domain_verifications_total",
			Help: "ドメイン検証試行の合計数",
		}, []string{"method", "result"}),
		onboardingCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesite_onboarding_completed_total",
			Help: "オンボーディング完了（ビジネス作成）の合計数",
		}),
	}

	reg.MustRegister(
		c.generationSuccess,
		c.generationFail,
		c.generationLatency,
		c.quotaRejections,
		c.webhookEvents,
		c.domainVerifications,
		c.onboardingCompleted,
	)

	return c
}

// RecordGenerationSuccess はAI生成成功を記録する。
func (c *Collector) RecordGenerationSuccess(section string) {
	c.generationSuccess.WithLabelValues(section).Inc()
}

// RecordGenerationFailure はAI生成失敗を記録する。
func (c *Collector) RecordGenerationFailure(section string, reason string) {
	c.generationFail.WithLabelValues(section, reason).Inc()
}

// RecordGenerationLatency はAI生成のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(duration time.Duration) {
	c.generationLatency.Observe(duration.Seconds())
}

// RecordQuotaRejection はクォータによる拒否を記録する。
func (c *Collector) RecordQuotaRejection(planType string) {
	c.quotaRejections.WithLabelValues(planType).Inc()
}

// RecordWebhookEvent は処理されたwebhookイベントを記録する。
func (c *Collector) RecordWebhookEvent(eventType string) {
	c.webhookEvents.WithLabelValues(eventType).Inc()
}

// RecordDomainVerification はドメイン検証試行を記録する。
func (c *Collector) RecordDomainVerification(method string, success bool) {
	result := "fail"
	if success {
		result = "success"
	}
	c.domainVerifications.WithLabelValues(method, result).Inc()
}

// RecordOnboardingCompleted はオンボーディング完了を記録する。
func (c *Collector) RecordOnboardingCompleted() {
	c.onboardingCompleted.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
