package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/keys"
)

type fakeSource struct {
	snapshot goToken.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goToken.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters:   map[goToken.MetricID]uint64{},
			Histograms: map[goToken.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters: map[goToken.MetricID]uint64{
				goToken.MetricIssueSuccess: 7,
			},
			Histograms: map[goToken.MetricID][]uint64{
				goToken.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gotoken_issue_success_total 7",
		"gotoken_validate_failure_total 0",
		"gotoken_validate_latency_seconds_bucket{le=\"0.005\"} 1",
		"gotoken_validate_latency_seconds_bucket{le=\"+Inf\"} 36",
		"gotoken_validate_latency_seconds_count 36",
		"gotoken_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gotoken_issue_latency_seconds") {
		t.Fatalf("histograms missing from the snapshot must not be rendered:\n%s", out)
	}
	if out != exp.Render() {
		t.Fatal("expected deterministic output")
	}
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	key, err := keys.Generate("ES256", keys.WithKeyID("k1"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	provider, err := keys.NewMemoryProvider([]*keys.KeyMaterial{key})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	cfg := goToken.DefaultConfig()
	cfg.DefaultIssuer = "https://auth.local"
	cfg.DefaultAudience = "api"
	engine, err := goToken.New().WithConfig(cfg).WithKeyProvider(provider).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.NewToken("", "").Sign(context.Background()); err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	NewPrometheusExporter(engine).Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "gotoken_issue_success_total 1") {
		t.Fatalf("expected issue counter, got:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goToken.MetricsSnapshot{
			Counters: map[goToken.MetricID]uint64{
				goToken.MetricIssueSuccess:             1000,
				goToken.MetricValidateSuccess:          4000,
				goToken.MetricValidateFailure:          40,
				goToken.MetricValidateBaselineRejected: 30,
				goToken.MetricTokenRevoked:             3,
			},
			Histograms: map[goToken.MetricID][]uint64{
				goToken.MetricIssueLatency:    {10, 20, 30, 40, 50, 60, 70, 80},
				goToken.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
