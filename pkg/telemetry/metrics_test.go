package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}

	// None of these may panic on a disabled instance.
	m.RecordCMDBLookup("resolved")
	m.RecordCMDBCache(3, 1)
	m.RecordTaskExecution("uptime", "success", time.Second)
	m.RecordConnection("ssh", "ok")
	m.RecordCommand("local")
	if err := m.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordCMDBLookup("resolved")
	m.RecordCMDBCache(2, 5)
	m.RecordTaskExecution("uptime", "success", 120*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`rex_cmdb_lookups_total{status="resolved"} 1`,
		`rex_cmdb_cache_hits_total 2`,
		`rex_cmdb_cache_misses_total 5`,
		`rex_tasks_executed_total{status="success",task="uptime"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := parseLogLevel("bogus"); got.String() != "info" {
		t.Errorf("parseLogLevel(bogus) = %v, want info", got)
	}
	if got := parseLogLevel("debug"); got.String() != "debug" {
		t.Errorf("parseLogLevel(debug) = %v, want debug", got)
	}
}
