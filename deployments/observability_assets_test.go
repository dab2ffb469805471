package deployments

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []rule `yaml:"rules"`
	} `yaml:"groups"`
}

type rule struct {
	Record string            `yaml:"record"`
	Alert  string            `yaml:"alert"`
	Expr   string            `yaml:"expr"`
	For    string            `yaml:"for"`
	Labels map[string]string `yaml:"labels"`
}

var recordNames = []string{
	"askql:slo_ask_latency_seconds_p95",
	"askql:slo_degraded_ratio_15m",
	"askql:slo_validation_rejections_15m",
	"askql:slo_repair_attempts_15m",
	"askql:slo_generator_error_ratio_15m",
	"askql:slo_execution_latency_seconds_p95",
	"askql:slo_rate_limited_5m",
	"askql:slo_http_error_rate_5m",
}

// exportedMetrics mirrors the collectors registered by internal/observability.
var exportedMetrics = map[string]bool{
	"askql_http_requests_total":           true,
	"askql_http_request_duration_seconds": true,
	"askql_http_in_flight_requests":       true,
	"askql_asks_total":                    true,
	"askql_sql_validations_total":         true,
	"askql_repair_attempts_total":         true,
	"askql_generator_latency_seconds":     true,
	"askql_execution_latency_seconds":     true,
	"askql_degraded_answers_total":        true,
	"askql_rate_limited_requests_total":   true,
}

func TestRecordingRulesDefineExpectedSeries(t *testing.T) {
	var recorded []string
	for _, r := range loadRules(t, "askql_recording_rules.yaml") {
		if r.Record == "" || r.Expr == "" {
			t.Fatalf("recording rule without record or expr: %+v", r)
		}
		recorded = append(recorded, r.Record)
	}
	want := slices.Clone(recordNames)
	slices.Sort(want)
	slices.Sort(recorded)
	if !slices.Equal(recorded, want) {
		t.Fatalf("recorded series = %v, want %v", recorded, want)
	}
}

func TestRecordingRulesOnlyUseExportedMetrics(t *testing.T) {
	suffix := regexp.MustCompile(`_(bucket|count|sum)$`)
	metric := regexp.MustCompile(`\baskql_[a-z_]+`)
	for _, r := range loadRules(t, "askql_recording_rules.yaml") {
		for _, name := range metric.FindAllString(r.Expr, -1) {
			if !exportedMetrics[suffix.ReplaceAllString(name, "")] {
				t.Fatalf("%s references unknown metric %q", r.Record, name)
			}
		}
	}
}

func TestAlertsUseRecordedSeries(t *testing.T) {
	requiredAlerts := []string{
		"AskQLAskLatencyP95High",
		"AskQLDegradedAnswersHigh",
		"AskQLGeneratorFailing",
		"AskQLExecutionLatencyP95High",
		"AskQLHTTPErrorRateHigh",
	}
	series := regexp.MustCompile(`askql:[a-z0-9_]+`)
	var alerts []string
	for _, r := range loadRules(t, "askql_rules.yaml") {
		if r.Alert == "" {
			continue
		}
		alerts = append(alerts, r.Alert)
		if r.Labels["severity"] == "" {
			t.Fatalf("alert %s has no severity label", r.Alert)
		}
		for _, name := range series.FindAllString(r.Expr, -1) {
			if !slices.Contains(recordNames, name) {
				t.Fatalf("alert %s references unrecorded series %q", r.Alert, name)
			}
		}
	}
	for _, name := range requiredAlerts {
		if !slices.Contains(alerts, name) {
			t.Fatalf("rules missing alert %q (have %v)", name, alerts)
		}
	}
}

func TestScrapeExampleTargetsMetricsEndpoint(t *testing.T) {
	var cfg struct {
		RuleFiles     []string `yaml:"rule_files"`
		ScrapeConfigs []struct {
			JobName     string `yaml:"job_name"`
			MetricsPath string `yaml:"metrics_path"`
		} `yaml:"scrape_configs"`
	}
	decodeAsset(t, "prometheus-scrape.example.yaml", &cfg)

	for _, file := range []string{"askql_rules.yaml", "askql_recording_rules.yaml"} {
		if !slices.Contains(cfg.RuleFiles, file) {
			t.Fatalf("rule_files = %v, missing %s", cfg.RuleFiles, file)
		}
	}
	if len(cfg.ScrapeConfigs) != 1 {
		t.Fatalf("scrape_configs = %+v", cfg.ScrapeConfigs)
	}
	if job := cfg.ScrapeConfigs[0]; job.JobName != "askql-api" || job.MetricsPath != "/v1/metrics" {
		t.Fatalf("scrape job = %+v", job)
	}
}

func loadRules(t *testing.T, name string) []rule {
	t.Helper()
	var file ruleFile
	decodeAsset(t, name, &file)
	var rules []rule
	for _, group := range file.Groups {
		rules = append(rules, group.Rules...)
	}
	if len(rules) == 0 {
		t.Fatalf("%s defines no rules", name)
	}
	return rules
}

func decodeAsset(t *testing.T, name string, out any) {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	path := filepath.Join(filepath.Dir(filename), "observability", "prometheus", name)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(content, out); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
