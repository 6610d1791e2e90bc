package config

import (
	"strings"
	"testing"
	"time"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{"JWT_SECRET_KEY": "s3cret"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreBackend != "postgres" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CollabPendingTTL != 14*24*time.Hour {
		t.Fatalf("CollabPendingTTL = %v", cfg.CollabPendingTTL)
	}
	if cfg.CompliancePolicy != CompliancePolicyReview || cfg.CounterRejectPolicy != CounterRejectTerminal {
		t.Fatalf("unexpected policies: %q %q", cfg.CompliancePolicy, cfg.CounterRejectPolicy)
	}
	if cfg.ClickHouse.Enabled() {
		t.Fatalf("clickhouse should be disabled without CLICKHOUSE_HOST")
	}
}

func TestFromEnvParsesLists(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"JWT_SECRET_KEY": "x",
		"KAFKA_BROKERS":  "k1:9092, k2:9092,",
		"ADMIN_EMAILS":   "Ops@Example.com",
	}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.IsAdminEmail("ops@example.com") {
		t.Fatalf("expected case-insensitive admin match")
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"bad duration":   {"JWT_SECRET_KEY": "x", "COLLAB_PENDING_TTL": "soon"},
		"bad int":        {"JWT_SECRET_KEY": "x", "TASK_WORKERS": "four"},
		"bad policy":     {"JWT_SECRET_KEY": "x", "COMPLIANCE_POLICY": "ignore"},
		"bad backend":    {"JWT_SECRET_KEY": "x", "STORE_BACKEND": "mongo"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromEnv(envOf(env)); err == nil {
				t.Fatalf("expected error")
			} else if strings.TrimSpace(err.Error()) == "" {
				t.Fatalf("empty error message")
			}
		})
	}
}
