package config

import (
	"context"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-jwt-secret")
	t.Setenv("VAULT_SECRET", "test-vault-secret")
	t.Setenv("OIDC_ISSUER_URL", "https://idp.example.com")
	t.Setenv("OIDC_CLIENT_ID", "jellyconnect")
	t.Setenv("MEDIA_API_TOKEN", "media-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Sweep.Schedule != "0 * * * *" {
		t.Fatalf("sweep must default to hourly, got %q", cfg.Sweep.Schedule)
	}
	if cfg.Sweep.WarnWindowDays != 7 {
		t.Fatalf("warn window default: got %d", cfg.Sweep.WarnWindowDays)
	}
	if !cfg.Pairing.AllowUnattributed {
		t.Fatalf("unattributed pairing fallback must default to enabled")
	}
	if got := cfg.OIDC.GroupClaims; len(got) != 2 || got[0] != "groups" || got[1] != "roles" {
		t.Fatalf("group claim defaults: got %v", got)
	}
	if got := cfg.OIDC.Scopes; len(got) != 4 || got[0] != "openid" {
		t.Fatalf("scope defaults: got %v", got)
	}
	if cfg.Port != "8096" {
		t.Fatalf("port default: got %q", cfg.Port)
	}
}

func TestLoad_ScheduleOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SWEEP_SCHEDULE", "30 2 * * *")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sweep.Schedule != "30 2 * * *" {
		t.Fatalf("override not honored: %q", cfg.Sweep.Schedule)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	cases := []string{"JWT_SECRET", "VAULT_SECRET", "OIDC_ISSUER_URL", "OIDC_CLIENT_ID", "MEDIA_API_TOKEN"}
	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(missing, "")

			if _, err := Load(context.Background()); err == nil {
				t.Fatalf("expected error when %s is empty", missing)
			}
		})
	}
}
