package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/the3rdukem/KIOSKmarkethub-ghana1-sub002/internal/testutil"
)

const settingsTbl = "settings"

func TestLoad_Missing(t *testing.T) {
	db := testutil.NewDynamo()
	s := NewStore(db, settingsTbl)

	_, err := s.Load(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoad_Disabled(t *testing.T) {
	db := testutil.NewDynamo()
	db.Seed(t, settingsTbl, "payment_gateway", Config{ConfigKey: "payment_gateway", Provider: "paystack", Enabled: false})
	s := NewStore(db, settingsTbl)

	_, err := s.Load(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for disabled gateway, got %v", err)
	}
}

func TestLoad_Enabled(t *testing.T) {
	db := testutil.NewDynamo()
	db.Seed(t, settingsTbl, "payment_gateway", Config{
		ConfigKey:     "payment_gateway",
		Provider:      "paystack",
		Enabled:       true,
		SecretKey:     "sk_test",
		WebhookSecret: "whsec",
	})
	s := NewStore(db, settingsTbl)

	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "paystack" || cfg.WebhookSecret != "whsec" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
