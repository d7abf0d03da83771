package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/sksmith/go-spares/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.LoadDefaults()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{name: "port", got: cfg.Port, want: "8080"},
		{name: "profile", got: cfg.Profile, want: "local"},
		{name: "db name", got: cfg.Db.Name, want: "spares-db"},
		{name: "stock exchange", got: cfg.RabbitMQ.Stock.Exchange, want: "stock.exchange"},
		{name: "order exchange", got: cfg.RabbitMQ.Order.Exchange, want: "order.exchange"},
		{name: "intake queue", got: cfg.RabbitMQ.Intake.Queue, want: "stock.intake.queue"},
		{name: "intake dlt", got: cfg.RabbitMQ.Intake.Dlt.Exchange, want: "stock.intake.dlt.exchange"},
		{name: "scan ttl", got: cfg.Scan.TTL, want: 60 * time.Second},
		{name: "max challenges", got: cfg.Scan.MaxChallenges, want: 1024},
		{name: "admin user", got: cfg.Admin.User, want: "admin"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.got != test.want {
				t.Errorf("unexpected value got=%v want=%v", test.got, test.want)
			}
		})
	}

	if len(cfg.Cors.AllowedOrigins) == 0 {
		t.Error("expected default cors origins")
	}
	if cfg.Production() {
		t.Error("the local profile must not be treated as production")
	}
	if cfg.PortDesc == "" {
		t.Error("expected descriptions to be populated")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("ADMIN_USER", "boss")
	os.Setenv("SCAN_TTL", "90s")
	defer os.Unsetenv("ADMIN_USER")
	defer os.Unsetenv("SCAN_TTL")

	cfg := config.LoadDefaults()

	if cfg.Admin.User != "boss" {
		t.Errorf("unexpected admin user got=%v want=%v", cfg.Admin.User, "boss")
	}
	if cfg.Scan.TTL != 90*time.Second {
		t.Errorf("unexpected scan ttl got=%v want=%v", cfg.Scan.TTL, 90*time.Second)
	}
}

func TestProduction(t *testing.T) {
	for _, profile := range []string{"prod", "PROD"} {
		cfg := &config.Config{Profile: profile}
		if !cfg.Production() {
			t.Errorf("expected %q to be production", profile)
		}
	}
	if (&config.Config{Profile: "staging"}).Production() {
		t.Error("staging must not be production")
	}
}
