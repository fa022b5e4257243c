package bdd

import (
	"os"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/joho/godotenv"
)

func TestMain(m *testing.M) {
	// Load .env.test if present so timeouts can be tuned on slow CI.
	// Use Overload so test values always override any shell/CI env.
	if _, err := os.Stat(".env.test"); err == nil {
		_ = godotenv.Overload(".env.test")
	}
	if raw := os.Getenv("BDD_SETTLE_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			settleTimeout = d
		}
	}
	os.Exit(m.Run())
}

func TestBDDFeatures(t *testing.T) {
	opts := godog.Options{
		Format: "pretty",
		Paths:  []string{"features"},
		Strict: true,
	}

	suite := godog.TestSuite{
		Name: "payment-session-client",
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			world := NewCheckoutWorld(t)
			world.Register(sc)
		},
		Options: &opts,
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}
