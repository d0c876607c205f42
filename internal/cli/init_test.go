package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fortuna/internal/config"
	"fortuna/internal/core"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := config.New()
	cfg := config.FromViper(v)
	cfg.DataBackend = "memory"
	cfg.AMQPURL = ""
	return cfg
}

func TestSetupLoggerFallsBackOnBadLevel(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "loud"

	logger := SetupLogger(cfg, "test")
	require.NotNil(t, logger)
	assert.Equal(t, "test", logger.Component())
}

func TestOpenBackendMemory(t *testing.T) {
	cfg := testConfig(t)
	logger := SetupLogger(cfg, "test")

	result, svc, err := OpenBackend(context.Background(), logger, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Cleanup() })
	assert.Nil(t, result.Publisher)

	acct, err := svc.Catalog.CreateAccount(context.Background(), "Wallet", core.Cents(1000))
	require.NoError(t, err)
	bal, err := svc.Ledger.Balance(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Cents(1000), bal)
}

func TestOpenBackendRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataBackend = "sheets"

	_, _, err := OpenBackend(context.Background(), SetupLogger(cfg, "test"), cfg)
	assert.Error(t, err)
}
