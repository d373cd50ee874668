package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEFAULT_PAYMENT_TERMS_DAYS", "45")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 45, cfg.DefaultPaymentTermsDays)
	assert.Equal(t, 30*time.Second, cfg.ReceiptLockTTL)
	assert.Equal(t, "10 0 * * *", cfg.OverdueScanCron)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"DEFAULT_PAYMENT_TERMS_DAYS": "-1",
		"RECEIPT_LOCK_TTL":           "0s",
		"LOG_FORMAT":                 "xml",
		"PG_MAX_CONNS":               "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}
