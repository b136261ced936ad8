package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/cardlink")
	t.Setenv("CONTACT_CARD_SIGNATURE_SECRET", strings.Repeat("c", 32))
	t.Setenv("SHARE_BACK_SIGNATURE_SECRET", strings.Repeat("s", 32))
	t.Setenv("SESSION_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("SESSION_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("UPGRADE_TOKEN_SECRET", strings.Repeat("u", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 20*time.Minute, cfg.UpgradeTokenTTL)
	require.Equal(t, 7*24*time.Hour, cfg.ShareBackTTL)
	require.False(t, cfg.SingleUseCapabilities)
	require.Equal(t, 256, cfg.DiagnosticBuffer)
	require.Len(t, cfg.Secrets(), 5)
}

func TestLoadRejectsWeakSecrets(t *testing.T) {
	setRequired(t)
	t.Setenv("UPGRADE_TOKEN_SECRET", "short")

	_, err := Load()
	require.ErrorContains(t, err, "UPGRADE_TOKEN_SECRET")
}

func TestLoadRejectsSharedSessionSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_REFRESH_SECRET", strings.Repeat("a", 32))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsRefreshShorterThanAccess(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL", "1h")
	t.Setenv("REFRESH_TOKEN_TTL", "30m")

	_, err := Load()
	require.Error(t, err)
}

func TestGetList(t *testing.T) {
	t.Setenv("CARDLINK_TEST_LIST", " a, ,b ")
	require.Equal(t, []string{"a", "b"}, getList("CARDLINK_TEST_LIST", nil))
	require.Equal(t, []string{"x"}, getList("CARDLINK_TEST_MISSING", []string{"x"}))
}
