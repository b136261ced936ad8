package bootstrap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/smallbiznis/cardlink/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		ContactCardSecret: strings.Repeat("c", 32),
		ShareBackSecret:   strings.Repeat("s", 32),
		AccessSecret:      strings.Repeat("a", 32),
		RefreshSecret:     strings.Repeat("r", 32),
		UpgradeSecret:     strings.Repeat("a", 32),
	}
}

func TestFingerprintIsStableAndOpaque(t *testing.T) {
	secret := strings.Repeat("x", 40)
	require.Equal(t, Fingerprint(secret), Fingerprint(secret))
	require.NotEqual(t, Fingerprint(secret), Fingerprint(secret+"y"))
	require.Len(t, Fingerprint(secret), 16)
	require.NotContains(t, Fingerprint(secret), "xxxx")
}

func TestVerifySecretsLogsFingerprintsOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := testConfig()

	require.NoError(t, verifySecrets(cfg, zap.New(core)))
	require.Equal(t, 5, logs.FilterMessage("secret loaded").Len())
	require.Equal(t, 1, logs.FilterMessage("secret reused across purposes").Len())

	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			for _, secret := range cfg.Secrets() {
				require.NotEqual(t, secret, field.String)
			}
		}
	}
}

func TestVerifySecretsRejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.UpgradeSecret = "short"
	require.Error(t, verifySecrets(cfg, zap.NewNop()))
}
