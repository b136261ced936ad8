package bootstrap

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"

	"github.com/smallbiznis/cardlink/internal/config"
)

const (
	fingerprintTime    uint32 = 1
	fingerprintMemory  uint32 = 19 * 1024
	fingerprintThreads uint8  = 1
	fingerprintKeyLen  uint32 = 8
)

var fingerprintSalt = []byte("cardlink.secret-fingerprint.v1")

// Fingerprint derives a short, non-reversible identifier for a secret so operators can tell
// two deployments share a secret without the secret appearing in logs.
func Fingerprint(secret string) string {
	sum := argon2.IDKey([]byte(secret), fingerprintSalt, fingerprintTime, fingerprintMemory, fingerprintThreads, fingerprintKeyLen)
	return hex.EncodeToString(sum)
}

// VerifySecrets checks the configured secrets on startup and logs their fingerprints.
func VerifySecrets(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return verifySecrets(cfg, logger)
		},
	})
}

func verifySecrets(cfg config.Config, logger *zap.Logger) error {
	secrets := cfg.Secrets()
	names := make([]string, 0, len(secrets))
	for name := range secrets {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]string, len(secrets))
	for _, name := range names {
		secret := secrets[name]
		if len(secret) < config.MinSecretLength {
			return fmt.Errorf("bootstrap: %s is shorter than %d bytes", name, config.MinSecretLength)
		}
		fingerprint := Fingerprint(secret)
		if other, ok := seen[fingerprint]; ok {
			logger.Warn("secret reused across purposes", zap.String("secret", name), zap.String("shared_with", other))
		}
		seen[fingerprint] = name
		logger.Info("secret loaded", zap.String("secret", name), zap.String("fingerprint", fingerprint))
	}
	return nil
}
