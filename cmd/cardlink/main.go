package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/smallbiznis/cardlink/internal/adapter/cache"
	"github.com/smallbiznis/cardlink/internal/bootstrap"
	"github.com/smallbiznis/cardlink/internal/capability"
	"github.com/smallbiznis/cardlink/internal/card"
	"github.com/smallbiznis/cardlink/internal/config"
	"github.com/smallbiznis/cardlink/internal/diagnostic"
	"github.com/smallbiznis/cardlink/internal/exchange"
	httptransport "github.com/smallbiznis/cardlink/internal/http"
	"github.com/smallbiznis/cardlink/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/cardlink/internal/http/middleware"
	"github.com/smallbiznis/cardlink/internal/jwt"
	"github.com/smallbiznis/cardlink/internal/media"
	apimiddleware "github.com/smallbiznis/cardlink/internal/middleware"
	"github.com/smallbiznis/cardlink/internal/repository"
	"github.com/smallbiznis/cardlink/internal/server"
	"github.com/smallbiznis/cardlink/internal/session"
	"github.com/smallbiznis/cardlink/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newProfileStore,
			newNonceStore,
			newAvatarResolver,
			card.NewResolver,
			newSigner,
			newKeyManager,
			newUpgradeIssuer,
			newSessionManager,
			newDiagnosticSink,
			newExchangeService,
			newRateLimiter,
			handler.NewExchangeHandler,
			newSessionHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.VerifySecrets, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), telemetry.Options{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.TelemetryEndpoint,
		Insecure:    cfg.TelemetryInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newProfileStore(pool *pgxpool.Pool) repository.ProfileStore {
	return repository.NewPostgresProfileStore(pool)
}

// newNonceStore only dials Redis when single-use capabilities are enabled.
func newNonceStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.NonceStore, error) {
	if !cfg.SingleUseCapabilities {
		return repository.NoopNonceStore{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	logger.Info("single-use capabilities enabled", zap.String("redis_addr", cfg.RedisAddr))
	return cacheadapter.NewRedisNonceStore(client), nil
}

func newAvatarResolver(cfg config.Config) (media.AvatarResolver, error) {
	return media.NewCDNResolver(cfg.MediaBaseURL)
}

func newSigner(cfg config.Config) (*capability.Signer, error) {
	return capability.NewSigner(cfg.ContactCardSecret, cfg.ShareBackSecret)
}

func newKeyManager(cfg config.Config, logger *zap.Logger) (*jwt.KeyManager, error) {
	manager, err := jwt.NewKeyManager(cfg.UpgradeSecret, cfg.UpgradePreviousSecrets...)
	if err != nil {
		return nil, err
	}
	logger.Info("upgrade signing keys loaded", zap.Strings("kids", manager.KeyIDs()))
	return manager, nil
}

func newUpgradeIssuer(manager *jwt.KeyManager, cfg config.Config) *jwt.UpgradeIssuer {
	return jwt.NewUpgradeIssuer(manager, cfg.UpgradeTokenTTL)
}

func newSessionManager(cfg config.Config) (*session.Manager, error) {
	return session.NewManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newDiagnosticSink(lc fx.Lifecycle, cfg config.Config, node *snowflake.Node, logger *zap.Logger) diagnostic.Sink {
	sink := diagnostic.NewAsyncSink(node, diagnostic.NewZapReporter(logger), cfg.DiagnosticBuffer, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sink.Close(ctx)
		},
	})
	return sink
}

func newExchangeService(
	signer *capability.Signer,
	cards *card.Resolver,
	upgrades *jwt.UpgradeIssuer,
	nonces repository.NonceStore,
	sink diagnostic.Sink,
	cfg config.Config,
	logger *zap.Logger,
) *exchange.Service {
	return exchange.NewService(signer, cards, upgrades, nonces, sink, exchange.Config{
		PublicBaseURL: cfg.PublicBaseURL,
		TTLs: map[capability.Kind]time.Duration{
			capability.KindQRProfile:      cfg.QRProfileTTL,
			capability.KindEmailSignature: cfg.EmailSigTTL,
			capability.KindShareBack:      cfg.ShareBackTTL,
		},
		SingleUse: cfg.SingleUseCapabilities,
	}, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newSessionHandler(sessions *session.Manager, cfg config.Config, logger *zap.Logger) *handler.SessionHandler {
	return handler.NewSessionHandler(sessions, !cfg.IsDevelopment(), logger)
}

func newAuthMiddleware(sessions *session.Manager, upgrades *jwt.UpgradeIssuer) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{Sessions: sessions, Upgrades: upgrades}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
