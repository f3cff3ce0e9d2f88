package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/dao-governance/src/api/config"
	"github.com/stake-plus/dao-governance/src/api/webserver"
	"github.com/stake-plus/dao-governance/src/data"
	"github.com/stake-plus/dao-governance/src/dispatch"
	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/metrics"
	"github.com/stake-plus/dao-governance/src/notify"
	"github.com/stake-plus/dao-governance/src/seed"
	"github.com/stake-plus/dao-governance/src/service"
)

const tlsCheckInterval = time.Minute

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the governance HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Migrate the schema before serving")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <genesis.yaml>",
		Short: "Create units, members and treasury balances from a genesis file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			_, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			treasury := data.NewGormTreasury(db)
			engine := governance.New(data.NewGormStore(db), treasury, nil, governance.WithLogger(log))
			units, err := seed.Apply(cmd.Context(), engine, treasury, g, log)
			if err != nil {
				return err
			}
			for _, u := range units {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.ID, u.Name)
			}
			return nil
		},
	}
}

func runServe(parent context.Context, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		return err
	}
	if migrate {
		if err := data.Migrate(db); err != nil {
			return err
		}
	}
	if err := data.LoadSettings(db); err != nil {
		log.Warn("load settings", zap.Error(err))
	}
	cfg.ApplySettings()

	rdb, err := data.OpenRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	m := metrics.New()
	sinks := governance.MultiSink{data.NewStreamSink(rdb, cfg.EventStream, cfg.EventStreamLen), m}

	mods := []service.Module{}
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		session, err := notify.OpenDiscord(cfg.DiscordToken)
		if err != nil {
			return err
		}
		sinks = append(sinks, notify.NewDiscord(session, cfg.DiscordChannelID, log))
		mods = append(mods, service.Func{
			ModuleName: "discord",
			OnStop:     func(context.Context) { _ = session.Close() },
		})
	}

	engine := governance.New(
		data.NewGormStore(db),
		data.NewGormTreasury(db),
		customTargets(cfg, rdb, log),
		governance.WithEventSink(sinks),
		governance.WithRecorder(m),
		governance.WithLogger(log),
	)

	limiter := webserver.NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	handler := webserver.New(webserver.Deps{
		Config:  cfg,
		Engine:  engine,
		Nonces:  data.NewNonceStore(rdb),
		Metrics: m,
		Limiter: limiter,
		Log:     log,
		Ready:   readiness(db, rdb),
	})
	mods = append(mods, service.Func{
		ModuleName: "ratelimit",
		OnStart: func(ctx context.Context) error {
			go limiter.Run(ctx)
			return nil
		},
	})

	var tlsCfg *tls.Config
	if cfg.TLSCertFile != "" {
		reloader, err := webserver.NewTLSReloader(cfg.TLSCertFile, cfg.TLSKeyFile, log)
		if err != nil {
			return err
		}
		tlsCfg = reloader.Config()
		mods = append(mods, service.Func{
			ModuleName: "tls-reloader",
			OnStart: func(ctx context.Context) error {
				go reloader.Watch(ctx, tlsCheckInterval)
				return nil
			},
		})
	}

	srv := service.NewHTTPServer(cfg.Addr(), handler, tlsCfg, log)
	mods = append(mods, srv)

	manager := service.NewManager(log, mods...)
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop(context.Background())

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case err, ok := <-srv.Err():
		if ok && err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// customTargets registers the redis stream under "stream" and every
// configured webhook under its own name.
func customTargets(cfg config.Config, rdb *redis.Client, log *zap.Logger) *dispatch.Router {
	r := dispatch.NewRouter()
	r.Register("stream", dispatch.NewStreamTarget(rdb, cfg.CustomStream))
	for name, url := range cfg.WebhookTargets {
		r.Register(name, dispatch.NewWebhookTarget(url, dispatch.WithRetry(cfg.WebhookAttempts, 500*time.Millisecond)))
	}
	log.Info("custom targets registered", zap.Strings("targets", r.Names()))
	return r
}

func readiness(db *gorm.DB, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}
