package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/openfiredata/bdqueimadas/internal/audit"
	"github.com/openfiredata/bdqueimadas/internal/config"
	"github.com/openfiredata/bdqueimadas/internal/db"
	"github.com/openfiredata/bdqueimadas/internal/export"
	"github.com/openfiredata/bdqueimadas/internal/filter"
	"github.com/openfiredata/bdqueimadas/internal/focos"
	"github.com/openfiredata/bdqueimadas/internal/graphics"
	"github.com/openfiredata/bdqueimadas/internal/logger"
	"github.com/openfiredata/bdqueimadas/internal/observability"
	"github.com/openfiredata/bdqueimadas/internal/server"
	"github.com/openfiredata/bdqueimadas/internal/token"
	"github.com/openfiredata/bdqueimadas/internal/ws"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "bdqueimadas",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting bdqueimadas", "addr", cfg.Addr, "version", Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		appLog.Error("database connect failed", "err", err)
		return 1
	}
	defer pool.Close()

	exec := db.NewExecutor(pool, appLog, cfg.QueryTimeout)

	filters, err := filter.New(exec, cfg.Tables, cfg.Spatial, cfg.HierCacheLen, appLog)
	if err != nil {
		appLog.Error("filter store setup failed", "err", err)
		return 1
	}
	charts := graphics.New(exec, cfg.Tables)

	var tokens token.Store
	switch cfg.Token.Driver {
	case "redis":
		rs, err := token.NewRedisStore(ctx, cfg.RedisAddr, cfg.Token.TTL)
		if err != nil {
			appLog.Error("redis token store setup failed", "err", err)
			return 1
		}
		defer rs.Close()
		tokens = rs
	default:
		tokens = token.NewMemoryStore(cfg.Token.TTL)
	}

	var publisher audit.Publisher = audit.Nop{}
	if cfg.Audit.Enabled {
		p, err := audit.NewPublisher(cfg.Audit.Brokers, cfg.Audit.Topic, 0)
		if err != nil {
			appLog.Error("audit publisher setup failed", "err", err)
			return 1
		}
		defer func() { _ = p.Close() }()
		publisher = p
	}

	exporter := export.New(filters, export.NewConverter(nil), cfg.ScratchDir, appLog)

	var upstream server.UpstreamService
	if cfg.FiresAPI.BaseURL != "" {
		upstream = focos.NewClient(cfg.FiresAPI, appLog)
	}

	srv := server.New(server.Deps{
		Logger:   appLog,
		Exporter: exporter,
		Guard:    token.Guard{Store: tokens, Strict: cfg.Token.Strict},
		Tokens:   tokens,
		Audit:    publisher,
		Realtime: ws.NewChannel(filters, charts, appLog),
		Upstream: upstream,
	})

	if err := srv.Run(ctx, cfg.Addr); err != nil {
		appLog.Error("server failed", "err", err)
		return 1
	}

	appLog.Info("shutdown complete")
	return 0
}
