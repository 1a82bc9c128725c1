package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mtzgroup/tcpb-go/internal/adapter/crypto"
	"github.com/mtzgroup/tcpb-go/internal/adapter/filesystem/workspace"
	"github.com/mtzgroup/tcpb-go/internal/adapter/memory/recordport"
	"github.com/mtzgroup/tcpb-go/internal/adapter/metrics"
	"github.com/mtzgroup/tcpb-go/internal/adapter/postgres/jobrepository"
	"github.com/mtzgroup/tcpb-go/internal/adapter/redis/jobport"
	"github.com/mtzgroup/tcpb-go/internal/config"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/history"
	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/engine"
	http2 "github.com/mtzgroup/tcpb-go/internal/http"
	"github.com/mtzgroup/tcpb-go/internal/tcp"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var engineName string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the job server, a worker and the monitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.bind(cmd, map[string]string{
				"server.host":       "host",
				"server.port":       "port",
				"server.basedir":    "basedir",
				"server.maxpayload": "max-payload",
				"http.address":      "http",
				"history.backend":   "history",
			})
			if err != nil {
				return err
			}
			cfg, err := config.NewSystemConfig(a.v)
			if err != nil {
				return err
			}
			eng, err := newEngine(engineName)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, eng, a.logger())
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "listen host (default all interfaces)")
	flags.IntP("port", "p", 0, "listen port (0 picks a free one)")
	flags.String("basedir", "", "directory that receives the run directory (default .)")
	flags.String("max-payload", "", "largest accepted frame payload, e.g. 64MiB")
	flags.String("http", "", "monitor listen address; \"\" keeps the default, \"off\" disables it")
	flags.String("history", "", "job history backend: memory, redis, postgres or none")
	flags.StringVar(&engineName, "engine", "harmonic", "compute engine: harmonic or water")
	return cmd
}

func newEngine(name string) (engine.Engine, error) {
	switch name {
	case "harmonic":
		return engine.NewHarmonic(), nil
	case "water":
		return engine.NewWaterFixture(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

func runServe(ctx context.Context, cfg *config.AppConfig, eng engine.Engine, logger primary.Logger) error {
	srvCfg := cfg.ServerConfig

	hist, closeHistory, err := newHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	m := metrics.New()
	recorders := []secondary.JobRecorder{m}
	if hist != nil {
		recorders = append(recorders, hist)
	}

	// bind first so the run directory carries the real port
	listener, err := net.Listen("tcp", srvCfg.Address())
	if err != nil {
		return fmt.Errorf("failed to start TCP server on %s: %w", srvCfg.Address(), err)
	}
	port := srvCfg.Port
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	ws, err := workspace.NewRunDir(srvCfg.BaseDir, port, time.Now())
	if err != nil {
		_ = listener.Close()
		return err
	}
	slot := jobslot.NewJobSlotService(ws, logger, jobslot.WithRecorder(recorders...))
	defer slot.Close()

	server, err := tcp.NewServer(logger, slot,
		tcp.WithListener(listener),
		tcp.WithMaxPayload(srvCfg.MaxPayload),
		tcp.WithReactorTick(srvCfg.ReactorTick),
		tcp.WithWriteTimeout(srvCfg.WriteTimeout),
		tcp.WithMetrics(m),
	)
	if err != nil {
		_ = listener.Close()
		return err
	}
	logger.Info("Job server ready", "port", server.Port(), "runDir", ws.Root(),
		"maxPayload", humanize.IBytes(uint64(srvCfg.MaxPayload)))

	var monitor *http2.Server
	if addr := cfg.HTTPConfig.Address; addr != "" && addr != "off" {
		provider := http2.ServiceProvider{
			Slot:    slot,
			Peers:   server,
			Metrics: m.Handler(),
		}
		if hist != nil {
			provider.History = hist
		}
		if cfg.JwtConfig.Secret != "" {
			provider.Tokens = crypto.NewJWTService(cfg.JwtConfig)
		}
		monitor = http2.NewServer(addr, "tcpb", provider, logger)
		if err := monitor.Init(); err != nil {
			stopServer(server, logger)
			return err
		}
		if err := monitor.Start(ctx); err != nil {
			stopServer(server, logger)
			return err
		}
	}

	server.Start()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx, slot, eng, logger)
	})

	<-gctx.Done()
	logger.Info("Shutting down server...")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if monitor != nil {
		if err := monitor.Stop(stopCtx); err != nil {
			logger.Error("Monitor shutdown failed", "error", err)
		}
	}
	if err := server.Stop(stopCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	slot.Close()

	err = g.Wait()
	logger.Info("successfully shutdown server")
	return err
}

// stopServer shuts the job server down when startup fails after it was bound
func stopServer(server *tcp.Server, logger primary.Logger) {
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}

// newHistory builds the configured history backend and starts its writer.
// The returned func stops the writer and closes the backend connection.
func newHistory(ctx context.Context, cfg *config.AppConfig, logger primary.Logger) (*history.HistoryService, func(), error) {
	hc := cfg.HistoryConfig
	var repo secondary.JobRecordRepository
	closeRepo := func() {}

	switch hc.Backend {
	case config.HistoryNone:
		return nil, func() {}, nil
	case config.HistoryMemory:
		repo = recordport.NewRecordRepository(hc.Capacity)
	case config.HistoryRedis:
		rc := cfg.RedisConfig
		redisClient := redis.NewClient(&redis.Options{
			Addr:     rc.Url,
			Password: rc.Password,
			DB:       rc.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Url, err)
		}
		repo = jobport.NewRecordRepository(redisClient, logger, rc.KeyPrefix, rc.Expiration)
		closeRepo = func() { _ = redisClient.Close() }
	case config.HistoryPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.PostgresConfig.Url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		pg := jobrepository.NewRecordRepository(db, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		repo = pg
		closeRepo = func() { _ = db.Close() }
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", hc.Backend)
	}

	svc := history.NewHistoryService(repo, logger,
		history.WithQueueSize(hc.QueueSize),
		history.WithRetention(hc.Retention),
		history.WithPruneInterval(hc.PruneInterval),
	)
	svc.Start(context.Background())
	logger.Info("Job history enabled", "backend", hc.Backend, "retention", hc.Retention)
	return svc, func() {
		svc.Stop()
		closeRepo()
	}, nil
}
