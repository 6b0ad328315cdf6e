package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/meshnet-labs/routing-table/internal/config"
	"github.com/meshnet-labs/routing-table/internal/db"
	routinghttp "github.com/meshnet-labs/routing-table/internal/http"
	"github.com/meshnet-labs/routing-table/internal/metrics"
	"github.com/meshnet-labs/routing-table/internal/routing"
	"github.com/meshnet-labs/routing-table/internal/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: routingtabled <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the routing-table service")
	fmt.Println("  migrate   Run database migrations")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>   Path to configuration YAML file")
	fmt.Println("  --log-level <lvl> Override log level (debug, info, warn, error)")
}

func parseFlags(args []string) (configPath string, logLevel string) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case "--log-level":
			if i+1 < len(args) {
				logLevel = args[i+1]
				i++
			}
		}
	}
	return
}

func loadConfig(args []string) (*config.Config, *zap.Logger) {
	configPath, logLevelOverride := parseFlags(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if logLevelOverride != "" {
		cfg.Service.LogLevel = logLevelOverride
	}

	logger := initLogger(cfg.Service.LogLevel)
	return cfg, logger
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func migrationsDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(filepath.Dir(exe), "migrations")
}

// loadIdentity derives this node's PeerID/KeyPair from the configured
// hex seed, or mints a fresh one when none is set (dev/test). Deriving
// and holding key material is a node-process concern (spec.md §1 out of
// scope); internal/routing only ever receives a routing.KeyPair value.
func loadIdentity(seedHex string, logger *zap.Logger) routing.KeyPair {
	if seedHex == "" {
		kp, err := routing.GenerateKeyPair()
		if err != nil {
			logger.Fatal("failed to generate peer identity", zap.Error(err))
		}
		logger.Warn("no identity_seed_hex configured, generated an ephemeral identity",
			zap.Stringer("peer_id", kp.Peer))
		return kp
	}

	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		logger.Fatal("invalid identity_seed_hex", zap.Error(err))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	kp, err := routing.NewKeyPair(priv)
	if err != nil {
		logger.Fatal("failed to build peer identity", zap.Error(err))
	}
	return kp
}

func runServe() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	metrics.Register()

	self := loadIdentity(cfg.Service.IdentitySeedHex, logger)
	logger.Info("starting routingtabled",
		zap.String("instance_id", cfg.Service.InstanceID),
		zap.String("http_listen", cfg.Service.HTTPListen),
		zap.Stringer("peer_id", self.Peer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	persist := store.New(pool, logger.Named("store.postgres"))

	opts := routing.Options{
		RouteBackCapacity:            cfg.Routing.RouteBackCacheSize,
		RouteBackTTL:                 time.Duration(cfg.Routing.RouteBackEvictMs) * time.Millisecond,
		AccountCacheCapacity:         cfg.Routing.AnnounceAccountCacheSize,
		PingPongCacheCapacity:        cfg.Routing.PingPongCacheSize,
		RoundRobinNonceCacheCapacity: routing.RoundRobinNonceCacheSize,
	}

	table, err := routing.NewRoutingTable(ctx, self.Peer, persist, logger.Named("routing.table"), opts)
	if err != nil {
		logger.Fatal("failed to build routing table", zap.Error(err))
	}

	queue := routing.NewEdgeQueue()
	pipeline := routing.NewIngestPipeline(table, queue, logger.Named("routing.ingest"), routing.IngestConfig{
		BatchSize:      cfg.Routing.IngestBatchSize,
		FlushInterval:  time.Duration(cfg.Routing.IngestFlushIntervalMs) * time.Millisecond,
		UpdateInterval: time.Duration(cfg.Routing.UpdateIntervalMs) * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		pipeline.Run(ctx)
	}()

	httpServer := routinghttp.NewServer(cfg.Service.HTTPListen, pool, pipeline, logger.Named("http"))
	if err := httpServer.Start(); err != nil {
		logger.Fatal("failed to start HTTP server", zap.Error(err))
	}

	logger.Info("routing table service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownTimeout := time.Duration(cfg.Service.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()

	select {
	case <-done:
		logger.Info("ingest pipeline stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout reached, ingest pipeline may not have finished")
	}

	logger.Info("routingtabled stopped")
}

func runMigrate() {
	cfg, logger := loadConfig(os.Args[2:])
	defer logger.Sync()

	logger.Info("running migrations", zap.String("dsn", redactDSN(cfg.Postgres.DSN)))

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, migrationsDir(), logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	logger.Info("migrations complete")
}

func redactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		re := regexp.MustCompile(`password\s*=\s*\S+`)
		return re.ReplaceAllString(dsn, "password=***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
