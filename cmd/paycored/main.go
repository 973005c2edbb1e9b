package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/quayside/paycore/internal/httpserver"
	"github.com/quayside/paycore/internal/metrics"
	"github.com/quayside/paycore/internal/store/gormstore"
	"github.com/quayside/paycore/internal/store/pgstore"
	"github.com/quayside/paycore/pkg/breaker"
	"github.com/quayside/paycore/pkg/ledger"
	"github.com/quayside/paycore/pkg/retry"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagStoreBackend     = "store"
	flagBreakerThreshold = "breaker-failure-threshold"
	flagBreakerOpenFor   = "breaker-open-duration"

	configKeyDatabaseURL      = "database_url"
	configKeyListenAddr       = "listen_addr"
	configKeyStoreBackend     = "store_backend"
	configKeyBreakerThreshold = "breaker_failure_threshold"
	configKeyBreakerOpenFor   = "breaker_open_duration"

	defaultDatabaseURL = "sqlite:///tmp/paycore.db"
	defaultListenAddr  = ":8080"

	storeBackendGorm = "gorm"
	storeBackendPgx  = "pgx"
)

type runtimeConfig struct {
	DatabaseURL      string
	ListenAddr       string
	StoreBackend     string
	BreakerThreshold int
	BreakerOpenFor   time.Duration
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "paycored: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "paycored",
		Short:         "Transaction-integrity core: ledger, circuit breakers, retry policy",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "Database connection string (sqlite:// or postgres://)")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagStoreBackend, storeBackendGorm, "Ledger store backend: gorm or pgx (postgres only)")
	cmd.Flags().Int(flagBreakerThreshold, 5, "Consecutive failures before a circuit opens")
	cmd.Flags().Duration(flagBreakerOpenFor, 30*time.Second, "Default open window for a tripped circuit")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL:      "DATABASE_URL",
		configKeyListenAddr:       "HTTP_LISTEN_ADDR",
		configKeyStoreBackend:     "STORE_BACKEND",
		configKeyBreakerThreshold: "BREAKER_FAILURE_THRESHOLD",
		configKeyBreakerOpenFor:   "BREAKER_OPEN_DURATION",
	}
	for configKey, envName := range bindings {
		if err := viper.BindEnv(configKey, envName); err != nil {
			return err
		}
	}

	flags := map[string]string{
		configKeyDatabaseURL:      flagDatabaseURL,
		configKeyListenAddr:       flagListenAddr,
		configKeyStoreBackend:     flagStoreBackend,
		configKeyBreakerThreshold: flagBreakerThreshold,
		configKeyBreakerOpenFor:   flagBreakerOpenFor,
	}
	for configKey, flagName := range flags {
		if err := viper.BindPFlag(configKey, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.StoreBackend = viper.GetString(configKeyStoreBackend)
	cfg.BreakerThreshold = viper.GetInt(configKeyBreakerThreshold)
	cfg.BreakerOpenFor = viper.GetDuration(configKeyBreakerOpenFor)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database url is required")
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen addr is required")
	}
	if cfg.StoreBackend != storeBackendGorm && cfg.StoreBackend != storeBackendPgx {
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	if cfg.StoreBackend == storeBackendPgx && !isPostgresURL(cfg.DatabaseURL) {
		return fmt.Errorf("pgx store backend requires a postgres database url")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer func() { _ = cleanup() }()

	clock := func() int64 { return time.Now().UTC().Unix() }
	operationLogger := ledger.NewMultiOperationLogger(
		ledger.NewZapOperationLogger(logger),
		metrics.OperationCounter{},
	)
	ledgerService, err := ledger.NewService(store, clock, ledger.WithOperationLogger(operationLogger))
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}

	registry := breaker.NewRegistry(
		breaker.WithFailureThreshold(cfg.BreakerThreshold),
		breaker.WithOpenDuration(cfg.BreakerOpenFor),
		breaker.WithStateChangeHook(metrics.BreakerStateHook()),
	)
	policy := retry.NewPolicy()

	return httpserver.Run(ctx, httpserver.Config{ListenAddr: cfg.ListenAddr}, logger, ledgerService, registry, policy)
}

func openStore(ctx context.Context, cfg *runtimeConfig) (ledger.Store, func() error, error) {
	if cfg.StoreBackend == storeBackendPgx {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		cleanup := func() error {
			pool.Close()
			return nil
		}
		return pgstore.New(pool), cleanup, nil
	}

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := gormstore.Migrate(gormDB); err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("auto migrate: %w", err)
	}
	return gormstore.New(gormDB), cleanup, nil
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	var db *gorm.DB
	var err error
	switch {
	case isPostgresURL(dsn):
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		sqlitePath, pathErr := resolveSQLitePath(dsn)
		if pathErr != nil {
			return nil, nil, pathErr
		}
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func resolveSQLitePath(dsn string) (string, error) {
	path := dsn
	if strings.HasPrefix(dsn, "sqlite://") {
		parsed, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path = parsed.Path
		if path == "" {
			path = parsed.Host
		}
	}
	if path == "" || path == "/" {
		path = "paycore.db"
	}
	return normalizeSQLitePath(path)
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
