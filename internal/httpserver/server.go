// Package httpserver exposes the transaction core over HTTP: ledger
// operations, circuit breaker administration, retry policy decisions,
// and prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quayside/paycore/pkg/breaker"
	"github.com/quayside/paycore/pkg/ledger"
	"github.com/quayside/paycore/pkg/retry"
)

// Config carries the HTTP façade settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
}

// Run boots the HTTP façade and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, ledgerService *ledger.Service, registry *breaker.Registry, policy *retry.Policy) error {
	handler := &httpHandler{
		logger:        logger,
		ledgerService: ledgerService,
		registry:      registry,
		policy:        policy,
	}
	router := setupRouter(cfg, handler)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("paycore api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Origin", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	accounts := api.Group("/ledger/:tenant/:ownerType/:ownerID")
	accounts.POST("/initialize", handler.handleInitialize)
	accounts.POST("/credit", handler.handleCredit)
	accounts.POST("/debit", handler.handleDebit)
	accounts.POST("/adjust", handler.handleAdjust)
	accounts.GET("/balance", handler.handleBalance)
	accounts.GET("/transactions", handler.handleTransactions)

	api.GET("/breakers/:key", handler.handleBreakerState)
	api.POST("/breakers/:key/reset", handler.handleBreakerReset)

	api.GET("/retry/decision", handler.handleRetryDecision)

	return router
}
