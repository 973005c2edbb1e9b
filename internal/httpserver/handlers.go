package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quayside/paycore/pkg/breaker"
	"github.com/quayside/paycore/pkg/ledger"
	"github.com/quayside/paycore/pkg/retry"
)

type httpHandler struct {
	logger        *zap.Logger
	ledgerService *ledger.Service
	registry      *breaker.Registry
	policy        *retry.Policy
}

type mutationRequest struct {
	AmountCents   int64             `json:"amount_cents"`
	Type          string            `json:"type"`
	Notes         string            `json:"notes"`
	Metadata      map[string]string `json:"metadata"`
	AllowNegative bool              `json:"allow_negative"`
}

type adjustRequest struct {
	TargetCents int64             `json:"target_cents"`
	Notes       string            `json:"notes"`
	Metadata    map[string]string `json:"metadata"`
}

func (handler *httpHandler) handleInitialize(ctx *gin.Context) {
	key, ok := handler.accountKey(ctx)
	if !ok {
		return
	}
	if err := handler.ledgerService.Initialize(ctx.Request.Context(), key); err != nil {
		handler.internalError(ctx, "initialize", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (handler *httpHandler) handleCredit(ctx *gin.Context) {
	key, ok := handler.accountKey(ctx)
	if !ok {
		return
	}
	var request mutationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	transactionType, err := ledger.NewTransactionType(request.Type)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	result, err := handler.ledgerService.Credit(ctx.Request.Context(), key, ledger.AmountCents(request.AmountCents), transactionType, request.Notes, ledger.NewMetadata(request.Metadata))
	handler.writeResult(ctx, "credit", result, err)
}

func (handler *httpHandler) handleDebit(ctx *gin.Context) {
	key, ok := handler.accountKey(ctx)
	if !ok {
		return
	}
	var request mutationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	transactionType, err := ledger.NewTransactionType(request.Type)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	options := []ledger.DebitOption{}
	if request.AllowNegative {
		options = append(options, ledger.AllowNegativeBalance())
	}
	result, err := handler.ledgerService.Debit(ctx.Request.Context(), key, ledger.AmountCents(request.AmountCents), transactionType, request.Notes, ledger.NewMetadata(request.Metadata), options...)
	handler.writeResult(ctx, "debit", result, err)
}

func (handler *httpHandler) handleAdjust(ctx *gin.Context) {
	key, ok := handler.accountKey(ctx)
	if !ok {
		return
	}
	var request adjustRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}
	result, err := handler.ledgerService.AdjustTo(ctx.Request.Context(), key, ledger.AmountCents(request.TargetCents), request.Notes, ledger.NewMetadata(request.Metadata))
	handler.writeResult(ctx, "adjust", result, err)
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	key, ok := handler.accountKey(ctx)
	if !ok {
		return
	}
	balance, err := handler.ledgerService.GetBalance(ctx.Request.Context(), key)
	if err != nil {
		handler.accountError(ctx, "balance", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance_cents": balance.Int64()})
}

func (handler *httpHandler) handleTransactions(ctx *gin.Context) {
	key, ok := handler.accountKey(ctx)
	if !ok {
		return
	}
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", "limit must be an integer"))
			return
		}
		limit = parsed
	}
	transactions, err := handler.ledgerService.GetTransactions(ctx.Request.Context(), key, limit)
	if err != nil {
		handler.accountError(ctx, "transactions", err)
		return
	}
	payload := make([]gin.H, 0, len(transactions))
	for _, transaction := range transactions {
		payload = append(payload, gin.H{
			"transaction_id":      transaction.TransactionID,
			"amount_cents":        transaction.Amount.Int64(),
			"balance_after_cents": transaction.BalanceAfter.Int64(),
			"type":                transaction.Type.String(),
			"notes":               transaction.Notes,
			"metadata":            transaction.Metadata,
			"created_unix_utc":    transaction.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": payload})
}

func (handler *httpHandler) handleBreakerState(ctx *gin.Context) {
	key := ctx.Param("key")
	snapshot, exists := handler.registry.CircuitState(key)
	if !exists {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "no failures recorded for dependency"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"dependency":    key,
		"failure_count": snapshot.FailureCount,
		"state":         snapshot.State.String(),
		"reset_time":    snapshot.ResetTime,
		"open":          handler.registry.IsCircuitOpen(key),
	})
}

func (handler *httpHandler) handleBreakerReset(ctx *gin.Context) {
	key := ctx.Param("key")
	handler.registry.ResetCircuit(key)
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (handler *httpHandler) handleRetryDecision(ctx *gin.Context) {
	attempt := 0
	if raw := ctx.Query("attempt"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", "attempt must be an integer"))
			return
		}
		attempt = parsed
	}
	errorCode := ctx.Query("error_code")
	ctx.JSON(http.StatusOK, gin.H{
		"should_retry":  handler.policy.ShouldRetry(attempt, errorCode),
		"terminal":      retry.IsTerminalError(errorCode),
		"retryable":     retry.IsRetryableError(errorCode),
		"delay_ms":      handler.policy.RetryDelay(attempt).Milliseconds(),
		"next_retry_at": handler.policy.NextRetryTime(attempt),
	})
}

func (handler *httpHandler) accountKey(ctx *gin.Context) (ledger.AccountKey, bool) {
	tenantID, err := ledger.NewTenantID(ctx.Param("tenant"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return ledger.AccountKey{}, false
	}
	ownerType, err := ledger.NewOwnerType(ctx.Param("ownerType"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return ledger.AccountKey{}, false
	}
	ownerID, err := ledger.NewOwnerID(ctx.Param("ownerID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return ledger.AccountKey{}, false
	}
	key, err := ledger.NewAccountKey(tenantID, ownerType, ownerID)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return ledger.AccountKey{}, false
	}
	return key, true
}

func (handler *httpHandler) writeResult(ctx *gin.Context, operation string, result ledger.Result, err error) {
	if err != nil {
		handler.accountError(ctx, operation, err)
		return
	}
	payload := gin.H{
		"success":              result.Success,
		"amount_cents":         result.Amount.Int64(),
		"balance_before_cents": result.BalanceBefore.Int64(),
		"balance_after_cents":  result.BalanceAfter.Int64(),
		"transaction_id":       result.TransactionID,
	}
	if result.Err != nil {
		payload["error"] = result.Err.Error()
		ctx.JSON(http.StatusUnprocessableEntity, payload)
		return
	}
	ctx.JSON(http.StatusOK, payload)
}

func (handler *httpHandler) accountError(ctx *gin.Context, operation string, err error) {
	if isNotInitialized(err) {
		ctx.JSON(http.StatusNotFound, errorResponse("not_initialized", err.Error()))
		return
	}
	handler.internalError(ctx, operation, err)
}

func (handler *httpHandler) internalError(ctx *gin.Context, operation string, err error) {
	handler.logger.Error("ledger api failure", zap.String("operation", operation), zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "operation failed"))
}

func isNotInitialized(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotInitialized)
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}
