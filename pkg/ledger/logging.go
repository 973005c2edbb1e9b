package ledger

import (
	"context"

	"go.uber.org/zap"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation     string
	Account       AccountKey
	Amount        AmountCents
	BalanceAfter  AmountCents
	TransactionID string
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithTransactionIDGenerator overrides transaction id generation.
func WithTransactionIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.idFn = generate
		}
	}
}

// ZapOperationLogger emits operation logs through a zap logger.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger wraps a zap logger as an OperationLogger.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	return &ZapOperationLogger{logger: logger}
}

// LogOperation writes one structured log line per ledger operation.
func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry OperationLog) {
	if operationLogger.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account", entry.Account.String()),
		zap.Int64("amount_cents", entry.Amount.Int64()),
		zap.Int64("balance_after_cents", entry.BalanceAfter.Int64()),
		zap.String("transaction_id", entry.TransactionID),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}

// MultiOperationLogger fans an operation log out to several sinks.
type MultiOperationLogger struct {
	sinks []OperationLogger
}

// NewMultiOperationLogger combines operation loggers.
func NewMultiOperationLogger(sinks ...OperationLogger) *MultiOperationLogger {
	return &MultiOperationLogger{sinks: sinks}
}

// LogOperation forwards the entry to every sink.
func (multi *MultiOperationLogger) LogOperation(ctx context.Context, entry OperationLog) {
	for _, sink := range multi.sinks {
		if sink != nil {
			sink.LogOperation(ctx, entry)
		}
	}
}
