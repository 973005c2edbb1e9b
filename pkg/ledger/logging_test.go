package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recorderLogger captures operation log entries for assertions.
type recorderLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (recorder *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.entries = append(recorder.entries, entry)
}

func (recorder *recorderLogger) recorded() []OperationLog {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]OperationLog(nil), recorder.entries...)
}

func TestOperationLoggerReceivesSuccess(test *testing.T) {
	test.Parallel()
	recorder := &recorderLogger{}
	store := newFakeStore()
	service, err := NewService(store, func() int64 { return 1700000000 }, WithOperationLogger(recorder))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	key := mustAccountKey(test)
	if err := service.Initialize(context.Background(), key); err != nil {
		test.Fatalf("initialize: %v", err)
	}

	result, err := service.Credit(context.Background(), key, 250, mustTransactionType(test), "load", nil)
	if err != nil {
		test.Fatalf("credit: %v", err)
	}

	entries := recorder.recorded()
	if len(entries) != 2 {
		test.Fatalf("expected initialize and credit entries, got %d", len(entries))
	}
	creditEntry := entries[1]
	if creditEntry.Operation != operationCredit {
		test.Fatalf("unexpected operation: %q", creditEntry.Operation)
	}
	if creditEntry.Status != operationStatusOK {
		test.Fatalf("unexpected status: %q", creditEntry.Status)
	}
	if creditEntry.TransactionID != result.TransactionID {
		test.Fatalf("transaction id mismatch: %q vs %q", creditEntry.TransactionID, result.TransactionID)
	}
	if creditEntry.BalanceAfter != 250 {
		test.Fatalf("unexpected balance after: %d", creditEntry.BalanceAfter.Int64())
	}
}

func TestOperationLoggerReceivesBusinessFailure(test *testing.T) {
	test.Parallel()
	recorder := &recorderLogger{}
	store := newFakeStore()
	service, err := NewService(store, func() int64 { return 1700000000 }, WithOperationLogger(recorder))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	key := mustAccountKey(test)
	if err := service.Initialize(context.Background(), key); err != nil {
		test.Fatalf("initialize: %v", err)
	}

	result, err := service.Debit(context.Background(), key, 100, mustTransactionType(test), "spend", nil)
	if err != nil {
		test.Fatalf("debit: %v", err)
	}
	if result.Success {
		test.Fatalf("expected insufficiency failure")
	}

	entries := recorder.recorded()
	last := entries[len(entries)-1]
	if last.Status != operationStatusError {
		test.Fatalf("business failure must log error status, got %q", last.Status)
	}
	if !errors.Is(last.Error, ErrInsufficientBalance) {
		test.Fatalf("expected ErrInsufficientBalance in log entry, got %v", last.Error)
	}
}

func TestMultiOperationLoggerFansOut(test *testing.T) {
	test.Parallel()
	first := &recorderLogger{}
	second := &recorderLogger{}
	multi := NewMultiOperationLogger(first, nil, second)

	multi.LogOperation(context.Background(), OperationLog{Operation: operationCredit, Status: operationStatusOK})

	if len(first.recorded()) != 1 || len(second.recorded()) != 1 {
		test.Fatalf("expected both sinks to receive the entry")
	}
}

func TestWithTransactionIDGenerator(test *testing.T) {
	test.Parallel()
	store := newFakeStore()
	service, err := NewService(store, func() int64 { return 1700000000 }, WithTransactionIDGenerator(func() string { return "txn-fixed" }))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	key := mustAccountKey(test)
	if err := service.Initialize(context.Background(), key); err != nil {
		test.Fatalf("initialize: %v", err)
	}

	result, err := service.Credit(context.Background(), key, 10, mustTransactionType(test), "load", nil)
	if err != nil {
		test.Fatalf("credit: %v", err)
	}
	if result.TransactionID != "txn-fixed" {
		test.Fatalf("expected injected transaction id, got %q", result.TransactionID)
	}
}
