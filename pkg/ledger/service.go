package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Service contains the domain logic over a Store. Mutations addressed
// to the same account key serialize on a sharded lock table; distinct
// accounts proceed in parallel.
type Service struct {
	store  Store
	nowFn  func() int64
	idFn   func() string
	logger OperationLogger
	locks  [lockShardCount]sync.Mutex
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// DebitOption adjusts debit behavior.
type DebitOption func(*debitSettings)

type debitSettings struct {
	allowNegative bool
}

// AllowNegativeBalance permits a debit to drive the balance below zero.
func AllowNegativeBalance() DebitOption {
	return func(settings *debitSettings) {
		settings.allowNegative = true
	}
}

// Initialize creates the account at zero balance. Re-initializing an
// existing account is a no-op and never resets its balance.
func (service *Service) Initialize(ctx context.Context, key AccountKey) error {
	unlock := service.lockAccount(key)
	defer unlock()

	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		return transactionStore.CreateAccount(ctx, key)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationInitialize,
		Account:   key,
		Error:     operationError,
	})
	return operationError
}

// Credit appends a positive (or zero) amount to the account balance.
func (service *Service) Credit(ctx context.Context, key AccountKey, amount AmountCents, transactionType TransactionType, notes string, metadata Metadata) (Result, error) {
	unlock := service.lockAccount(key)
	defer unlock()

	var result Result
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetAccount(ctx, key)
		if err != nil {
			return err
		}
		if amount < 0 {
			result = businessFailure(record.Balance, fmt.Errorf("%w: credit amount %d", ErrNegativeAmount, amount.Int64()))
			return nil
		}
		applied, err := service.applyTransaction(ctx, transactionStore, record, amount, transactionType, notes, metadata)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	service.logResult(ctx, operationCredit, key, amount, result, operationError)
	return result, operationError
}

// Debit subtracts amount from the balance. Without an override the
// debit fails when amount exceeds the balance; the override is either
// the AllowNegativeBalance option or metadata[MetadataKeyAllowNegative]
// set to "true".
func (service *Service) Debit(ctx context.Context, key AccountKey, amount AmountCents, transactionType TransactionType, notes string, metadata Metadata, options ...DebitOption) (Result, error) {
	settings := debitSettings{}
	for _, option := range options {
		if option != nil {
			option(&settings)
		}
	}
	if metadata[MetadataKeyAllowNegative] == metadataValueTrue {
		settings.allowNegative = true
	}

	unlock := service.lockAccount(key)
	defer unlock()

	var result Result
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetAccount(ctx, key)
		if err != nil {
			return err
		}
		if amount < 0 {
			result = businessFailure(record.Balance, fmt.Errorf("%w: debit amount %d", ErrNegativeAmount, amount.Int64()))
			return nil
		}
		if !settings.allowNegative && amount > record.Balance {
			result = businessFailure(record.Balance, fmt.Errorf("%w: available %d, requested %d", ErrInsufficientBalance, record.Balance.Int64(), amount.Int64()))
			return nil
		}
		applied, err := service.applyTransaction(ctx, transactionStore, record, -amount, transactionType, notes, metadata)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	service.logResult(ctx, operationDebit, key, amount, result, operationError)
	return result, operationError
}

// AdjustTo sets the balance to targetBalance exactly, recording the
// delta (possibly zero, used for verification entries).
func (service *Service) AdjustTo(ctx context.Context, key AccountKey, targetBalance AmountCents, notes string, metadata Metadata) (Result, error) {
	unlock := service.lockAccount(key)
	defer unlock()

	var result Result
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		record, err := transactionStore.GetAccount(ctx, key)
		if err != nil {
			return err
		}
		if targetBalance < 0 {
			result = businessFailure(record.Balance, fmt.Errorf("%w: target %d", ErrNegativeAdjustmentTarget, targetBalance.Int64()))
			return nil
		}
		delta := targetBalance - record.Balance
		applied, err := service.applyTransaction(ctx, transactionStore, record, delta, adjustmentTransactionType, notes, metadata)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	service.logResult(ctx, operationAdjustTo, key, targetBalance, result, operationError)
	return result, operationError
}

// GetBalance returns the current balance.
func (service *Service) GetBalance(ctx context.Context, key AccountKey) (AmountCents, error) {
	record, err := service.store.GetAccount(ctx, key)
	if err != nil {
		return 0, err
	}
	return record.Balance, nil
}

// HasSufficientBalance reports whether balance >= amount. A zero
// amount is always sufficient.
func (service *Service) HasSufficientBalance(ctx context.Context, key AccountKey, amount AmountCents) (bool, error) {
	record, err := service.store.GetAccount(ctx, key)
	if err != nil {
		return false, err
	}
	return record.Balance >= amount, nil
}

// GetTransactions lists retained transactions, most recent first. A
// non-positive limit returns the full retained window.
func (service *Service) GetTransactions(ctx context.Context, key AccountKey, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > TransactionHistoryLimit {
		limit = TransactionHistoryLimit
	}
	return service.store.ListTransactions(ctx, key, limit)
}

func (service *Service) applyTransaction(ctx context.Context, transactionStore Store, record AccountRecord, amount AmountCents, transactionType TransactionType, notes string, metadata Metadata) (Result, error) {
	balanceAfter := record.Balance + amount
	transaction := Transaction{
		TransactionID:  service.idFn(),
		Amount:         amount,
		BalanceAfter:   balanceAfter,
		Type:           transactionType,
		Notes:          notes,
		Metadata:       metadata.Clone(),
		CreatedUnixUTC: service.nowFn(),
	}
	if err := transactionStore.SaveBalance(ctx, record.Key, balanceAfter); err != nil {
		return Result{}, err
	}
	if err := transactionStore.InsertTransaction(ctx, record.Key, transaction); err != nil {
		return Result{}, err
	}
	return Result{
		Success:       true,
		Amount:        amount,
		BalanceBefore: record.Balance,
		BalanceAfter:  balanceAfter,
		TransactionID: transaction.TransactionID,
	}, nil
}

func (service *Service) lockAccount(key AccountKey) func() {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key.String()))
	shard := &service.locks[hasher.Sum32()%lockShardCount]
	shard.Lock()
	return shard.Unlock
}

func (service *Service) logResult(ctx context.Context, operation string, key AccountKey, amount AmountCents, result Result, operationError error) {
	entry := OperationLog{
		Operation:     operation,
		Account:       key,
		Amount:        amount,
		BalanceAfter:  result.BalanceAfter,
		TransactionID: result.TransactionID,
		Error:         operationError,
	}
	if operationError == nil && result.Err != nil {
		entry.Error = result.Err
	}
	service.logOperation(ctx, entry)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func businessFailure(balance AmountCents, err error) Result {
	return Result{
		Success:       false,
		BalanceBefore: balance,
		BalanceAfter:  balance,
		Err:           err,
	}
}
