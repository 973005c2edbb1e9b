// Package memstore implements ledger.Store in process memory. It backs
// unit tests and the sqlite-free demo path; the durable system of
// record is gormstore/pgstore.
package memstore

import (
	"context"
	"sync"

	"github.com/quayside/paycore/pkg/ledger"
)

// Store is a mutex-guarded in-memory ledger store with the same
// retention semantics as the durable stores.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*account
}

type account struct {
	key     ledger.AccountKey
	balance ledger.AmountCents
	// transactions is ordered oldest-first; eviction trims the front.
	transactions []ledger.Transaction
}

// New returns an empty Store.
func New() *Store {
	return &Store{accounts: make(map[string]*account)}
}

// WithTx runs fn against the store. Individual operations are atomic;
// the ledger service serializes multi-step mutations per account key.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, store)
}

// CreateAccount creates the account at zero balance; creating an
// existing account is a no-op.
func (store *Store) CreateAccount(_ context.Context, key ledger.AccountKey) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, exists := store.accounts[key.String()]; exists {
		return nil
	}
	store.accounts[key.String()] = &account{key: key}
	return nil
}

// GetAccount returns the account record or ErrAccountNotInitialized.
func (store *Store) GetAccount(_ context.Context, key ledger.AccountKey) (ledger.AccountRecord, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, exists := store.accounts[key.String()]
	if !exists {
		return ledger.AccountRecord{}, ledger.WrapError("store", "account", "lookup", ledger.ErrAccountNotInitialized)
	}
	return ledger.AccountRecord{Key: record.key, Balance: record.balance}, nil
}

// SaveBalance overwrites the account balance.
func (store *Store) SaveBalance(_ context.Context, key ledger.AccountKey, balance ledger.AmountCents) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, exists := store.accounts[key.String()]
	if !exists {
		return ledger.WrapError("store", "account", "lookup", ledger.ErrAccountNotInitialized)
	}
	record.balance = balance
	return nil
}

// InsertTransaction appends to the audit window, evicting the oldest
// rows beyond ledger.TransactionHistoryLimit.
func (store *Store) InsertTransaction(_ context.Context, key ledger.AccountKey, transaction ledger.Transaction) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, exists := store.accounts[key.String()]
	if !exists {
		return ledger.WrapError("store", "account", "lookup", ledger.ErrAccountNotInitialized)
	}
	record.transactions = append(record.transactions, transaction)
	if overflow := len(record.transactions) - ledger.TransactionHistoryLimit; overflow > 0 {
		record.transactions = append([]ledger.Transaction(nil), record.transactions[overflow:]...)
	}
	return nil
}

// ListTransactions returns up to limit transactions, most recent first.
func (store *Store) ListTransactions(_ context.Context, key ledger.AccountKey, limit int) ([]ledger.Transaction, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	record, exists := store.accounts[key.String()]
	if !exists {
		return nil, ledger.WrapError("store", "account", "lookup", ledger.ErrAccountNotInitialized)
	}
	count := len(record.transactions)
	if limit > 0 && limit < count {
		count = limit
	}
	listed := make([]ledger.Transaction, 0, count)
	for index := len(record.transactions) - 1; index >= 0 && len(listed) < count; index-- {
		listed = append(listed, record.transactions[index])
	}
	return listed, nil
}
