// Package gormstore persists the ledger through GORM on postgres or
// sqlite. It is the durable system of record for balances.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quayside/paycore/pkg/ledger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultMetadataJSON = "{}"

	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectTransaction = "transaction"
	errorCodeCreate         = "create"
	errorCodeEvict          = "evict"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLookup         = "lookup"
	errorCodeSaveBalance    = "save_balance"
)

// Store implements ledger.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Account{}, &LedgerTransaction{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// CreateAccount creates the account row at zero balance; an existing
// row is left untouched so re-initialization never resets a balance.
func (store *Store) CreateAccount(ctx context.Context, key ledger.AccountKey) error {
	account := Account{
		TenantID:  key.TenantID().String(),
		OwnerType: key.OwnerType().String(),
		OwnerID:   key.OwnerID().String(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "owner_type"}, {Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(&account).Error
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

// GetAccount loads the account row with a row lock so mutations in the
// surrounding transaction see a stable balance.
func (store *Store) GetAccount(ctx context.Context, key ledger.AccountKey) (ledger.AccountRecord, error) {
	account, err := store.lockAccount(ctx, key)
	if err != nil {
		return ledger.AccountRecord{}, err
	}
	return ledger.AccountRecord{Key: key, Balance: ledger.AmountCents(account.BalanceCents)}, nil
}

// SaveBalance overwrites the account balance column.
func (store *Store) SaveBalance(ctx context.Context, key ledger.AccountKey, balance ledger.AmountCents) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("tenant_id = ? AND owner_type = ? AND owner_id = ?", key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String()).
		Update("balance_cents", balance.Int64())
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeSaveBalance, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotInitialized)
	}
	return nil
}

// InsertTransaction appends a row and evicts anything older than the
// newest ledger.TransactionHistoryLimit rows for the account.
func (store *Store) InsertTransaction(ctx context.Context, key ledger.AccountKey, transaction ledger.Transaction) error {
	account, err := store.lockAccount(ctx, key)
	if err != nil {
		return err
	}
	row := LedgerTransaction{
		TransactionID:     transaction.TransactionID,
		AccountID:         account.AccountID,
		AmountCents:       transaction.Amount.Int64(),
		BalanceAfterCents: transaction.BalanceAfter.Int64(),
		Type:              transaction.Type.String(),
		Notes:             transaction.Notes,
		Metadata:          metadataJSON(transaction.Metadata),
		CreatedAt:         time.Unix(transaction.CreatedUnixUTC, 0).UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return store.evictBeyondWindow(ctx, account.AccountID)
}

// ListTransactions returns up to limit rows, most recent first.
func (store *Store) ListTransactions(ctx context.Context, key ledger.AccountKey, limit int) ([]ledger.Transaction, error) {
	account, err := store.findAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > ledger.TransactionHistoryLimit {
		limit = ledger.TransactionHistoryLimit
	}
	var rows []LedgerTransaction
	err = store.db.WithContext(ctx).
		Where("account_id = ?", account.AccountID).
		Order("seq DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *Store) lockAccount(ctx context.Context, key ledger.AccountKey) (Account, error) {
	var account Account
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND owner_type = ? AND owner_id = ?", key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String()).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotInitialized)
	}
	if err != nil {
		return Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return account, nil
}

func (store *Store) findAccount(ctx context.Context, key ledger.AccountKey) (Account, error) {
	var account Account
	err := store.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_type = ? AND owner_id = ?", key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String()).
		Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotInitialized)
	}
	if err != nil {
		return Account{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return account, nil
}

func (store *Store) evictBeyondWindow(ctx context.Context, accountID string) error {
	var cutoff LedgerTransaction
	err := store.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("seq DESC").
		Offset(ledger.TransactionHistoryLimit - 1).
		Take(&cutoff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeEvict, err)
	}
	err = store.db.WithContext(ctx).
		Where("account_id = ? AND seq < ?", accountID, cutoff.Seq).
		Delete(&LedgerTransaction{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeEvict, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func mapTransaction(row LedgerTransaction) (ledger.Transaction, error) {
	transactionType, err := ledger.NewTransactionType(row.Type)
	if err != nil {
		return ledger.Transaction{}, err
	}
	metadata := map[string]string{}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return ledger.Transaction{}, err
		}
	}
	return ledger.Transaction{
		TransactionID:  row.TransactionID,
		Amount:         ledger.AmountCents(row.AmountCents),
		BalanceAfter:   ledger.AmountCents(row.BalanceAfterCents),
		Type:           transactionType,
		Notes:          row.Notes,
		Metadata:       ledger.NewMetadata(metadata),
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func metadataJSON(metadata ledger.Metadata) datatypes.JSON {
	if len(metadata) == 0 {
		return datatypes.JSON(defaultMetadataJSON)
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return datatypes.JSON(defaultMetadataJSON)
	}
	return datatypes.JSON(encoded)
}
