// Package pgstore implements ledger.Store directly on a pgx pool for
// deployments that bypass GORM.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quayside/paycore/pkg/ledger"
)

const (
	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCreate         = "create"
	errorCodeEvict          = "evict"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeLookup         = "lookup"
	errorCodeMigrate        = "migrate"
	errorCodeSaveBalance    = "save_balance"

	sqlCreateAccount = `
		insert into ledger_accounts(tenant_id, owner_type, owner_id)
		values($1, $2, $3)
		on conflict (tenant_id, owner_type, owner_id) do nothing
	`

	sqlSelectAccountForUpdate = `
		select account_id::text, balance_cents from ledger_accounts
		where tenant_id = $1 and owner_type = $2 and owner_id = $3
		for update
	`

	sqlSaveBalance = `
		update ledger_accounts
		set balance_cents = $4, updated_at = now()
		where tenant_id = $1 and owner_type = $2 and owner_id = $3
	`

	sqlInsertTransaction = `
		insert into ledger_transactions(
			transaction_id, account_id, amount_cents, balance_after_cents, type, notes, metadata, created_at
		)
		values(
			$1, $2, $3, $4, $5, $6,
			coalesce(nullif($7,''),'{}')::jsonb,
			to_timestamp($8)
		)
	`

	sqlEvictBeyondWindow = `
		delete from ledger_transactions
		where account_id = $1
		and seq < coalesce((
			select min(seq) from (
				select seq from ledger_transactions
				where account_id = $1
				order by seq desc
				limit $2
			) newest
		), 0)
	`

	sqlListTransactions = `
		select
			transaction_id::text,
			amount_cents,
			balance_after_cents,
			type,
			notes,
			coalesce(metadata::text,'{}'),
			extract(epoch from created_at)::bigint
		from ledger_transactions
		where account_id = $1
		order by seq desc
		limit $2
	`

	sqlSchema = `
		create table if not exists ledger_accounts (
			account_id uuid primary key default gen_random_uuid(),
			tenant_id text not null,
			owner_type text not null,
			owner_id text not null,
			balance_cents bigint not null default 0,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now(),
			unique (tenant_id, owner_type, owner_id)
		);
		create table if not exists ledger_transactions (
			seq bigserial primary key,
			transaction_id uuid not null unique,
			account_id uuid not null references ledger_accounts(account_id),
			amount_cents bigint not null,
			balance_after_cents bigint not null,
			type text not null,
			notes text not null default '',
			metadata jsonb not null default '{}'::jsonb,
			created_at timestamptz not null
		);
		create index if not exists idx_ledger_tx_account_seq
			on ledger_transactions(account_id, seq desc);
	`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ops struct {
	q querier
}

// Store implements ledger.Store using a pgx connection pool (autocommit).
type Store struct {
	ops
	pool *pgxpool.Pool
}

// TxStore implements ledger.Store for an active transaction.
type TxStore struct {
	ops
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{ops: ops{q: pool}, pool: pool}
}

// Migrate creates the ledger tables when absent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, sqlSchema); err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a database transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{ops: ops{q: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx on an active transaction reuses that transaction.
func (transactionStore *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, transactionStore)
}

func (store ops) CreateAccount(ctx context.Context, key ledger.AccountKey) error {
	_, err := store.q.Exec(ctx, sqlCreateAccount, key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String())
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store ops) GetAccount(ctx context.Context, key ledger.AccountKey) (ledger.AccountRecord, error) {
	var (
		accountID    string
		balanceCents int64
	)
	err := store.q.QueryRow(ctx, sqlSelectAccountForUpdate, key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String()).
		Scan(&accountID, &balanceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.AccountRecord{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotInitialized)
	}
	if err != nil {
		return ledger.AccountRecord{}, wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return ledger.AccountRecord{Key: key, Balance: ledger.AmountCents(balanceCents)}, nil
}

func (store ops) SaveBalance(ctx context.Context, key ledger.AccountKey, balance ledger.AmountCents) error {
	tag, err := store.q.Exec(ctx, sqlSaveBalance, key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String(), balance.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeSaveBalance, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotInitialized)
	}
	return nil
}

func (store ops) InsertTransaction(ctx context.Context, key ledger.AccountKey, transaction ledger.Transaction) error {
	accountID, err := store.accountID(ctx, key)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(transaction.Metadata)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	_, err = store.q.Exec(ctx, sqlInsertTransaction,
		transaction.TransactionID,
		accountID,
		transaction.Amount.Int64(),
		transaction.BalanceAfter.Int64(),
		transaction.Type.String(),
		transaction.Notes,
		string(metadata),
		transaction.CreatedUnixUTC,
	)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	if _, err := store.q.Exec(ctx, sqlEvictBeyondWindow, accountID, ledger.TransactionHistoryLimit); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeEvict, err)
	}
	return nil
}

func (store ops) ListTransactions(ctx context.Context, key ledger.AccountKey, limit int) ([]ledger.Transaction, error) {
	accountID, err := store.accountID(ctx, key)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > ledger.TransactionHistoryLimit {
		limit = ledger.TransactionHistoryLimit
	}
	rows, err := store.q.Query(ctx, sqlListTransactions, accountID, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	defer rows.Close()

	transactions := make([]ledger.Transaction, 0, limit)
	for rows.Next() {
		var (
			transactionID     string
			amountCents       int64
			balanceAfterCents int64
			typeTag           string
			notes             string
			metadataRaw       string
			createdUnixUTC    int64
		)
		if err := rows.Scan(&transactionID, &amountCents, &balanceAfterCents, &typeTag, &notes, &metadataRaw, &createdUnixUTC); err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
		}
		transactionType, err := ledger.NewTransactionType(typeTag)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		metadata := map[string]string{}
		if err := json.Unmarshal([]byte(metadataRaw), &metadata); err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, ledger.Transaction{
			TransactionID:  transactionID,
			Amount:         ledger.AmountCents(amountCents),
			BalanceAfter:   ledger.AmountCents(balanceAfterCents),
			Type:           transactionType,
			Notes:          notes,
			Metadata:       ledger.NewMetadata(metadata),
			CreatedUnixUTC: createdUnixUTC,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return transactions, nil
}

func (store ops) accountID(ctx context.Context, key ledger.AccountKey) (string, error) {
	var accountID string
	err := store.q.QueryRow(ctx,
		`select account_id::text from ledger_accounts where tenant_id = $1 and owner_type = $2 and owner_id = $3`,
		key.TenantID().String(), key.OwnerType().String(), key.OwnerID().String()).
		Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", wrapStoreError(errorSubjectAccount, errorCodeLookup, ledger.ErrAccountNotInitialized)
	}
	if err != nil {
		return "", wrapStoreError(errorSubjectAccount, errorCodeLookup, err)
	}
	return accountID, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}
