package ledger

import (
	"context"
	"fmt"
	"strings"
)

// AmountCents is an integer currency (or quantity) amount in cents.
// Balances may go negative when a debit carries the allow-negative
// override; operation amounts are validated at the service boundary.
type AmountCents int64

// Int64 returns the raw cent value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// TenantID identifies the tenant owning an account.
type TenantID struct {
	value string
}

// OwnerType tags the kind of balance owner (gift card, cash drawer, ...).
type OwnerType struct {
	value string
}

// OwnerID identifies the owning entity within its type.
type OwnerID struct {
	value string
}

// AccountKey addresses one logical ledger account.
type AccountKey struct {
	tenantID  TenantID
	ownerType OwnerType
	ownerID   OwnerID
}

// TransactionType is the caller-supplied tag on a transaction.
type TransactionType struct {
	value string
}

// Metadata is a string-to-string annotation map, never nil on a
// stored transaction.
type Metadata map[string]string

// NewTenantID validates and normalizes a tenant id.
func NewTenantID(raw string) (TenantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TenantID{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	return TenantID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TenantID) String() string {
	return id.value
}

// NewOwnerType validates and normalizes an owner-type tag.
func NewOwnerType(raw string) (OwnerType, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OwnerType{}, fmt.Errorf("%w: empty value", ErrInvalidOwnerType)
	}
	return OwnerType{value: trimmed}, nil
}

// String returns the normalized tag.
func (ownerType OwnerType) String() string {
	return ownerType.value
}

// NewOwnerID validates and normalizes an owner id.
func NewOwnerID(raw string) (OwnerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return OwnerID{}, fmt.Errorf("%w: empty value", ErrInvalidOwnerID)
	}
	return OwnerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id OwnerID) String() string {
	return id.value
}

// NewAccountKey composes a validated account address.
func NewAccountKey(tenantID TenantID, ownerType OwnerType, ownerID OwnerID) (AccountKey, error) {
	if tenantID.value == "" || ownerType.value == "" || ownerID.value == "" {
		return AccountKey{}, fmt.Errorf("%w: unpopulated component", ErrInvalidAccountKey)
	}
	return AccountKey{tenantID: tenantID, ownerType: ownerType, ownerID: ownerID}, nil
}

// TenantID returns the tenant component.
func (key AccountKey) TenantID() TenantID {
	return key.tenantID
}

// OwnerType returns the owner-type component.
func (key AccountKey) OwnerType() OwnerType {
	return key.ownerType
}

// OwnerID returns the owner-id component.
func (key AccountKey) OwnerID() OwnerID {
	return key.ownerID
}

// String renders the key as tenant/ownerType/ownerID.
func (key AccountKey) String() string {
	return key.tenantID.value + accountKeyDelimiter + key.ownerType.value + accountKeyDelimiter + key.ownerID.value
}

// NewTransactionType validates and normalizes a transaction type tag.
func NewTransactionType(raw string) (TransactionType, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionType{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionType)
	}
	return TransactionType{value: trimmed}, nil
}

// String returns the normalized tag.
func (transactionType TransactionType) String() string {
	return transactionType.value
}

// NewMetadata copies the supplied map, defaulting to empty (never nil).
func NewMetadata(raw map[string]string) Metadata {
	metadata := make(Metadata, len(raw))
	for key, value := range raw {
		metadata[key] = value
	}
	return metadata
}

// Clone returns an independent copy of the metadata.
func (metadata Metadata) Clone() Metadata {
	return NewMetadata(metadata)
}

// Transaction is a single immutable line in an account's audit window.
type Transaction struct {
	TransactionID  string
	Amount         AmountCents
	BalanceAfter   AmountCents
	Type           TransactionType
	Notes          string
	Metadata       Metadata
	CreatedUnixUTC int64
}

// AccountRecord is the persisted state of one ledger account.
type AccountRecord struct {
	Key     AccountKey
	Balance AmountCents
}

// Result reports the outcome of a ledger mutation. Business failures
// (negative amount, insufficient balance, negative adjustment target)
// set Success false and Err; they are not returned as method errors.
type Result struct {
	Success       bool
	Amount        AmountCents
	BalanceBefore AmountCents
	BalanceAfter  AmountCents
	TransactionID string
	Err           error
}

// Store is the persistence contract used by Service. Transactions are
// retained newest-first up to TransactionHistoryLimit per account;
// the balance column, not the window, is the source of truth.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateAccount(ctx context.Context, key AccountKey) error
	GetAccount(ctx context.Context, key AccountKey) (AccountRecord, error)
	SaveBalance(ctx context.Context, key AccountKey, balance AmountCents) error
	InsertTransaction(ctx context.Context, key AccountKey, transaction Transaction) error
	ListTransactions(ctx context.Context, key AccountKey, limit int) ([]Transaction, error)
}
