package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Account represents the ledger_accounts table. The balance column is
// the source of truth; the transaction window is an audit trail.
type Account struct {
	AccountID    string    `gorm:"type:uuid;primaryKey"`
	TenantID     string    `gorm:"not null;index:idx_accounts_tenant_owner,unique,priority:1"`
	OwnerType    string    `gorm:"not null;index:idx_accounts_tenant_owner,unique,priority:2"`
	OwnerID      string    `gorm:"not null;index:idx_accounts_tenant_owner,unique,priority:3"`
	BalanceCents int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "ledger_accounts" }

func (account *Account) BeforeCreate(tx *gorm.DB) error {
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	return nil
}

// LedgerTransaction mirrors the ledger_transactions table. Seq orders
// rows for window eviction independently of wall-clock collisions.
type LedgerTransaction struct {
	Seq               int64          `gorm:"primaryKey;autoIncrement"`
	TransactionID     string         `gorm:"type:uuid;not null;uniqueIndex"`
	AccountID         string         `gorm:"type:uuid;not null;index:idx_ledger_tx_account_seq,priority:1"`
	AmountCents       int64          `gorm:"not null"`
	BalanceAfterCents int64          `gorm:"not null"`
	Type              string         `gorm:"not null"`
	Notes             string         `gorm:""`
	Metadata          datatypes.JSON `gorm:"not null"`
	CreatedAt         time.Time      `gorm:"not null"`
}

func (LedgerTransaction) TableName() string { return "ledger_transactions" }
