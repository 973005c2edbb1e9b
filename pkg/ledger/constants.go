package ledger

// TransactionHistoryLimit bounds the retained audit window per account.
// Older transactions are evicted; the balance column keeps their effect.
const TransactionHistoryLimit = 100

// MetadataKeyAllowNegative is the legacy metadata override that lets a
// debit drive the balance negative. New callers should prefer the typed
// AllowNegativeBalance option.
const MetadataKeyAllowNegative = "allowNegative"

const (
	operationInitialize = "initialize"
	operationCredit     = "credit"
	operationDebit      = "debit"
	operationAdjustTo   = "adjust_to"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	accountKeyDelimiter = "/"
	metadataValueTrue   = "true"
	lockShardCount      = 64
)

// adjustmentTransactionType tags entries written by AdjustTo.
var adjustmentTransactionType = TransactionType{value: "adjustment"}
