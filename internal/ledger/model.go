package ledger

import (
	"encoding/json"
	"time"
)

// Role distinguishes the single system vault account from agent accounts.
type Role string

// Account roles.
const (
	RoleSystem Role = "system"
	RoleAgent  Role = "agent"
)

// Account is a ledger participant. Accounts are never deleted.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Kind is the direction of a transaction.
type Kind string

// Transaction kinds.
const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// Transaction is one immutable ledger entry. A credit carries ToID and
// increases that account's balance; a debit carries FromID and decreases it.
// Corrections and reversals are new transactions referencing the original
// through the memo conventions in classify.go, never in-place edits.
type Transaction struct {
	ID       string          `json:"id"`
	Kind     Kind            `json:"kind"`
	Amount   int64           `json:"amount"`
	Memo     string          `json:"memo,omitempty"`
	Category Category        `json:"category,omitempty"`
	Date     time.Time       `json:"date"`
	FromID   string          `json:"from_id,omitempty"`
	ToID     string          `json:"to_id,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// Notification is one entry of the bounded human-readable event feed.
type Notification struct {
	ID   string    `json:"id"`
	When time.Time `json:"when"`
	Text string    `json:"text"`
}

// Goal is a per-agent savings goal.
type Goal struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Target    int64     `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// Doc pairs the account list with the transaction log; the two always travel
// together under the ledger key.
type Doc struct {
	Accounts     []Account     `json:"accounts"`
	Transactions []Transaction `json:"transactions"`
}

// Logical keys of the remote snapshot consumed by this application.
const (
	KeyLedger        = "ledger"
	KeyStock         = "stock"
	KeyPINs          = "pins"
	KeyGoals         = "goals"
	KeyNotifications = "notifications"
	KeyEpochs        = "epochs"
	KeyMetricEpochs  = "metric_epochs"
)

// Named metric series with independent reset epochs.
const (
	MetricEarned30d = "earned30d"
	MetricSpent30d  = "spent30d"
)

// NotificationCap bounds the feed; the oldest entries beyond it are dropped.
const NotificationCap = 200
