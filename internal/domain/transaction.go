package domain

import "time"

// Action is the kind of mutation a TransactionRecord describes
type Action string

const (
	ActionPay      Action = "pay"      // Player to player transfer
	ActionDeposit  Action = "deposit"  // Coins credited from the game
	ActionWithdraw Action = "withdraw" // Coins paid out as banknotes
	ActionDaily    Action = "daily"    // Daily reward claim
)

// TransactionRecord Model, append-only audit row written after each committed mutation
type TransactionRecord struct {
	ID           string    `gorm:"column:id;primaryKey;type:char(36)" json:"id"`                 // Random record id, makes replays idempotent
	UUID         string    `gorm:"column:uuid;type:varchar(36);index;not null" json:"uuid"`      // Acting player
	Action       Action    `gorm:"column:action;type:varchar(16);not null" json:"action"`        // pay, deposit, withdraw, daily
	Amount       int64     `gorm:"column:amount;not null" json:"amount"`                         // Coins moved
	FromUUID     *string   `gorm:"column:from_uuid;type:varchar(36)" json:"from_uuid,omitempty"` // Sender, pay only
	ToUUID       *string   `gorm:"column:to_uuid;type:varchar(36)" json:"to_uuid,omitempty"`     // Recipient, pay only
	Denomination *int64    `gorm:"column:denomination" json:"denomination,omitempty"`            // Banknote value, withdraw only
	Count        *int64    `gorm:"column:count" json:"count,omitempty"`                          // Banknote count, withdraw only
	BalanceAfter int64     `gorm:"column:balance_after;not null" json:"balance_after"`           // Acting player's balance after commit
	CreatedAt    time.Time `gorm:"column:created_at;not null;index" json:"created_at"`           // Commit time
}

// TableName pins the audit table name
func (TransactionRecord) TableName() string {
	return "currency_transactions"
}
