package domain

// Account Model, one row per player
type Account struct {
	UUID    string `gorm:"column:uuid;primaryKey;type:varchar(36)" json:"uuid"`                                          // Player identifier
	Name    string `gorm:"column:name;type:varchar(64);not null" json:"name"`                                            // Display name
	Balance int64  `gorm:"column:balance;not null;default:0;check:chk_balance_non_negative,balance >= 0" json:"balance"` // Never negative
}

// TableName pins the table name used by the game server
func (Account) TableName() string {
	return "user_funds"
}

// LeaderboardEntry is one row of the top balances ranking
type LeaderboardEntry struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}
