package domain

import "time"

// DailyRewardClaim tracks the last successful daily claim of a player
type DailyRewardClaim struct {
	UUID        string    `gorm:"column:uuid;primaryKey;type:varchar(36)"`
	LastClaimAt time.Time `gorm:"column:last_claim_at;not null"`
}

func (DailyRewardClaim) TableName() string {
	return "daily_rewards"
}

// MobLimitFlag records the day a player hit the mob drop cap
type MobLimitFlag struct {
	UUID        string    `gorm:"column:uuid;primaryKey;type:varchar(36)"`
	DateReached time.Time `gorm:"column:date_reached;type:date;not null"`
}

func (MobLimitFlag) TableName() string {
	return "mob_limit_reached"
}
