// models/gorm_models.go
package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormRoom 房间持久化模型。Version 用于乐观并发控制。
type GormRoom struct {
	gorm.Model
	Code           string          `gorm:"uniqueIndex;size:12;not null"`
	Status         int             `gorm:"not null;default:0"`
	HostPlayerID   string          `gorm:"size:64;not null"`
	MaxPlayers     int             `gorm:"not null;default:6"`
	MinBetPerRound decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TableID        string          `gorm:"size:64"`
	Members        datatypes.JSON  `gorm:"type:jsonb"`
	Spectators     datatypes.JSON  `gorm:"type:jsonb"`
	Version        int64           `gorm:"not null;default:1"`
}

// GormPlayer 玩家持久化模型，余额为定点数
type GormPlayer struct {
	gorm.Model
	PlayerID string          `gorm:"uniqueIndex;size:64;not null"`
	Name     string          `gorm:"size:128"`
	Balance  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}
