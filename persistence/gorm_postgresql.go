// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/cardroom/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRoom{}, &models.GormPlayer{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var row models.GormRoom
	if err := p.db.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return roomFromRow(&row)
}

// Save inserts a new room (Version == 0) or applies a conditional update
// against the version the caller read. A stale version mutates nothing and
// returns ErrVersionConflict.
func (p *GormPostgreSQL) Save(ctx context.Context, room *models.Room) error {
	members, spectators, err := marshalLists(room)
	if err != nil {
		return err
	}

	if room.Version == 0 {
		row := models.GormRoom{
			Code:           room.Code,
			Status:         int(room.Status),
			HostPlayerID:   room.HostPlayerID,
			MaxPlayers:     room.MaxPlayers,
			MinBetPerRound: room.MinBetPerRound,
			TableID:        room.TableID,
			Members:        members,
			Spectators:     spectators,
			Version:        1,
		}
		if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
		room.Version = 1
		room.CreatedAt = row.CreatedAt
		room.UpdatedAt = row.UpdatedAt
		return nil
	}

	res := p.db.WithContext(ctx).Model(&models.GormRoom{}).
		Where("code = ? AND version = ?", room.Code, room.Version).
		Updates(map[string]interface{}{
			"status":            int(room.Status),
			"host_player_id":    room.HostPlayerID,
			"max_players":       room.MaxPlayers,
			"min_bet_per_round": room.MinBetPerRound,
			"table_id":          room.TableID,
			"members":           members,
			"spectators":        spectators,
			"version":           room.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	room.Version++
	return nil
}

func (p *GormPostgreSQL) Delete(ctx context.Context, room *models.Room) error {
	return p.db.WithContext(ctx).Where("code = ?", room.Code).Delete(&models.GormRoom{}).Error
}

func (p *GormPostgreSQL) ListActive(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error) {
	if len(statuses) == 0 {
		statuses = []models.RoomStatus{
			models.StatusWaitingForPlayers,
			models.StatusInProgress,
			models.StatusPaused,
		}
	}
	ints := make([]int, 0, len(statuses))
	for _, s := range statuses {
		ints = append(ints, int(s))
	}

	var rows []models.GormRoom
	if err := p.db.WithContext(ctx).Where("status IN ?", ints).Find(&rows).Error; err != nil {
		return nil, err
	}

	rooms := make([]*models.Room, 0, len(rows))
	for i := range rows {
		room, err := roomFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (p *GormPostgreSQL) GetPlayerBalance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	var row models.GormPlayer
	if err := p.db.WithContext(ctx).Where("player_id = ?", playerID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrPlayerNotFound
		}
		return decimal.Zero, err
	}
	return row.Balance, nil
}

func (p *GormPostgreSQL) SetPlayerBalance(ctx context.Context, playerID string, balance decimal.Decimal) error {
	res := p.db.WithContext(ctx).Model(&models.GormPlayer{}).
		Where("player_id = ?", playerID).
		Update("balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		row := models.GormPlayer{PlayerID: playerID, Balance: balance}
		return p.db.WithContext(ctx).Create(&row).Error
	}
	return nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func marshalLists(room *models.Room) ([]byte, []byte, error) {
	members, err := json.Marshal(room.Members)
	if err != nil {
		return nil, nil, err
	}
	spectators, err := json.Marshal(room.Spectators)
	if err != nil {
		return nil, nil, err
	}
	return members, spectators, nil
}

func roomFromRow(row *models.GormRoom) (*models.Room, error) {
	room := &models.Room{
		Code:           row.Code,
		Status:         models.RoomStatus(row.Status),
		HostPlayerID:   row.HostPlayerID,
		MaxPlayers:     row.MaxPlayers,
		MinBetPerRound: row.MinBetPerRound,
		TableID:        row.TableID,
		Version:        row.Version,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if len(row.Members) > 0 {
		if err := json.Unmarshal(row.Members, &room.Members); err != nil {
			return nil, err
		}
	}
	if len(row.Spectators) > 0 {
		if err := json.Unmarshal(row.Spectators, &room.Spectators); err != nil {
			return nil, err
		}
	}
	return room, nil
}
