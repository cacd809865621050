// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/cardroom/models"
)

// PostgreSQL 不经过ORM的原生实现，与GORM实现可互换
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgreSQL{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id SERIAL PRIMARY KEY,
			code VARCHAR(12) UNIQUE NOT NULL,
			status INT NOT NULL DEFAULT 0,
			host_player_id VARCHAR(64) NOT NULL,
			max_players INT NOT NULL DEFAULT 6,
			min_bet_per_round DECIMAL(18,2) NOT NULL DEFAULT 0,
			table_id VARCHAR(64),
			members JSONB,
			spectators JSONB,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id SERIAL PRIMARY KEY,
			player_id VARCHAR(64) UNIQUE NOT NULL,
			name VARCHAR(128),
			balance DECIMAL(18,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const roomColumns = `code, status, host_player_id, max_players, min_bet_per_round,
	COALESCE(table_id, ''), COALESCE(members, '[]'), COALESCE(spectators, '[]'),
	version, created_at, updated_at`

func (p *PostgreSQL) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE code = $1`, code)
	return scanRoom(row)
}

func (p *PostgreSQL) Save(ctx context.Context, room *models.Room) error {
	members, spectators, err := marshalLists(room)
	if err != nil {
		return err
	}

	if room.Version == 0 {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO rooms (code, status, host_player_id, max_players,
				min_bet_per_round, table_id, members, spectators, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)`,
			room.Code, int(room.Status), room.HostPlayerID, room.MaxPlayers,
			room.MinBetPerRound, room.TableID, members, spectators)
		if err != nil {
			return err
		}
		room.Version = 1
		return nil
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE rooms SET status = $1, host_player_id = $2, max_players = $3,
			min_bet_per_round = $4, table_id = $5, members = $6, spectators = $7,
			version = version + 1, updated_at = NOW()
		 WHERE code = $8 AND version = $9`,
		int(room.Status), room.HostPlayerID, room.MaxPlayers,
		room.MinBetPerRound, room.TableID, members, spectators,
		room.Code, room.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	room.Version++
	return nil
}

func (p *PostgreSQL) Delete(ctx context.Context, room *models.Room) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = $1`, room.Code)
	return err
}

func (p *PostgreSQL) ListActive(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error) {
	if len(statuses) == 0 {
		statuses = []models.RoomStatus{
			models.StatusWaitingForPlayers,
			models.StatusInProgress,
			models.StatusPaused,
		}
	}
	// 构造 IN 子句
	args := make([]interface{}, 0, len(statuses))
	placeholders := ""
	for i, s := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args = append(args, int(s))
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE status IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (p *PostgreSQL) GetPlayerBalance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	var raw string
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM players WHERE player_id = $1`, playerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrPlayerNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

func (p *PostgreSQL) SetPlayerBalance(ctx context.Context, playerID string, balance decimal.Decimal) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO players (player_id, balance) VALUES ($1, $2)
		 ON CONFLICT (player_id)
		 DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()`,
		playerID, balance)
	return err
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		room       models.Room
		status     int
		minBet     string
		members    []byte
		spectators []byte
	)
	err := row.Scan(&room.Code, &status, &room.HostPlayerID, &room.MaxPlayers,
		&minBet, &room.TableID, &members, &spectators,
		&room.Version, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	room.Status = models.RoomStatus(status)
	if room.MinBetPerRound, err = decimal.NewFromString(minBet); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &room.Members); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(spectators, &room.Spectators); err != nil {
		return nil, err
	}
	return &room, nil
}
