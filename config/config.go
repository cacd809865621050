package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Room     RoomConfig     `mapstructure:"room"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	// Driver 选择存储实现: gorm / pq / memory
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RoomConfig struct {
	CodeLength    int `mapstructure:"code_length"`
	MaxPlayers    int `mapstructure:"max_players"`
	MaxSeats      int `mapstructure:"max_seats"`
	RetryAttempts int `mapstructure:"retry_attempts"`
	RetryBackoff  int `mapstructure:"retry_backoff_ms"`
}

func (c RoomConfig) Backoff() time.Duration {
	return time.Duration(c.RetryBackoff) * time.Millisecond
}

type CleanupConfig struct {
	HeartbeatWindow int `mapstructure:"heartbeat_window_minutes"`
	HintTTL         int `mapstructure:"hint_ttl_minutes"`
	SweepInterval   int `mapstructure:"sweep_interval_minutes"`
}

func (c CleanupConfig) HeartbeatWindowDuration() time.Duration {
	return time.Duration(c.HeartbeatWindow) * time.Minute
}

func (c CleanupConfig) HintTTLDuration() time.Duration {
	return time.Duration(c.HintTTL) * time.Minute
}

func (c CleanupConfig) SweepIntervalDuration() time.Duration {
	return time.Duration(c.SweepInterval) * time.Minute
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("room.code_length", 6)
	viper.SetDefault("room.max_players", 6)
	viper.SetDefault("room.max_seats", 6)
	viper.SetDefault("room.retry_attempts", 3)
	viper.SetDefault("room.retry_backoff_ms", 50)
	viper.SetDefault("cleanup.heartbeat_window_minutes", 30)
	viper.SetDefault("cleanup.hint_ttl_minutes", 120)
	viper.SetDefault("cleanup.sweep_interval_minutes", 5)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
