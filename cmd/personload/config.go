package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	MaxConns     int    `mapstructure:"max_conns"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password,omitempty"`
	DatabaseName string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
}

type PipelineConfig struct {
	ChunkSize int    `mapstructure:"chunk_size"`
	Sink      string `mapstructure:"sink"`
}

type ProcessingConfig struct {
	InboxDir          string        `mapstructure:"inbox_dir"`
	InboxPatterns     string        `mapstructure:"inbox_patterns"`
	InboxPollInterval time.Duration `mapstructure:"inbox_poll"`
	DoneDir           string        `mapstructure:"done_dir"`
	Workers           int           `mapstructure:"workers"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Server     ServerConfig     `mapstructure:"server"`
}

func loadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("personload")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/personload/")
	}

	v.SetEnvPrefix("PERSONLOAD") // env vars like PERSONLOAD_DATABASE__HOST
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("pipeline.chunk_size", 10)
	v.SetDefault("pipeline.sink", "postgres")
	v.SetDefault("processing.inbox_patterns", "*.csv,*.csv.gz,*.csv.bz2")
	v.SetDefault("processing.inbox_poll", 2*time.Second)
	v.SetDefault("processing.workers", 2)

	v.BindEnv("database.max_conns")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.username")
	v.BindEnv("database.password")
	v.BindEnv("database.database")
	v.BindEnv("database.ssl_mode")

	v.BindEnv("pipeline.chunk_size")
	v.BindEnv("pipeline.sink")

	v.BindEnv("processing.inbox_dir")
	v.BindEnv("processing.inbox_patterns")
	v.BindEnv("processing.inbox_poll")
	v.BindEnv("processing.done_dir")
	v.BindEnv("processing.workers")

	v.BindEnv("server.listen_addr")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if v.ConfigFileUsed() != "" {
		log.Printf("Loaded config from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// requireDatabase validates the DB settings for commands that touch the
// sink. The stdout sink has no such requirement, so this is not part of
// loadConfig.
func requireDatabase(cfg *Config) error {
	if cfg.Database.Host == "" || cfg.Database.DatabaseName == "" {
		return errors.New("database.host and database.database must be set (check config/env/flags)")
	}
	return nil
}

func openDatabase(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", buildDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxConns)
	return db, nil
}

func buildDSN(cfg *Config) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Username, cfg.Database.DatabaseName, cfg.Database.SSLMode)
	if cfg.Database.Password != "" {
		dsn += " password=" + cfg.Database.Password
	}
	return dsn
}
