// Package config assembles frameload settings from defaults, an optional
// YAML file, a .env file and FRAMELOAD_* environment variables, in that
// order of increasing precedence.
package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/filestore"
	"github.com/koustreak/frameload/internal/logger"
	"go.yaml.in/yaml/v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FRAMELOAD_"

// Config is the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" envPrefix:"DB_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Load     LoadConfig     `yaml:"load" envPrefix:"LOAD_"`
	Store    StoreConfig    `yaml:"store" envPrefix:"STORE_"`
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`

	// Schema is the namespace to introspect: a Postgres schema, a MySQL
	// database or an attached SQLite database.
	Schema string `yaml:"schema" env:"SCHEMA"`

	MaxConns        int32         `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns        int32         `yaml:"min_conns" env:"MIN_CONNS"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"MAX_CONN_IDLE_TIME"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Format     string `yaml:"format" env:"FORMAT"`
	TimeFormat string `yaml:"time_format" env:"TIME_FORMAT"`
}

type LoadConfig struct {
	// Concurrency is the number of tables of one dependency level loaded
	// at once. Values above 1 require non-transactional loads.
	Concurrency   int  `yaml:"concurrency" env:"CONCURRENCY"`
	Transactional bool `yaml:"transactional" env:"TRANSACTIONAL"`
}

// StoreConfig points at the object storage fixtures may be read from.
// An empty endpoint disables it.
type StoreConfig struct {
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
	Region    string `yaml:"region" env:"REGION"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// MaxBodyBytes bounds fixture uploads.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
}

// Default returns the built-in configuration.
func Default() *Config {
	db := database.DefaultConfig(database.DriverPostgres, "")
	log := logger.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Driver:          string(db.Driver),
			Schema:          "public",
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			MaxConnLifetime: db.MaxConnLifetime,
			MaxConnIdleTime: db.MaxConnIdleTime,
			ConnectTimeout:  db.ConnectTimeout,
		},
		Log: LogConfig{
			Level:      log.Level,
			Format:     log.Format,
			TimeFormat: log.TimeFormat,
		},
		Load: LoadConfig{
			Concurrency:   1,
			Transactional: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    16 << 20,
		},
	}
}

// Load builds a Config. path names an optional YAML file; dotenv names
// .env files to read before the environment, ".env" when none are given.
// Missing .env files are skipped, a missing YAML file is an error.
func Load(path string, dotenv ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, name := range dotenv {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "read "+name, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse environment", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.ErrKindNotFound, "config file "+path, err)
		}
		return errs.Wrap(errs.ErrKindInvalidInput, "config file "+path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.ErrKindInvalidInput, "config file "+path, err)
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if _, err := database.ParseDriver(c.Database.Driver); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "database.driver", err)
	}
	if c.Database.DSN == "" {
		return errs.New(errs.ErrKindInvalidInput, "database.dsn is required")
	}
	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
		return errs.New(errs.ErrKindInvalidInput, "database pool sizes must not be negative")
	}
	if c.Load.Concurrency < 1 {
		return errs.Newf(errs.ErrKindInvalidInput, "load.concurrency must be at least 1, got %d", c.Load.Concurrency)
	}
	if c.Load.Concurrency > 1 && c.Load.Transactional {
		return errs.New(errs.ErrKindInvalidInput,
			"load.concurrency > 1 needs load.transactional=false: a transaction cannot run concurrent statements")
	}
	if c.Store.Endpoint != "" {
		if err := c.ToStore().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToDatabase converts the database section for the drivers.
func (c *Config) ToDatabase() (*database.Config, error) {
	driver, err := database.ParseDriver(c.Database.Driver)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "database.driver", err)
	}
	return &database.Config{
		Driver:          driver,
		DSN:             c.Database.DSN,
		MaxConns:        c.Database.MaxConns,
		MinConns:        c.Database.MinConns,
		MaxConnLifetime: c.Database.MaxConnLifetime,
		MaxConnIdleTime: c.Database.MaxConnIdleTime,
		ConnectTimeout:  c.Database.ConnectTimeout,
	}, nil
}

// ToLogger converts the log section; output defaults to stderr.
func (c *Config) ToLogger(out io.Writer) *logger.Config {
	if out == nil {
		out = os.Stderr
	}
	return &logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     out,
	}
}

// ToStore converts the store section, or returns nil when no endpoint
// is configured.
func (c *Config) ToStore() *filestore.Config {
	if c.Store.Endpoint == "" {
		return nil
	}
	return &filestore.Config{
		Provider:  filestore.ProviderMinIO,
		Endpoint:  c.Store.Endpoint,
		AccessKey: c.Store.AccessKey,
		SecretKey: c.Store.SecretKey,
		UseSSL:    c.Store.UseSSL,
		Region:    c.Store.Region,
		Bucket:    c.Store.Bucket,
	}
}
