package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/koustreak/frameload/internal/config"
	"github.com/koustreak/frameload/internal/database"
	"github.com/koustreak/frameload/internal/database/mysql"
	"github.com/koustreak/frameload/internal/database/postgres"
	"github.com/koustreak/frameload/internal/database/sqlite"
	"github.com/koustreak/frameload/internal/errs"
	"github.com/koustreak/frameload/internal/filestore"
	"github.com/koustreak/frameload/internal/filestore/minio"
	"github.com/koustreak/frameload/internal/logger"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

// runtime is what every command needs once flags and configuration are
// resolved.
type runtime struct {
	cfg *config.Config
	log *logger.Logger
	db  database.DB
	// store is nil unless object storage is configured.
	store filestore.Store
}

func (r *runtime) Close() {
	if r.store != nil {
		r.store.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

// resolveConfig loads the configuration and lets explicitly set flags
// override it. adjust runs before validation for command-specific flags.
func resolveConfig(cmd *cobra.Command, flags *globalFlags, adjust func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("dsn") {
		cfg.Database.DSN = flags.dsn
	}
	if set("driver") {
		cfg.Database.Driver = flags.driver
	}
	if set("schema") {
		cfg.Database.Schema = flags.schema
	}
	if set("concurrency") {
		cfg.Load.Concurrency = flags.concurrency
	}
	if set("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if adjust != nil {
		adjust(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup resolves configuration, builds the logger and connects to the
// database and, when configured, object storage.
func setup(cmd *cobra.Command, flags *globalFlags, adjust func(*config.Config)) (*runtime, error) {
	cfg, err := resolveConfig(cmd, flags, adjust)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.ToLogger(cmd.ErrOrStderr()))
	ctx := log.WithContext(cmd.Context())
	cmd.SetContext(ctx)

	dbCfg, err := cfg.ToDatabase()
	if err != nil {
		return nil, err
	}
	db, err := openDB(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, log: log, db: db}

	if storeCfg := cfg.ToStore(); storeCfg.Enabled() {
		store, err := minio.New(ctx, storeCfg)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.store = store
	}

	log.DebugWith("connected", map[string]any{
		"driver": cfg.Database.Driver,
		"schema": cfg.Database.Schema,
		"store":  rt.store != nil,
	})
	return rt, nil
}

// openDB picks the driver package for cfg.Driver.
func openDB(ctx context.Context, cfg *database.Config) (database.DB, error) {
	switch cfg.Driver {
	case database.DriverPostgres:
		db, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	case database.DriverMySQL:
		db, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	case database.DriverSQLite:
		db, err := sqlite.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown database driver %q", cfg.Driver)
}

// render writes v to w as YAML or JSON.
func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
