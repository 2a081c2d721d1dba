package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/larkmail/lark/db"
)

// adminConfig holds the minimal configuration admin operations need.
type adminConfig struct {
	Database db.DatabaseConfig `toml:"database"`
}

func newDefaultAdminConfig() adminConfig {
	return adminConfig{
		Database: db.DatabaseConfig{
			Host: "localhost",
			Port: "5432",
			User: "postgres",
			Name: "lark_db",
		},
	}
}

type adminOptions struct {
	configPath *string
	dbHost     *string
	dbPort     *string
	dbUser     *string
	dbPassword *string
	dbName     *string
	dbTLS      *bool
}

// newAdminFlags registers the config and database flags shared by every
// subcommand on a fresh flag set.
func newAdminFlags(command string) (*flag.FlagSet, *adminOptions) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	return fs, &adminOptions{
		configPath: fs.String("config", "config.toml", "Path to TOML configuration file"),
		dbHost:     fs.String("dbhost", "", "Database host (overrides config)"),
		dbPort:     fs.String("dbport", "", "Database port (overrides config)"),
		dbUser:     fs.String("dbuser", "", "Database user (overrides config)"),
		dbPassword: fs.String("dbpassword", "", "Database password (overrides config)"),
		dbName:     fs.String("dbname", "", "Database name (overrides config)"),
		dbTLS:      fs.Bool("dbtls", false, "Enable TLS for database connection (overrides config)"),
	}
}

func (o *adminOptions) load() db.DatabaseConfig {
	cfg := newDefaultAdminConfig()
	if _, err := toml.DecodeFile(*o.configPath, &cfg); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Error: failed to parse configuration file '%s': %v\n", *o.configPath, err)
		os.Exit(1)
	}

	if *o.dbHost != "" {
		cfg.Database.Host = *o.dbHost
	}
	if *o.dbPort != "" {
		cfg.Database.Port = *o.dbPort
	}
	if *o.dbUser != "" {
		cfg.Database.User = *o.dbUser
	}
	if *o.dbPassword != "" {
		cfg.Database.Password = *o.dbPassword
	}
	if *o.dbName != "" {
		cfg.Database.Name = *o.dbName
	}
	if *o.dbTLS {
		cfg.Database.TLS = true
	}
	return cfg.Database
}

func connect(ctx context.Context, opts *adminOptions) *db.Database {
	dbCfg := opts.load()
	database, err := db.NewDatabase(ctx, &dbCfg)
	if err != nil {
		fmt.Printf("Error: failed to connect to the database: %v\n", err)
		os.Exit(1)
	}
	return database
}
