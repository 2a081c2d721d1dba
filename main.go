package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/larkmail/lark/db"
	"github.com/larkmail/lark/logger"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/server/delivery"
	"github.com/larkmail/lark/server/jmaphttp"
	"github.com/larkmail/lark/server/lmtp"
	"github.com/larkmail/lark/vacation"
)

func main() {
	cfg := newDefaultConfig()

	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")

	fHostname := flag.String("hostname", cfg.Hostname, "Server hostname (overrides config)")
	fLogOutput := flag.String("logoutput", cfg.Logging.Output, "Log output: 'stdout', 'stderr' or a file path (overrides config)")

	fDbHost := flag.String("dbhost", cfg.Database.Host, "Database host (overrides config)")
	fDbPort := flag.String("dbport", cfg.Database.Port, "Database port (overrides config)")
	fDbUser := flag.String("dbuser", cfg.Database.User, "Database user (overrides config)")
	fDbPassword := flag.String("dbpassword", cfg.Database.Password, "Database password (overrides config)")
	fDbName := flag.String("dbname", cfg.Database.Name, "Database name (overrides config)")
	fDbTLS := flag.Bool("dbtls", cfg.Database.TLS, "Enable TLS for database connection (overrides config)")

	fStartJMAP := flag.Bool("jmap", cfg.Servers.JMAP.Start, "Start the JMAP server (overrides config)")
	fJMAPAddr := flag.String("jmapaddr", cfg.Servers.JMAP.Addr, "JMAP server address (overrides config)")
	fStartLMTP := flag.Bool("lmtp", cfg.Servers.LMTP.Start, "Start the LMTP server (overrides config)")
	fLMTPAddr := flag.String("lmtpaddr", cfg.Servers.LMTP.Addr, "LMTP server address (overrides config)")
	fStartMetrics := flag.Bool("metrics", cfg.Servers.Metrics.Start, "Start the metrics server (overrides config)")
	fMetricsAddr := flag.String("metricsaddr", cfg.Servers.Metrics.Addr, "Metrics server address (overrides config)")
	fDebug := flag.Bool("debug", cfg.Servers.Debug, "Print protocol traffic (overrides config)")

	flag.Parse()

	if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
		if os.IsNotExist(err) {
			if isFlagSet("config") {
				log.Fatalf("specified configuration file '%s' not found: %v", *configPath, err)
			}
			log.Printf("WARNING: default configuration file '%s' not found, using defaults and flags", *configPath)
		} else {
			log.Fatalf("error parsing configuration file '%s': %v", *configPath, err)
		}
	}

	applyFlagOverride("hostname", &cfg.Hostname, *fHostname)
	applyFlagOverride("logoutput", &cfg.Logging.Output, *fLogOutput)
	applyFlagOverride("dbhost", &cfg.Database.Host, *fDbHost)
	applyFlagOverride("dbport", &cfg.Database.Port, *fDbPort)
	applyFlagOverride("dbuser", &cfg.Database.User, *fDbUser)
	applyFlagOverride("dbpassword", &cfg.Database.Password, *fDbPassword)
	applyFlagOverride("dbname", &cfg.Database.Name, *fDbName)
	applyBoolFlagOverride("dbtls", &cfg.Database.TLS, *fDbTLS)
	applyBoolFlagOverride("jmap", &cfg.Servers.JMAP.Start, *fStartJMAP)
	applyFlagOverride("jmapaddr", &cfg.Servers.JMAP.Addr, *fJMAPAddr)
	applyBoolFlagOverride("lmtp", &cfg.Servers.LMTP.Start, *fStartLMTP)
	applyFlagOverride("lmtpaddr", &cfg.Servers.LMTP.Addr, *fLMTPAddr)
	applyBoolFlagOverride("metrics", &cfg.Servers.Metrics.Start, *fStartMetrics)
	applyFlagOverride("metricsaddr", &cfg.Servers.Metrics.Addr, *fMetricsAddr)
	applyBoolFlagOverride("debug", &cfg.Servers.Debug, *fDebug)

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	database, err := db.NewDatabase(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", "error", err)
	}
	defer database.Close()

	engine := mailbox.NewEngine(database, database, database)
	handler := jmaphttp.NewHandler(engine, database, database, database, vacation.SystemClock{})

	pipeline := &delivery.Context{
		Mailboxes: database,
		Rules:     database,
		Vacations: database,
		Oracle:    database,
		Sink:      database,
		Replies:   &delivery.SMTPReplySender{RelayAddr: cfg.Relay.Addr, Addresses: database},
		Clock:     vacation.SystemClock{},
	}

	errChan := make(chan error, 1)

	if cfg.Servers.JMAP.Start {
		go jmaphttp.Start(ctx, handler, jmaphttp.ServerOptions{
			Addr:           cfg.Servers.JMAP.Addr,
			DefaultAccount: cfg.Servers.JMAP.DefaultAccount,
			TLS:            cfg.Servers.JMAP.TLS,
			TLSCertFile:    cfg.Servers.JMAP.TLSCertFile,
			TLSKeyFile:     cfg.Servers.JMAP.TLSKeyFile,
		}, errChan)
	}

	if cfg.Servers.LMTP.Start {
		go startLMTPServer(ctx, &cfg, database, pipeline, errChan)
	}

	if cfg.Servers.Metrics.Start {
		go startMetricsServer(ctx, cfg.Servers.Metrics.Addr, errChan)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errChan:
		logger.Fatal("server error", "error", err)
	}
}

func startLMTPServer(ctx context.Context, cfg *Config, database *db.Database, pipeline *delivery.Context, errChan chan error) {
	backend, err := lmtp.New(ctx, database, pipeline, lmtp.BackendOptions{
		Name:           "lmtp",
		Hostname:       cfg.Hostname,
		Addr:           cfg.Servers.LMTP.Addr,
		MaxMessageSize: cfg.Servers.LMTP.MaxMessageSize,
		Debug:          cfg.Servers.Debug,
	})
	if err != nil {
		errChan <- err
		return
	}
	go func() {
		<-ctx.Done()
		backend.Close()
	}()
	backend.Start(errChan)
}

func startMetricsServer(ctx context.Context, addr string, errChan chan error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		errChan <- err
	}
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func applyFlagOverride(name string, target *string, value string) {
	if isFlagSet(name) {
		*target = value
	}
}

func applyBoolFlagOverride(name string, target *bool, value bool) {
	if isFlagSet(name) {
		*target = value
	}
}
