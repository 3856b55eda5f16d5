package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/dechat-im/dechat/internal/api"
	"github.com/dechat-im/dechat/internal/config"
	"github.com/dechat-im/dechat/internal/database"
	"github.com/dechat-im/dechat/internal/relay"
	"github.com/dechat-im/dechat/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	migrationsURL  string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[dechat] ", log.LstdFlags)

	defaults, err := config.EnvDefaults()
	if err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&addr, "addr", defaults.ServerAddr, "server address")
	flag.StringVar(&dsn, "dsn", defaults.DatabaseDSN, "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaults.SigningKey, "base64 encoded signing key")
	flag.StringVar(&migrationsURL, "migrations-url", defaults.MigrationsURL, "migrations source URL")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = defaults.AllowedOrigins
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	cfg.MigrationsURL = migrationsURL

	if err := database.RunMigrations(cfg.MigrationsURL, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate:", err)
	}

	dbConn, err := database.NewPgDechatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	relayServer := relay.NewRelayServer(logger, dbConn, statsUpdater)

	srv := api.NewDechatApp(mux, logger, relayServer, dbConn, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	relayServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay server...")
	relayServer.Shutdown()

	logger.Println("shutdown complete")
}
