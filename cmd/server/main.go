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
	"github.com/propertyhub/chatserver/internal/api"
	"github.com/propertyhub/chatserver/internal/config"
	"github.com/propertyhub/chatserver/internal/database"
	"github.com/propertyhub/chatserver/internal/presence"
	"github.com/propertyhub/chatserver/internal/server"
	"github.com/propertyhub/chatserver/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr            string
	dsn             string
	signingKey      string
	allowedOrigins  stringSliceFlag
	presenceBackend string
	redisAddr       string
	relayTopology   string
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable", "database connection string")
	flag.StringVar(&signingKey, "signing-key", defaultSigningKey, "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&presenceBackend, "presence-backend", "memory", "presence registry backend (memory or redis)")
	flag.StringVar(&redisAddr, "redis-addr", "", "redis address for the redis presence backend")
	flag.StringVar(&relayTopology, "relay-topology", "direct", "message relay topology (direct or room)")
	flag.Parse()

	logger := log.New(os.Stderr, "[property-chat] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, presenceBackend, redisAddr)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	var store presence.Store
	switch cfg.PresenceBackend {
	case config.PresenceRedis:
		store, err = presence.NewRedisStore(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis presence store:", err)
		}
	default:
		store = presence.NewMemoryStore()
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Println("presence store close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	registry := server.NewRegistry(store, logger)

	chatServer, err := server.NewChatServer(logger, registry, statsUpdater, server.Topology(relayTopology))
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv, err := api.NewChatApp(mux, logger, chatServer, dbConn, cfg)
	if err != nil {
		logger.Fatal("new chat app:", err)
	}

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

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

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
