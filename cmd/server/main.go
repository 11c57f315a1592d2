package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/backend/internal/config"
	"github.com/pointdeck/backend/internal/game"
	"github.com/pointdeck/backend/internal/gateway"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	port := flag.Int("port", 0, "override server port")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	games := game.NewManager(clockwork.NewRealClock())

	wsConfig := gateway.DefaultConnectionConfig()
	wsConfig.WriteTimeout = cfg.Websocket.WriteTimeout
	wsConfig.ReadTimeout = cfg.Websocket.ReadTimeout
	wsConfig.PingInterval = cfg.Websocket.PingInterval
	wsConfig.MaxMessageSize = cfg.Websocket.MaxMessageSize
	wsConfig.CheckOrigin = gateway.OriginChecker(cfg.Server.AllowedOrigins)

	hub := gateway.NewHub(games, wsConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := setupServer(cfg, hub)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func setupServer(cfg *config.Config, hub *gateway.Hub) *http.Server {
	mux := http.NewServeMux()

	handler := gateway.NewHandler(hub)
	handler.RegisterRoutes(mux)

	// Optional static frontend; the websocket endpoint is the real surface.
	if cfg.Server.StaticDir != "" {
		log.Info().Str("dir", cfg.Server.StaticDir).Msg("serving static assets")
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: c.Handler(mux),
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	return []string{"http://localhost:4200"}
}
