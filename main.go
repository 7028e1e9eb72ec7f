package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kariqs/galio-api/initializers"
	"github.com/Kariqs/galio-api/middlewares"
	"github.com/Kariqs/galio-api/routes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func init() {
	initializers.LoadEnv()
	initializers.InitLogger(initializers.AppConfig.LogLevel, initializers.AppConfig.LogPretty)
	initializers.ConnectToDB(initializers.AppConfig.DBDSN)
	initializers.SyncDatabase(initializers.DB)
	if initializers.AppConfig.SeedLocations {
		if err := initializers.SeedLocations(initializers.DB); err != nil {
			log.Fatal().Err(err).Msg("failed to seed locations")
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := initializers.AppConfig
	shutdown := initializers.InitServices(ctx, cfg)
	defer shutdown()

	server := gin.Default()
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", middlewares.SessionHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	server.Use(middlewares.ResolveOwner(cfg.JWTSecret))

	routes.DefaultRoutes(server)
	routes.CartRoutes(server)
	routes.CheckoutRoutes(server)
	routes.OrderRoutes(server)
	routes.AdminRoutes(server)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: server}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("galio api listening")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
