package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"luckydraw/internal/config"
	"luckydraw/internal/handlers"
	"luckydraw/internal/services"
	"luckydraw/internal/store"
)

func main() {
	// 1. Load configuration from the environment (and .env when present)
	dotEnvErr := config.LoadDotEnv(".env")
	cfg := config.Load()

	// 2. Initialize the logger
	closeLog, err := config.InitLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog()
	if dotEnvErr != nil {
		logger.Warningf("Failed to load .env: %v", dotEnvErr)
	}
	if cfg.UsesDefaultPassword() {
		logger.Warningf("ADMIN_PASSWORD is not set; using the default password")
	}

	// 3. Open the key-value store
	ctx := context.Background()
	kv, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		logger.Fatalf("Failed to open %s store: %v", cfg.StoreBackend, err)
	}
	defer kv.Close()

	// 4. Initialize the services
	lotteryService := services.NewLotteryService(kv, time.Duration(cfg.RoundTTLSeconds)*time.Second)
	sessions := services.NewSessionService(kv, time.Duration(cfg.SessionTTLSeconds)*time.Second)

	// 5. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(lotteryService, sessions, handlers.Options{
		AdminPassword:   cfg.AdminPassword,
		PIDCookieMaxAge: time.Duration(cfg.PIDCookieDays) * 24 * time.Hour,
		SecureCookies:   cfg.SecureCookies,
		Env:             cfg.Env,
	})

	// 6. Set up the Gin router and register routes
	r := gin.Default()
	httpHandler.RegisterRoutes(r)

	// 7. Start the background janitor to drop expired sessions and rounds
	go func() {
		interval := time.Duration(cfg.JanitorIntervalSeconds) * time.Second
		for {
			time.Sleep(interval)
			lotteryService.CleanUpExpired(ctx)
		}
	}()

	// 8. Run the server
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("Server starting on http://localhost%s (store=%s)", addr, cfg.StoreBackend)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("Failed to run server: %v", err)
	}
}
