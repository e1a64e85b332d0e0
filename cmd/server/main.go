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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/chatinsight/chat-insight/internal/api"
	"github.com/chatinsight/chat-insight/internal/app"
	"github.com/chatinsight/chat-insight/internal/config"
	"github.com/chatinsight/chat-insight/internal/logging"
	"github.com/chatinsight/chat-insight/internal/service"
)

func main() {
	issueToken := flag.String("issue-token", "", "Print an admin access token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by -issue-token")
	flag.Parse()

	// Initialize logger
	logger := logging.New(os.Stdout, "json", "info")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	logger = logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	authService := service.NewAuthService(cfg.Server.JWTSecret)

	if *issueToken != "" {
		token, err := authService.IssueToken(*issueToken, *tokenTTL)
		if err != nil {
			logger.WithError(err).Fatal("failed to issue token")
		}
		fmt.Println(token)
		return
	}

	logger.Info("starting chat-insight server")
	if cfg.Server.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, /api/refresh will reject every request")
	}

	ctx := context.Background()

	// Relations come from PostgreSQL when configured, otherwise from the CSV files
	loader, closeRelations, err := app.OpenRelations(ctx, cfg, cfg.DataDir, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open relations")
	}
	defer closeRelations()

	c, closeCache, err := app.OpenCache(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open cache")
	}
	defer closeCache()

	server := api.NewServer(authService, loader, c, logger, api.Options{
		StaticDir:   cfg.Server.StaticDir,
		DepthSample: cfg.Analysis.DepthSample,
		CacheTTL:    cfg.Cache.TTL,
	})

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Add middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}).Info("request")
			return nil
		},
	}))

	server.Register(e)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.WithField("addr", addr).Info("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown error")
	}

	logger.Info("server stopped")
}
