package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"partyquest/internal/app"
	"partyquest/internal/config"
	"partyquest/internal/logging"
	"partyquest/internal/service"
	"partyquest/internal/transport/rest"
	"partyquest/internal/transport/ws"
	"syscall"
	"time"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open stores", "error", err)
	}
	defer a.Close(context.Background())

	go a.RunJanitor(ctx, time.Minute)

	wsHub := ws.NewHub(logger)
	logger.Infow("websocket hub started")

	authSvc := service.NewAuthService(cfg.JWTSecret)
	if !authSvc.Enabled() {
		logger.Warnw("AUTH_JWT_SECRET not set, player tokens are not checked")
	}
	roomSvc := service.NewRoomService(a.Sessions, a.Players, a.RoomState, logger, cfg.JoinTimeout, cfg.ReadySettleDelay)
	readinessSvc := service.NewReadinessService(a.Sessions, a.Players, a.RoomState, logger, cfg.ReadySettleDelay)
	encounterSvc := service.NewEncounterService(a.Sessions, a.Encounters, a.Enemies, logger)
	healthSvc := service.NewHealthService(a.Encounters, a.Players, logger)
	gameSvc := service.NewGameService(a.Sessions, a.Players, healthSvc)

	wsHandler := ws.NewHandler(wsHub, ws.Services{
		Auth:       authSvc,
		Rooms:      roomSvc,
		Readiness:  readinessSvc,
		Encounters: encounterSvc,
		Health:     healthSvc,
	}, logger, cfg.StoreTimeout)

	router := rest.NewRouter(&rest.Container{
		AuthService:        authSvc,
		RoomService:        roomSvc,
		GameService:        gameSvc,
		WSHub:              wsHub,
		WSHandler:          wsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("server starting",
			"port", cfg.HTTPPort,
			"store", cfg.StoreDriver,
			"roomState", cfg.RoomStateBackend,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server forced to shutdown", "error", err)
	}
	wsHub.Close()

	logger.Infow("server exited")
}
