package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chorequest/chorequest/internal/config"
	"github.com/chorequest/chorequest/internal/database"
	"github.com/chorequest/chorequest/internal/logging"
	"github.com/chorequest/chorequest/internal/push"
	"github.com/chorequest/chorequest/internal/server"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(env.LogLevel)

	db, err := database.Open(env.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pushCfg := push.Config{
		VAPIDPublicKey:  env.VAPIDPublicKey,
		VAPIDPrivateKey: env.VAPIDPrivateKey,
	}
	if pushCfg.VAPIDPublicKey == "" || pushCfg.VAPIDPrivateKey == "" {
		logger.Info("VAPID keys not configured, web push disabled")
	}

	srv := server.New(db, pushCfg, logger)

	httpServer := &http.Server{
		Addr:         ":" + env.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Chorequest running at http://localhost:%s\n", env.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
