// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unclebandit/newsflow/internal/app"
	"github.com/unclebandit/newsflow/internal/config"
	"github.com/unclebandit/newsflow/internal/controller"
	"github.com/unclebandit/newsflow/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal("❌ Startup failed: ", err)
	}

	// With a broker, sends run in cmd/worker. Without one they run here.
	if a.InProcessQueue() {
		if err := service.NewSendWorker(a.Newsletter).Start(a.Queue); err != nil {
			log.Fatal("❌ Failed to start send worker: ", err)
		}
		if err := service.StartEventLog(a.Queue); err != nil {
			log.Fatal("❌ Failed to start event log: ", err)
		}
	}

	router := controller.NewRouter(controller.Dependencies{
		Subscribers: a.Subscribers,
		Campaigns:   a.Campaigns,
		Batches:     a.Batches,
		Tracking:    a.Tracking,
		Newsletter:  a.Newsletter,
		Queue:       a.Queue,
		AccessLog:   true,
	})

	srv := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: /send-newsletter answers after the whole batch.
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ Server error: ", err)
		}
	}()
	banner(ctx, a)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ Shutdown:", err)
	}
	if err := a.Close(); err != nil {
		log.Println("⚠️ Close:", err)
	}
}

func banner(ctx context.Context, a *app.App) {
	cfg := a.Config
	log.Println("🚀 ====================================")
	log.Println("🚀 NEWSFLOW SERVER IS RUNNING!")
	log.Println("🚀 ====================================")
	log.Printf("📍 Listening on %s", cfg.Server.Addr())
	log.Printf("📍 Public URL: %s", cfg.Server.PublicURL)
	log.Printf("💾 Storage: %s, mail: %s", cfg.Storage.Type, cfg.Mail.Provider)

	if cfg.UsesDefaultPublicURL() {
		log.Println("⚠️  SERVER_URL is not set; tracking links will point at localhost")
	}

	subs, err := a.Subscribers.List(ctx)
	if err != nil {
		log.Println("⚠️ Could not read subscribers:", err)
	}
	camps, err := a.Campaigns.List(ctx)
	if err != nil {
		log.Println("⚠️ Could not read campaigns:", err)
	}
	batches, err := a.Batches.List(ctx)
	if err != nil {
		log.Println("⚠️ Could not read pending batches:", err)
	}
	log.Printf("📋 Subscribers: %d", len(subs))
	log.Printf("📊 Campaigns: %d", len(camps))
	log.Printf("⏳ Pending batches: %d", len(batches))
	if len(batches) > 0 {
		log.Println("⚠️  You have pending batches to send! See `newsflow batches list`.")
	}
	log.Printf("📡 Webhook URL: %s/webhook/resend", cfg.Server.PublicURL)
}
