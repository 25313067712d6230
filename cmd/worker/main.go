// cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/newsflow/internal/app"
	"github.com/unclebandit/newsflow/internal/config"
	"github.com/unclebandit/newsflow/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}
	if cfg.Queue.AMQPURL == "" && len(cfg.Queue.KafkaBrokers) == 0 {
		log.Fatal("❌ AMQP_URL or KAFKA_BROKERS is required for the worker")
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal("❌ Startup failed: ", err)
	}
	defer a.Close()

	worker := service.NewSendWorker(a.Newsletter)
	if err := worker.Start(a.Queue); err != nil {
		log.Fatal("❌ Failed to register consumer: ", err)
	}
	if err := service.StartEventLog(a.Queue); err != nil {
		log.Fatal("❌ Failed to register event consumers: ", err)
	}

	log.Println("👷 Worker running, waiting for newsletters...")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Worker stopping")
}
