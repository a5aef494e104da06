// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wabroadcast/backend/internal/db"
	"github.com/wabroadcast/backend/internal/dispatch"
	"github.com/wabroadcast/backend/internal/events"
	"github.com/wabroadcast/backend/internal/gateway"
	"github.com/wabroadcast/backend/internal/store"
)

// Standalone dispatcher process, for deployments that run the admission API
// with DISPATCH_ENABLED=false. Exactly one worker per store keeps dispatch
// single-flight.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on OS environment variables")
	}

	st := openStore()

	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:3000"
	}
	gw := gateway.NewHTTPClient(gatewayURL, os.Getenv("GATEWAY_TOKEN"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := dispatch.New(store.NewGuard(st), gw, openPublisher(), tickInterval())
	d.Start(ctx)

	log.Println("Worker running, waiting for due campaigns...")
	<-ctx.Done()
	d.Stop()
}

func openStore() store.Store {
	switch os.Getenv("STORE_DRIVER") {
	case "postgres":
		conn, err := db.Open()
		if err != nil {
			log.Fatal("failed to open store:", err)
		}
		pg := store.NewPostgresStore(conn)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatal("failed to prepare schema:", err)
		}
		return pg
	default:
		path := os.Getenv("STORE_PATH")
		if path == "" {
			path = "campaigns.json"
		}
		return store.NewFileStore(path)
	}
}

func openPublisher() events.Publisher {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		return events.NopPublisher{}
	}
	pub, err := events.NewAMQPPublisher(url)
	if err != nil {
		log.Println("Cannot reach RabbitMQ, campaign events disabled:", err)
		return events.NopPublisher{}
	}
	return pub
}

func tickInterval() time.Duration {
	seconds, err := strconv.Atoi(os.Getenv("TICK_SECONDS"))
	if err != nil || seconds < 1 {
		seconds = 5
	}
	return time.Duration(seconds) * time.Second
}
