// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/wabroadcast/backend/internal/controller"
	"github.com/wabroadcast/backend/internal/db"
	"github.com/wabroadcast/backend/internal/dispatch"
	"github.com/wabroadcast/backend/internal/events"
	"github.com/wabroadcast/backend/internal/gateway"
	"github.com/wabroadcast/backend/internal/service"
	"github.com/wabroadcast/backend/internal/store"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on OS environment variables")
	}

	// One Guard for the API and the dispatcher, so admissions and deliveries
	// never race each other's snapshots.
	snap := store.NewGuard(openStore())

	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		gatewayURL = "http://localhost:3000"
	}
	gw := gateway.NewHTTPClient(gatewayURL, os.Getenv("GATEWAY_TOKEN"))

	campaignService := &service.CampaignService{
		Store:   snap,
		Gateway: gw,
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
	}

	// The dispatcher runs in-process unless this deployment delegates it to
	// a dedicated worker (DISPATCH_ENABLED=false + cmd/worker). It lives for
	// the whole process, so there is nothing to stop here.
	if os.Getenv("DISPATCH_ENABLED") != "false" {
		d := dispatch.New(snap, gw, openPublisher(), tickInterval())
		d.Start(context.Background())
	}

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Delete("/campaigns/{id}", campaignController.DeleteCampaign)
	r.Get("/accounts", campaignController.ListAccounts)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
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
