package main

import (
	"context"
	"flag"
	"log"

	"github.com/chorus-social/chorus/agent"
	"github.com/chorus-social/chorus/ai"
	"github.com/chorus-social/chorus/api"
	"github.com/chorus-social/chorus/api/handlers"
	"github.com/chorus-social/chorus/cascade"
	"github.com/chorus-social/chorus/communication"
	"github.com/chorus-social/chorus/config"
	"github.com/chorus-social/chorus/storage"
)

func main() {
	apiPort := flag.Int("api-port", 3000, "API server port")
	natsURL := flag.String("nats", "nats://localhost:4222", "NATS URL")
	dataDir := flag.String("data-dir", "./data/chorus", "Badger data directory")
	inMemory := flag.Bool("in-memory", false, "Run the store in memory")
	model := flag.String("model", config.DefaultModel(), "Default judge/persona model")
	seed := flag.Bool("seed", false, "Seed the genesis cast on first run")
	flag.Parse()

	var store storage.Store
	var err error
	if *inMemory {
		store, err = storage.NewInMemory()
	} else {
		store, err = storage.GetDBStorage(*dataDir)
	}
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Initialize NATS before bootstrapping the rest of the services.
	communication.SetupNATS(*natsURL)
	defer communication.NatsBrokerInstance.Close()

	var completer ai.Completer
	if client := ai.NewClient(); client != nil {
		completer = client
	}
	judge := ai.NewJudge(completer, *model)

	service := agent.NewService(store, completer)
	wakes := communication.NewWakeDispatcher(communication.NatsBrokerInstance)
	service.SetAsyncWaker(wakes)

	dispatcher := cascade.NewDispatcher(store, judge, service)

	ctx := context.Background()
	if _, err := wakes.StartWorker(ctx, service); err != nil {
		log.Fatalf("Failed to start wake worker: %v", err)
	}

	if *seed {
		if err := seedGenesis(store, *model); err != nil {
			log.Fatalf("Failed to seed: %v", err)
		}
	}

	handlers.Init(store, service, dispatcher)
	log.Printf("chorusd listening on :%d", *apiPort)
	if err := api.StartServer(*apiPort); err != nil {
		log.Fatalf("API server: %v", err)
	}
}
