package main

import (
	"flag"
	"io"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/jonboulle/clockwork"

	"giveaway/internal/config"
	"giveaway/internal/handlers"
	"giveaway/internal/services"
	"giveaway/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	// 1. Load and validate the configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	lg := logger.Init("giveaway", cfg.Logging.Verbose, false, io.Discard)
	defer lg.Close()

	// 2. Open the event store.
	var store storage.Store
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err = storage.NewSQLite(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open sqlite store: %v", err)
		}
	default:
		store = storage.NewMemory()
	}
	defer store.Close()

	// 3. Initialize the treasury ledger and the giveaway engine.
	ledger := services.NewLedger()
	service, err := services.NewGiveawayService(store, ledger, services.CryptoEntropy{}, clockwork.NewRealClock(), services.Options{
		OwnerAccountID:           cfg.Engine.OwnerAccountID,
		CloseRequiresDistributed: cfg.Engine.CloseRequiresDistributed,
		WhitelistedTokens:        cfg.Engine.WhitelistedTokens,
	})
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	// 4. Initialize the HTTP handler and set up the Gin router.
	httpHandler := handlers.NewHTTPHandler(service, ledger)
	r := gin.Default()
	r.Use(httpHandler.RequestIDMiddleware())

	// 5. Register read routes, then the mutating routes behind the caller
	// identity middleware.
	httpHandler.RegisterReadRoutes(r)
	callRoutes := r.Group("/")
	callRoutes.Use(httpHandler.CallerMiddleware())
	httpHandler.RegisterCallRoutes(callRoutes)

	// 6. Run the server.
	logger.Infof("Server starting on %s", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
