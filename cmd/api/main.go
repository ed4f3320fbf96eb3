package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/abtest"
	"github.com/bidfit/backend/internal/api/handlers"
	"github.com/bidfit/backend/internal/cache/redis"
	"github.com/bidfit/backend/internal/feed"
	"github.com/bidfit/backend/internal/graph"
	graphneo4j "github.com/bidfit/backend/internal/graph/neo4j"
	"github.com/bidfit/backend/internal/ingestion"
	"github.com/bidfit/backend/internal/metrics"
	"github.com/bidfit/backend/internal/middleware/ratelimit"
	"github.com/bidfit/backend/internal/middleware/security"
	"github.com/bidfit/backend/internal/middleware/validation"
	"github.com/bidfit/backend/internal/scoring"
	"github.com/bidfit/backend/internal/storage/sqlite"
	"github.com/bidfit/backend/pkg/config"
	appLogger "github.com/bidfit/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting BidFit API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var edgeStore graph.EdgeStore = graph.NewMemoryStore()
	if cfg.Neo4j.Enabled {
		neo4jClient, err := graphneo4j.NewClient(
			cfg.Neo4j.URI,
			cfg.Neo4j.Username,
			cfg.Neo4j.Password,
			cfg.Neo4j.Database,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
		}
		defer neo4jClient.Close(context.Background())
		edgeStore = neo4jClient
	}

	var graphCache graph.Cache = graph.NopCache{}
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		graphCache = redisClient
	}

	cacheTTL := time.Duration(cfg.Redis.TTLSec) * time.Second
	graphService := graph.NewService(edgeStore, sqliteClient, graphCache, cacheTTL)

	fitWeights := scoring.FitWeights{
		Version:      cfg.Scoring.Fit.Version,
		Technical:    cfg.Scoring.Fit.Technical,
		Domain:       cfg.Scoring.Fit.Domain,
		Value:        cfg.Scoring.Fit.Value,
		Innovation:   cfg.Scoring.Fit.Innovation,
		Relationship: cfg.Scoring.Fit.Relationship,
	}
	fitService, err := scoring.NewFitService(sqliteClient, fitWeights)
	if err != nil {
		appLogger.Fatal("Invalid fit weights", zap.Error(err))
	}

	partnershipWeights := scoring.PartnershipWeights{
		Version:         cfg.Scoring.Partnership.Version,
		Complementarity: cfg.Scoring.Partnership.Complementarity,
		Coverage:        cfg.Scoring.Partnership.Coverage,
		Geographic:      cfg.Scoring.Partnership.Geographic,
		Size:            cfg.Scoring.Partnership.Size,
		Certification:   cfg.Scoring.Partnership.Certification,
		Relationship:    cfg.Scoring.Partnership.Relationship,
	}
	partnershipService, err := scoring.NewPartnershipService(sqliteClient, partnershipWeights)
	if err != nil {
		appLogger.Fatal("Invalid partnership weights", zap.Error(err))
	}

	policy := scoring.EnhancementPolicy{
		Version:          cfg.Scoring.Enhancement.Version,
		DirectMultiplier: cfg.Scoring.Enhancement.DirectMultiplier,
		MutualIncrement:  cfg.Scoring.Enhancement.MutualIncrement,
		MutualCeiling:    cfg.Scoring.Enhancement.MutualCeiling,
		PathBonusBase:    cfg.Scoring.Enhancement.PathBonusBase,
		MaxImprovement:   cfg.Scoring.Enhancement.MaxImprovement,
	}
	enhancer, err := scoring.NewEnhancer(fitService, partnershipService, graphService, policy)
	if err != nil {
		appLogger.Fatal("Invalid enhancement policy", zap.Error(err))
	}

	feedClient := feed.NewClient(feed.Config{
		BaseURL:  cfg.Feed.BaseURL,
		APIKey:   cfg.Feed.APIKey,
		Source:   cfg.Feed.Source,
		PageSize: cfg.Feed.PageSize,
		Timeout:  time.Duration(cfg.Feed.TimeoutSec) * time.Second,
	})
	processor := ingestion.NewProcessor(feedClient, sqliteClient)

	harness := abtest.NewHarness(fitService, enhancer, partnershipService, enhancer, sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{}))

	fitHandler := handlers.NewFitHandler(fitService, enhancer)
	partnershipHandler := handlers.NewPartnershipHandler(partnershipService, enhancer)
	supplierHandler := handlers.NewSupplierHandler(sqliteClient)
	ingestHandler := handlers.NewIngestHandler(processor)
	graphHandler := handlers.NewGraphHandler(graphService)
	abtestHandler := handlers.NewABTestHandler(harness)
	wsHandler := handlers.NewWebSocketHandler(harness)

	api := app.Group("/api/v1")

	api.Post("/score", fitHandler.HandleScore)
	api.Post("/score/enhanced", fitHandler.HandleScoreEnhanced)

	api.Post("/partners", partnershipHandler.HandlePartners)
	api.Post("/partners/enhanced", partnershipHandler.HandlePartnersEnhanced)

	api.Post("/suppliers", supplierHandler.HandleUpsert)
	api.Get("/suppliers/:id", supplierHandler.HandleGet)

	api.Post("/ingest", ingestHandler.HandleIngest)

	api.Post("/relationships", graphHandler.HandleCreateRelationship)
	api.Get("/relationships/connections", graphHandler.HandleConnections)
	api.Get("/relationships/centrality", graphHandler.HandleCentrality)

	api.Post("/abtest", abtestHandler.HandleCompare)
	api.Get("/abtest/:testID/significance", abtestHandler.HandleSignificance)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/abtest", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
