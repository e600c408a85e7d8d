package main

import (
	"context"
	"log"
	"os"
	"time"

	"inquest/internal/api"
	"inquest/internal/auto"
	"inquest/internal/config"
	"inquest/internal/llm"
	"inquest/internal/pipeline"
	"inquest/internal/rag"
	"inquest/internal/redis"
	"inquest/internal/search"
	"inquest/internal/session"
	"inquest/internal/storage"
	"inquest/internal/stream"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("INQUEST_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, closeLog := config.SetupLogger(cfg.BasicConfig.LogFile, config.ParseLogLevel(cfg.BasicConfig.LogLevel))
	defer closeLog()

	dbType := os.Getenv("INQUEST_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	docs := storage.NewDocStore(db, dbType)

	rdb, err := redis.NewClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()
	cacheTTL := time.Duration(cfg.Search.CacheTTLMin) * time.Minute
	searcher := search.NewCachedSearcher(docs, rdb, cacheTTL, logger)

	// A missing or misconfigured model backend is not fatal; the pipeline
	// keeps answering through the extractive fallback.
	var client llm.Client
	modelClient, err := llm.NewModelClient(context.Background(), cfg.LLM)
	if err != nil {
		logger.Warn("model backend unavailable, using extractive fallback only", "error", err)
		client = &llm.Unavailable{Reason: err.Error()}
	} else {
		client = modelClient
	}

	sessions := session.NewStore()
	synth := rag.NewSynthesizer(client, cfg.LLMTimeout(), logger)
	dispatcher := stream.NewDispatcher(stream.DefaultChunkWords, 0)
	pipe := pipeline.New(sessions, searcher, synth, dispatcher, pipeline.Options{
		MaxResults:    cfg.MaxResults(),
		ExcerptLength: cfg.ExcerptLength(),
		SearchTimeout: cfg.SearchTimeout(),
	}, logger)
	invest := auto.NewController(pipe, cfg.AutoMax(), cfg.SettleDelay(), nil, logger)

	handlers := api.NewHandler(pipe, invest, sessions, docs, searcher, client, cfg.MaxResults(), logger)

	router := gin.Default()
	router.Use(api.RateLimit(rdb, cfg.BasicConfig.RateLimit, logger))
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
