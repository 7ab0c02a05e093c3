package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaignbot/api"
	"campaignbot/campaign"
	"campaignbot/common"
	"campaignbot/config"
	"campaignbot/content"
	"campaignbot/identity"
	"campaignbot/kafka"
	"campaignbot/orchestrator"
	"campaignbot/state"
	"campaignbot/statestore"
	"campaignbot/types"
	"campaignbot/verify"
	"campaignbot/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	log.SetOutput(os.Stderr)

	// Parse command-line flags
	port := flag.String("port", "8080", "control API port")
	statePath := flag.String("state", "", "checkpoint file path (overrides STATE_PATH)")
	clearState := flag.Bool("clear-state", false, "reset the checkpoint before starting")
	singleCampaign := flag.String("campaign", "", "restrict the run to one campaign id and disable auto-restart")
	concurrency := flag.Int("concurrency", 0, "batch concurrency K (overrides BATCH_SIZE)")
	flag.Parse()

	cfg := config.FromEnv()
	if *statePath != "" {
		cfg.StatePath = *statePath
	}
	if *singleCampaign != "" {
		cfg.SingleCampaignID = *singleCampaign
	}
	if *concurrency > 0 {
		cfg.BatchSize = *concurrency
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	store, err := statestore.New(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open state store: %v", err)
	}
	if *clearState {
		if err := store.Clear(); err != nil {
			log.Fatalf("Failed to clear state: %v", err)
		}
		log.Println("Checkpoint cleared")
	}

	// Shared Redis client for owner + content records; both fall back
	// to in-memory stores when Redis is not configured.
	redisClient := content.NewRedisClientFromEnv()
	var ownerStore identity.OwnerStore
	var contentStore content.Store
	if redisClient != nil {
		ownerStore = identity.NewRedisOwnerStore(redisClient)
		contentStore = content.NewRedisStore(redisClient, 0)
		log.Println("Using Redis-backed owner and content stores")
	} else {
		ownerStore = identity.NewMemoryOwnerStore()
		contentStore = content.NewMemoryStore()
		log.Println("REDIS_ADDR not set; using in-memory owner and content stores")
	}

	rotator := identity.NewRotator(cfg.IdentityPool, ownerStore)

	// Optional authenticated media storage for verification.
	var media verify.MediaChecker
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		s3c, err := common.NewS3(context.Background(), common.S3Config{
			Region:       os.Getenv("S3_REGION"),
			Profile:      os.Getenv("S3_PROFILE"),
			UsePathStyle: os.Getenv("S3_USE_PATH_STYLE") == "true",
			Bucket:       bucket,
		})
		if err != nil {
			log.Printf("Warning: failed to init S3 client: %v (media checks disabled)", err)
		} else {
			media = s3c
		}
	}

	var approval verify.ApprovalClient
	if url := os.Getenv("APPROVAL_SERVICE_URL"); url != "" {
		approval = verify.NewHTTPApprovalClient(url)
	} else {
		approval = &verify.AutoApprover{Store: contentStore}
		log.Println("APPROVAL_SERVICE_URL not set; auto-approving content")
	}

	verifier := &verify.Pipeline{
		Store:    contentStore,
		Media:    media,
		Approval: approval,
		Window:   config.PersistedWindow,
	}

	gen, err := buildWorker(cfg, contentStore)
	if err != nil {
		log.Fatalf("Failed to build generation worker: %v", err)
	}

	source, closeSource, err := buildSource()
	if err != nil {
		log.Fatalf("Failed to build campaign source: %v", err)
	}
	defer closeSource()

	// Optional Kafka outcome events.
	var events orchestrator.EventSink
	var producer *kafka.Producer
	if brokers := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); brokers != "" {
		producer, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: []string{brokers},
			Topic:   config.GetEnvOrDefault("KAFKA_OUTCOME_TOPIC", "content-outcomes"),
		})
		if err != nil {
			log.Printf("Warning: failed to create Kafka producer: %v (events disabled)", err)
		} else {
			events = producer
		}
	}

	runState := state.NewManager()
	loop := orchestrator.New(cfg, orchestrator.Deps{
		Source:   source,
		Store:    store,
		Rotator:  rotator,
		Worker:   gen,
		Verifier: verifier,
		RunState: runState,
		Events:   events,
	})

	// Control API
	router := api.NewRouter(runState, store, loop.Halt())
	server := &http.Server{Addr: ":" + *port, Handler: router}
	go func() {
		log.Printf("Control API listening on :%s", *port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Control API error: %v", err)
		}
	}()

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received %s, shutting down...", sig)
		cancel()
	}()

	err = loop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Orchestrator stopped: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Control API shutdown error: %v", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Printf("Kafka producer close error: %v", err)
		}
	}
	log.Println("Orchestrator stopped")
}

// buildWorker picks the generation boundary: the external pipeline
// service when configured, otherwise direct Cohere text generation.
func buildWorker(cfg config.OrchestratorConfig, sink content.Store) (worker.Worker, error) {
	if url := os.Getenv("GENERATION_SERVICE_URL"); url != "" {
		log.Printf("Using generation pipeline at %s", url)
		return worker.NewPipelineWorker(url, cfg.Options), nil
	}
	if key := os.Getenv("COHERE_API_KEY"); key != "" {
		log.Println("GENERATION_SERVICE_URL not set; generating text directly via Cohere")
		return worker.NewCohereWorker(key, os.Getenv("COHERE_MODEL"), cfg.Options, sink), nil
	}
	return nil, fmt.Errorf("set GENERATION_SERVICE_URL or COHERE_API_KEY")
}

// buildSource picks the campaign backlog source: Postgres, the
// campaign HTTP service, or a local JSON file, in that order.
func buildSource() (campaign.Source, func(), error) {
	noop := func() {}
	if conn := os.Getenv("CAMPAIGN_DB_URL"); conn != "" {
		src, err := campaign.NewPostgresSource(context.Background(), conn)
		if err != nil {
			return nil, noop, err
		}
		log.Println("Using Postgres campaign source")
		return src, src.Close, nil
	}
	if url := os.Getenv("CAMPAIGN_SERVICE_URL"); url != "" {
		log.Printf("Using campaign service at %s", url)
		return campaign.NewHTTPSource(url), noop, nil
	}

	path := config.GetEnvOrDefault("CAMPAIGNS_FILE", "campaigns.json")
	campaigns, err := loadCampaignsFile(path)
	if err != nil {
		return nil, noop, err
	}
	log.Printf("Using %d campaign(s) from %s", len(campaigns), path)
	return &campaign.StaticSource{Campaigns: campaigns}, noop, nil
}

func loadCampaignsFile(path string) ([]types.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read campaigns file: %w", err)
	}
	var campaigns []types.Campaign
	if err := json.Unmarshal(data, &campaigns); err != nil {
		return nil, fmt.Errorf("parse campaigns file: %w", err)
	}
	return campaigns, nil
}
