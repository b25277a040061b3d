package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"studyhub-service/internal/ai"
	"studyhub-service/internal/app"
	"studyhub-service/internal/config"
	"studyhub-service/internal/domain"
	"studyhub-service/internal/infra/memory"
	pgloader "studyhub-service/internal/infra/postgres"
	redisinfra "studyhub-service/internal/infra/redis"
	transport "studyhub-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.ContentLoader = memory.NewStaticContentLoader(sampleContent())
	if pool != nil {
		loader = pgloader.NewContentLoader(pool)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var content app.ContentRepository
	if redisClient != nil {
		content = redisinfra.NewContentRepository(redisClient, loader, contentTTL)
	} else {
		content = memory.NewContentRepository(loader, contentTTL)
	}

	var ledger app.Ledger
	if redisClient != nil {
		ledger = redisinfra.NewLedger(redisClient)
	} else {
		ledger = memory.NewLedger()
	}

	apiKey := cfg.Analysis.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	recommender := ai.NewOpenAIRecommender(apiKey, cfg.Analysis.BaseURL, cfg.Analysis.Model)

	service := app.NewAssessmentService(ledger, content, recommender, app.Options{
		AllowRepeats:  !cfg.Assessment.DedupeRepeats,
		WeakThreshold: cfg.Assessment.WeakThreshold,
		RankingLimit:  cfg.Assessment.RankingLimit,
	})
	handler := transport.NewHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleContent provides a minimal content set for running without Postgres.
func sampleContent() ([]domain.Subject, map[string]domain.Question, map[string]domain.User) {
	subjects := []domain.Subject{
		{ID: "math", Name: "Mathematics", Icon: "calculator", Color: "#4F46E5"},
		{ID: "physics", Name: "Physics", Icon: "atom", Color: "#059669"},
	}
	questions := map[string]domain.Question{
		"q1": {
			ID:         "q1",
			SubjectID:  "math",
			Difficulty: "easy",
			Text:       "What is 2 + 2?",
			Options: []domain.Option{
				{Text: "3", Correct: false},
				{Text: "4", Correct: true},
				{Text: "5", Correct: false},
			},
			Explanation: "Adding two and two gives four.",
		},
	}
	users := map[string]domain.User{
		"u1": {ID: "u1", Name: "Alice", Email: "alice@example.com", WeeklyGoal: 50, CreatedAt: time.Now()},
	}
	return subjects, questions, users
}
