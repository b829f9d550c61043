package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"ijtihad-backend/adapter"
	"ijtihad-backend/api"
	"ijtihad-backend/chat"
	"ijtihad-backend/pipeline"
	"ijtihad-backend/queue"
	"ijtihad-backend/search"
	"ijtihad-backend/store"
	"ijtihad-backend/worker"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Failed to load .env file: %v", err)
	}

	addr := envOr("SERVER_ADDR", ":8080")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	uploadDir := envOr("UPLOAD_DIR", "uploads")
	databaseURL := os.Getenv("DATABASE_URL")

	workerCount, err := strconv.Atoi(os.Getenv("WORKER_COUNT"))
	if err != nil || workerCount <= 0 {
		workerCount = 5
	}

	taskTimeout := 10 * time.Minute
	if raw := os.Getenv("TASK_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid TASK_TIMEOUT %q: %v", raw, err)
		}
		taskTimeout = parsed
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	taskQueue, err := queue.New(ctx, redisAddr)
	if err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer taskQueue.Close()

	// Without DATABASE_URL everything runs on the in-memory store and
	// an empty knowledge base. Useful for local development.
	var (
		taskStore  store.TaskStore
		chatStore  *chat.Store
		collection *search.Collection
	)
	if databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pool.Close()

		taskStore, err = store.NewPostgres(ctx, pool)
		if err != nil {
			log.Fatalf("Failed to initialize task store: %v", err)
		}
		chatStore, err = chat.NewStore(ctx, pool)
		if err != nil {
			log.Fatalf("Failed to initialize chat store: %v", err)
		}
		collection, err = search.LoadFromPostgres(ctx, pool)
		if err != nil {
			log.Fatalf("Failed to load fatwa chunks: %v", err)
		}
		log.Printf("Loaded %d fatwa chunks", collection.Len())
	} else {
		log.Printf("Warning: DATABASE_URL not set, using in-memory task store")
		taskStore = store.NewMemory()
		collection = search.NewCollection()
	}

	geminiBase := envOr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	llm := adapter.NewRetryingLLM(adapter.NewGemini(geminiBase, geminiKey, os.Getenv("GEMINI_MODEL")))
	embedder := adapter.NewGeminiEmbedder(geminiBase, geminiKey, os.Getenv("EMBEDDING_MODEL"))
	ocr := adapter.NewDocumentAI(os.Getenv("DOCAI_PROCESSOR_URL"), os.Getenv("DOCAI_API_KEY"))
	registry := adapter.NewBPJPH(envOr("BPJPH_BASE_URL", "https://bpjph.halal.go.id"))

	executor := pipeline.NewExecutor(ocr, llm, registry, taskStore)

	var wg sync.WaitGroup
	workerPool := &worker.Pool{
		Queue:       taskQueue,
		Executor:    executor,
		TaskTimeout: taskTimeout,
	}
	workerPool.Start(ctx, workerCount, &wg)

	server := api.NewServer(addr, api.Config{
		Queue:      taskQueue,
		Store:      taskStore,
		UploadDir:  uploadDir,
		Embedder:   embedder,
		LLM:        llm,
		Collection: collection,
		ChatStore:  chatStore,
	})

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("All workers stopped")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
