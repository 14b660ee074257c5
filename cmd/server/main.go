package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/okstone/gomoku/internal/auth"
	"github.com/okstone/gomoku/internal/cache"
	"github.com/okstone/gomoku/internal/database"
	"github.com/okstone/gomoku/internal/handlers"
	"github.com/okstone/gomoku/internal/middleware"
	"github.com/okstone/gomoku/internal/rating"
)

func main() {
	// With key files configured, tokens stay valid across restarts;
	// otherwise a fresh key pair is generated per process.
	privPath := os.Getenv("AUTH_PRIVATE_KEY_FILE")
	pubPath := os.Getenv("AUTH_PUBLIC_KEY_FILE")
	if privPath != "" && pubPath != "" {
		if err := auth.InitFromPath(privPath, pubPath); err != nil {
			log.Fatalf("failed to load auth keys: %v", err)
		}
	} else {
		auth.Init()
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	// Persistence is best-effort by design: without a database or redis the
	// match server still runs, it just keeps ratings in memory and skips
	// spectator discovery.
	var ratingStore rating.Store = rating.NewMemoryStore()
	if os.Getenv("PG_HOST") != "" {
		pool, err := database.Connect(context.Background())
		if err != nil {
			logger.WithError(err).Warn("database unavailable, using in-memory ratings")
		} else {
			defer pool.Close()
			ratingStore = database.NewRatingStore(pool)
			logger.Info("connected to postgres")
		}
	}

	var registry handlers.MatchRegistry = handlers.NoopRegistry{}
	if os.Getenv("REDIS_ADDR") != "" {
		rdb, err := cache.ConnectRedis()
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, active-match registry disabled")
		} else {
			defer rdb.Close()
			registry = cache.NewMatchRegistry(rdb)
			logger.Info("connected to redis")
		}
	}

	settler := rating.NewSettler(ratingStore, logger)
	ms := handlers.NewMatchServer(logger, settler, registry)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, ms),
	)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
