package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cokehq/coke-agents/internal/ai"
	"github.com/cokehq/coke-agents/internal/api"
	"github.com/cokehq/coke-agents/internal/coke"
	"github.com/cokehq/coke-agents/internal/config"
	"github.com/cokehq/coke-agents/internal/scheduler"
	"github.com/cokehq/coke-agents/internal/state"
	"github.com/cokehq/coke-agents/internal/web"
)

func main() {
	cfg := config.Load()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}

	db, err := state.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := state.NewStore(db)
	sched := scheduler.NewScheduler(store)

	var llmClient *ai.Client
	if cfg.LLMAPIKey != "" {
		llmClient, err = ai.NewClient(ai.Config{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			Aliases: cfg.LLMModelAliases,
		})
		if err != nil {
			log.Printf("LLM disabled: %v", err)
		}
	} else {
		log.Printf("LLM disabled: no api key configured")
	}

	service := coke.NewService(llmClient, store, sched)

	runner := scheduler.NewRunner(sched, store, service,
		scheduler.WithInterval(cfg.CheckInterval),
		scheduler.WithInactiveAfter(cfg.InactiveAfter),
		scheduler.WithCheckinCooldown(cfg.CheckinCooldown),
		scheduler.WithRetrievalGrace(cfg.RetrievalGrace),
	)
	runner.Start()

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	apiServer := &api.Server{
		Service:   service,
		Store:     store,
		Scheduler: sched,
		Runner:    runner,
		StartedAt: time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Handler())
	mux.Handle("/", (&web.Server{Dir: cfg.WebDir}).Handler())

	serverCtx, serverCancel := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return serverCtx
		},
	}

	go func() {
		log.Printf("coked listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	serverCancel()
	runner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	_ = httpServer.Close()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
