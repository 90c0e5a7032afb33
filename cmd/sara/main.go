package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ezdanlabs/sara/internal/agent"
	"github.com/ezdanlabs/sara/internal/bridge"
	"github.com/ezdanlabs/sara/internal/calendar"
	"github.com/ezdanlabs/sara/internal/config"
	"github.com/ezdanlabs/sara/internal/httpapi"
	"github.com/ezdanlabs/sara/internal/observability"
	"github.com/ezdanlabs/sara/internal/prompt"
	"github.com/ezdanlabs/sara/internal/search"
	"github.com/ezdanlabs/sara/internal/session"
	"github.com/ezdanlabs/sara/internal/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	clock := calendar.New(time.Now)
	go clock.Run(runCtx, cfg.ContextRefreshInterval)

	provider, err := search.NewProvider(runCtx, search.Options{
		SearchEndpoint:      cfg.SearchEndpoint,
		SearchAPIKey:        cfg.SearchAPIKey,
		IndexName:           cfg.SearchIndexName,
		DatabaseURL:         cfg.DatabaseURL,
		OpenAIEndpoint:      cfg.OpenAIEndpoint,
		OpenAIAPIKey:        cfg.OpenAIAPIKey,
		EmbeddingDeployment: cfg.EmbeddingDeployment,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	if err != nil {
		log.Fatalf("listing search init failed: %v", err)
	}
	if closer, ok := provider.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	embedder := search.NewEmbedder(search.Options{
		OpenAIEndpoint:      cfg.OpenAIEndpoint,
		OpenAIAPIKey:        cfg.OpenAIAPIKey,
		EmbeddingDeployment: cfg.EmbeddingDeployment,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	if embedder == nil {
		log.Printf("embeddings not configured, listing search is keyword-only")
	}

	dispatcher := tools.NewDispatcher(provider, embedder, metrics, cfg.ToolDispatchTimeout)
	dialer := agent.NewClient(cfg.VoiceLiveEndpoint, cfg.VoiceLiveAPIKey, cfg.VoiceLiveModel)
	prompts := prompt.NewBuilder(cfg.SystemInstructionPath)
	registry := session.NewRegistry()

	calls := bridge.New(dialer, dispatcher, prompts, clock, registry, metrics, bridge.Options{})

	api := httpapi.New(cfg, calls, registry, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
