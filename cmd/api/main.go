// Package main implements the askcv API server: the chat endpoint, the
// embedded web UI, health, metrics and the optional admin surfaces.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/askcv/askcv/engine/chunker"
	"github.com/askcv/askcv/engine/embed"
	"github.com/askcv/askcv/engine/index"
	"github.com/askcv/askcv/engine/ingest"
	"github.com/askcv/askcv/engine/llm"
	"github.com/askcv/askcv/engine/loader"
	"github.com/askcv/askcv/engine/prompt"
	"github.com/askcv/askcv/engine/rag"
	"github.com/askcv/askcv/engine/semantic"
	"github.com/askcv/askcv/pkg/config"
	"github.com/askcv/askcv/pkg/metrics"
	"github.com/askcv/askcv/pkg/resilience"
)

func main() {
	configPath := flag.String("config", os.Getenv("ASKCV_CONFIG"), "path to a YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger.Info("configuration", "config", cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	go metrics.CollectRuntime(ctx, reg, 15*time.Second)

	// --- Embedding model ---
	embedder, err := embed.New(cfg)
	if err != nil {
		return err
	}
	dim, err := embed.Probe(ctx, embedder)
	if err != nil {
		return err
	}
	logger.Info("embedder ready", "model", embedder.ModelInfo(), "dimension", dim)

	// --- Index ---
	deps := ingest.Deps{
		Loader: loader.New(loader.Sources{
			PDFPath:     cfg.Sources.CVPDF,
			ProfilePath: cfg.Sources.ProfileFile,
			Profile:     loader.DefaultProfile,
		}, logger),
		Embedder: embedder,
		Window:   chunker.Window{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap},
		Workers:  cfg.Embed.Workers,
		Dir:      cfg.Index.Dir,
		Metrics:  reg,
		Logger:   logger,
	}
	var vectors *semantic.VectorStore
	if cfg.Index.Backend == config.BackendQdrant {
		vectors, err = semantic.New(cfg.Index.QdrantURL, cfg.Index.QdrantCollection)
		if err != nil {
			return err
		}
		defer vectors.Close()
		deps.Vectors = vectors
	}
	builder := ingest.NewBuilder(deps)

	idx, err := builder.LoadOrBuild(ctx)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	handle := index.NewHandle(idx)

	var searcher rag.Searcher = handle
	if vectors != nil {
		searcher = vectors
	}

	// --- LLM ---
	gen, err := llm.New(cfg)
	if err != nil {
		return err
	}
	breaker := resilience.NewBreaker(llm.BreakerOpts(func(from, to resilience.State) {
		logger.Warn("llm circuit breaker", "from", from.String(), "to", to.String())
	}))

	svc := rag.New(
		rag.NewRetriever(embedder, searcher, cfg.TopK),
		prompt.New(prompt.Persona(cfg.Sources.OwnerName)),
		llm.NewGuarded(gen, cfg.LLM.Timeout, breaker),
		rag.Options{Model: cfg.LLM.Model, TopK: cfg.TopK},
		reg,
		logger,
	)

	// --- NATS (optional) ---
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("askcv-api"))
		if err != nil {
			logger.Warn("nats unavailable, admin subjects disabled", "url", cfg.NATSURL, "err", err)
		} else {
			defer nc.Drain()
			if _, err := ingest.Serve(nc, builder, handle, rebuildTimeout); err != nil {
				return fmt.Errorf("nats: %w", err)
			}
			if cfg.Index.Dir != "" {
				want := index.Expect{Dimension: dim, ModelInfo: embedder.ModelInfo()}
				if _, err := ingest.Follow(nc, handle, cfg.Index.Dir, want, logger); err != nil {
					return fmt.Errorf("nats: %w", err)
				}
			}
			logger.Info("nats connected", "url", cfg.NATSURL, "subject", ingest.RebuildSubject)
		}
	}

	a := &api{chat: svc, index: handle, reg: reg, logger: logger}
	if cfg.Server.AdminRebuild {
		rebuild := builder.RebuildFunc(handle)
		a.rebuild = func(ctx context.Context) ingest.RebuildEvent {
			ev := rebuild(ctx)
			ingest.Announce(ctx, nc, ev, logger)
			return ev
		}
	}

	// --- gRPC health (optional) ---
	if cfg.Server.GRPCHealthPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCHealthPort))
		if err != nil {
			return fmt.Errorf("grpc health listen: %w", err)
		}
		gs, hs := newHealthServer(handle)
		go func() {
			logger.Info("grpc health server starting", "addr", lis.Addr().String())
			if err := gs.Serve(lis); err != nil {
				logger.Error("grpc health server", "err", err)
			}
		}()
		defer func() {
			hs.Shutdown()
			gs.GracefulStop()
		}()
	}

	// --- HTTP ---
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.handler(cfg.Server),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLM.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", srv.Addr, "chunks", idx.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
