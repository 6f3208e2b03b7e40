// Command ingest builds the index offline: it reads the CV sources, chunks
// and embeds them, writes the artifacts to the index directory and, with the
// qdrant backend, syncs the collection. With NATS_URL set, running servers
// are told to reload the new build.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/askcv/askcv/engine/chunker"
	"github.com/askcv/askcv/engine/embed"
	"github.com/askcv/askcv/engine/index"
	"github.com/askcv/askcv/engine/ingest"
	"github.com/askcv/askcv/engine/loader"
	"github.com/askcv/askcv/engine/semantic"
	"github.com/askcv/askcv/pkg/config"
	"github.com/askcv/askcv/pkg/metrics"
)

func main() {
	configPath := flag.String("config", os.Getenv("ASKCV_CONFIG"), "path to a YAML config file")
	force := flag.Bool("force", false, "rebuild even when valid artifacts exist")
	printMetrics := flag.Bool("metrics", false, "print build metrics on exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := validate(cfg); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	reg := metrics.New()
	if err := run(cfg, *force, reg, log); err != nil {
		log.Error("ingest failed", "err", err)
		os.Exit(1)
	}
	if *printMetrics {
		fmt.Print(reg.Render())
	}
}

// validate checks what an offline build needs; the LLM settings are irrelevant here.
func validate(cfg *config.Config) error {
	c := *cfg
	c.LLM = config.Default().LLM
	c.LLM.Provider = config.ProviderOllama
	return c.Validate()
}

func run(cfg *config.Config, force bool, reg *metrics.Registry, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := embed.New(cfg)
	if err != nil {
		return err
	}
	if _, err := embed.Probe(ctx, embedder); err != nil {
		return err
	}

	deps := ingest.Deps{
		Loader: loader.New(loader.Sources{
			PDFPath:     cfg.Sources.CVPDF,
			ProfilePath: cfg.Sources.ProfileFile,
			Profile:     loader.DefaultProfile,
		}, log),
		Embedder: embedder,
		Window:   chunker.Window{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap},
		Workers:  cfg.Embed.Workers,
		Dir:      cfg.Index.Dir,
		Metrics:  reg,
		Logger:   log,
	}
	if cfg.Index.Backend == config.BackendQdrant {
		vs, err := semantic.New(cfg.Index.QdrantURL, cfg.Index.QdrantCollection)
		if err != nil {
			return err
		}
		defer vs.Close()
		deps.Vectors = vs
	}
	b := ingest.NewBuilder(deps)

	start := time.Now()
	var idx *index.Index
	if force {
		idx, err = b.Build(ctx)
	} else {
		idx, err = b.LoadOrBuild(ctx)
	}
	if cfg.NATSURL != "" {
		announce(ctx, cfg.NATSURL, ingest.Event(idx, time.Since(start), err), log)
	}
	return err
}

// announce tells running servers about the build so they reload it.
func announce(ctx context.Context, url string, ev ingest.RebuildEvent, log *slog.Logger) {
	nc, err := nats.Connect(url, nats.Name("askcv-ingest"))
	if err != nil {
		log.Warn("nats unavailable, build not announced", "url", url, "err", err)
		return
	}
	defer nc.Drain()
	ingest.Announce(ctx, nc, ev, log)
}
