package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/L0ckR/LCT-hackaton/internal/config"
	"github.com/L0ckR/LCT-hackaton/internal/enrich"
	"github.com/L0ckR/LCT-hackaton/internal/events"
	"github.com/L0ckR/LCT-hackaton/internal/logging"
	"github.com/L0ckR/LCT-hackaton/internal/metrics"
	"github.com/L0ckR/LCT-hackaton/internal/models"
	"github.com/L0ckR/LCT-hackaton/internal/pipeline"
	"github.com/L0ckR/LCT-hackaton/internal/scrape"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "reviewparser: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		source      = flag.String("source", "sravni", "review source: sravni, banki or freeform")
		pageSize    = flag.Int("page-size", 20, "reviews per page (1-200)")
		maxPages    = flag.Int("max-pages", 200, "maximum pages to fetch (1-1000)")
		startDate   = flag.String("start-date", "", "stop at reviews older than this ISO-8601 date")
		minDelay    = flag.Float64("min-delay", 1.0, "minimum inter-request delay, seconds")
		maxDelay    = flag.Float64("max-delay", 2.0, "maximum inter-request delay, seconds")
		bankSlug    = flag.String("bank-slug", "", "bank slug override")
		bankName    = flag.String("bank-name", "", "bank display name override")
		fingerPrint = flag.String("finger-print", "", "fingerprint token for the sravni proxy endpoint")
		output      = flag.String("out", "", "output CSV filename")
		freeformURL = flag.String("freeform-url", "", "listing URL for the freeform source")
		sourcesFile = flag.String("sources", "", "optional YAML source registry with per-source defaults")
		doEnrich    = flag.Bool("enrich", false, "run sentiment enrichment on parsed reviews")
		metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics on, empty disables")
	)
	flag.Parse()

	// A missing .env is fine; explicit env always wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	collector, err := metrics.NewPipelineCollector()
	if err != nil {
		return err
	}
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	if *sourcesFile != "" {
		specs, err := config.LoadSources(*sourcesFile)
		if err != nil {
			return err
		}
		for _, spec := range specs {
			if spec.Name != *source {
				continue
			}
			if *bankSlug == "" {
				*bankSlug = spec.Slug
			}
			if *bankName == "" {
				*bankName = spec.BankName
			}
			if *freeformURL == "" {
				*freeformURL = spec.BaseURL
			}
			break
		}
	}

	job := models.ScrapeJob{
		Source:         *source,
		PageSize:       *pageSize,
		MaxPages:       *maxPages,
		MinDelay:       time.Duration(*minDelay * float64(time.Second)),
		MaxDelay:       time.Duration(*maxDelay * float64(time.Second)),
		FingerPrint:    *fingerPrint,
		OutputFilename: *output,
		BankSlug:       *bankSlug,
		BankName:       *bankName,
	}
	if *startDate != "" {
		t, err := time.Parse(time.RFC3339, *startDate)
		if err != nil {
			t, err = time.Parse("2006-01-02", *startDate)
		}
		if err != nil {
			return fmt.Errorf("invalid -start-date: %w", err)
		}
		job.StartDate = &t
	}

	ctx := context.Background()

	agents := scrape.NewUserAgentProvider(time.Now().UnixNano())
	client := scrape.NewClient(agents, cfg.Parser.RequestsPerSecond, cfg.Parser.RequestTimeout)
	ctrl := scrape.NewController(logger)

	modelClient := enrich.NewClient(cfg.Foundation, logger)

	var adapter scrape.Adapter
	switch *source {
	case "sravni":
		adapter = scrape.NewSravniAdapter(client, ctrl, logger)
	case "banki":
		adapter = scrape.NewBankiAdapter(client, ctrl, logger)
	case "freeform":
		if *freeformURL == "" {
			return fmt.Errorf("-freeform-url is required for the freeform source")
		}
		if !modelClient.Available() {
			return fmt.Errorf("freeform source requires FOUNDATION_API_KEY")
		}
		adapter = scrape.NewFreeformAdapter(client, ctrl, modelClient, logger, "freeform", *freeformURL)
	default:
		return fmt.Errorf("unknown source %q", *source)
	}

	sink, err := scrape.NewCSVSink(cfg.Parser.DataDir, logger)
	if err != nil {
		return err
	}

	orchestrator := scrape.NewOrchestrator(adapter, ctrl, sink, collector, logger)
	result, err := orchestrator.Run(ctx, job)
	if err != nil {
		return err
	}

	logger.Info("parse result",
		"source", result.Source,
		"filename", result.Filename,
		"path", result.Path,
		"rows_written", result.RowsWritten)

	if !*doEnrich {
		return nil
	}

	batcher := enrich.NewBatcher(modelClient, cfg.Foundation.EmbeddingBatchSize, cfg.Foundation.BatchInterval, collector, logger)
	batcher.Start(ctx)
	analyzer := enrich.NewAnalyzer(modelClient, collector, logger)
	publisher := events.LogPublisher{Logger: logger}
	pipe := pipeline.New(batcher, analyzer, publisher, logger)

	texts := make([]string, len(result.Rows))
	for i, row := range result.Rows {
		texts[i] = row.ReviewText
	}

	jobID, _ := result.Metadata["job_id"].(string)
	enriched := pipe.ProcessReviews(ctx, jobID, texts)

	var withEmbedding int
	for _, res := range enriched {
		if res.Embedding != nil {
			withEmbedding++
		}
	}
	logger.Info("enrichment finished",
		"reviews", len(enriched),
		"with_embedding", withEmbedding)

	return nil
}
