// Command ingest watches a directory for business card images and runs them
// through the extraction pipeline into Qdrant and Neo4j. With -nats it also
// consumes queued ingest requests.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/cardex-ai/cardex/engine/domain"
	"github.com/cardex-ai/cardex/engine/extract"
	"github.com/cardex-ai/cardex/engine/graph"
	"github.com/cardex-ai/cardex/engine/ingest"
	"github.com/cardex-ai/cardex/engine/semantic"
	"github.com/cardex-ai/cardex/pkg/fn"
	"github.com/cardex-ai/cardex/pkg/gemini"
	"github.com/cardex-ai/cardex/pkg/imgsrc"
	"github.com/cardex-ai/cardex/pkg/metrics"
)

var met = metrics.New()

var (
	mFilesProcessed = met.Counter("cardex_ingest_files_processed_total", "Card images processed")
	mCardsStored    = met.Counter("cardex_ingest_cards_stored_total", "Cards stored")
	mErrorsTotal    = met.Counter("cardex_ingest_errors_total", "Failed card ingestions")
	mLastScan       = met.Gauge("cardex_ingest_last_scan_timestamp", "Epoch of last directory scan")
	mQueueDepth     = met.Gauge("cardex_ingest_queue_depth", "Images waiting to process")
	mPipelineDur    = met.Histogram("cardex_ingest_pipeline_duration_seconds", "Per-card pipeline time", nil)
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

// outcome is the per-image result of a scan batch. The stage itself never
// fails so one bad image cannot abort its batch.
type outcome struct {
	path   string
	record domain.CardRecord
	err    error
}

func main() {
	var (
		dataDir      = flag.String("dir", "/tmp/cardex-inbox", "directory to watch for card images")
		qdrantAddr   = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection   = flag.String("collection", "business_cards", "Qdrant collection name")
		embedDims    = flag.Int("dims", 3072, "embedding vector size")
		embedModel   = flag.String("embed-model", gemini.DefaultModel, "Gemini embedding model")
		extractModel = flag.String("extract-model", extract.DefaultModel, "OpenRouter extraction model")
		neo4jURL     = flag.String("neo4j", "neo4j://localhost:7687", "Neo4j bolt URL")
		neo4jUser    = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass    = flag.String("neo4j-pass", "password", "Neo4j password")
		natsURL      = flag.String("nats", "", "NATS URL; enables queue consumption")
		interval     = flag.Duration("interval", 30*time.Second, "scan interval")
		workers      = flag.Int("workers", 4, "concurrent card pipelines per batch")
		batchSize    = flag.Int("batch", 16, "images per processing batch")
		metricsPort  = flag.Int("metrics-port", 9091, "metrics server port")
		stateFile    = flag.String("state", "/tmp/cardex-inbox/.ingest-state.json", "processed files state")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	geminiKey := os.Getenv("GEMINI_API_KEY")
	openrouterKey := os.Getenv("OPENROUTER_API_KEY")
	if geminiKey == "" || openrouterKey == "" {
		log.Error("GEMINI_API_KEY and OPENROUTER_API_KEY are required")
		os.Exit(1)
	}

	met.ServeAsync(*metricsPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer driver.Close(ctx)

	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, *embedDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", *embedDims)

	deps := ingest.Deps{
		Loader:    imgsrc.New(),
		Extractor: extract.NewClient(openrouterKey, *extractModel),
		Embedder:  gemini.NewEmbedClient(geminiKey, *embedModel),
		Vector:    vs,
		Contacts:  graph.New(driver),
		Logger:    log,
	}
	pipeline := ingest.NewPipeline(deps)

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		sub, err := ingest.StartConsumer(nc, deps)
		if err != nil {
			log.Error("nats subscribe failed", "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
		log.Info("consuming ingest queue", "subject", ingest.IngestSubject)
	}

	processed := loadState(*stateFile)
	os.MkdirAll(*dataDir, 0o755)
	log.Info("watching for card images", "dir", *dataDir, "interval", *interval)

	perImage := func(ctx context.Context, path string) fn.Result[outcome] {
		start := time.Now()
		defer mPipelineDur.Since(start)
		record, err := pipeline(ctx, path).Unwrap()
		return fn.Ok(outcome{path: path, record: record, err: err})
	}
	batch := fn.BatchStage(*workers, fn.Stage[string, outcome](perImage))

	scan := func() {
		mLastScan.Set(time.Now().Unix())

		pending := pendingImages(*dataDir, processed, log)
		if len(pending) == 0 {
			return
		}
		mQueueDepth.Set(int64(len(pending)))
		defer mQueueDepth.Set(0)

		for _, chunk := range fn.Chunk(pending, *batchSize) {
			paths := fn.Map(chunk, func(p pendingImage) string { return p.path })
			outcomes, _ := batch(ctx, paths).Unwrap()

			for i, o := range outcomes {
				mFilesProcessed.Inc()
				if o.err != nil {
					mErrorsTotal.Inc()
					log.Warn("card failed, will retry next scan", "file", chunk[i].name, "error", o.err)
					continue
				}
				mCardsStored.Inc()
				processed[chunk[i].key] = true
				log.Info("card stored", "file", chunk[i].name, "card_id", o.record.ID)
			}
			saveState(*stateFile, processed)
		}
	}

	scan()
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

type pendingImage struct {
	path string
	name string
	key  string
}

func pendingImages(dir string, processed map[string]bool, log *slog.Logger) []pendingImage {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error("readdir failed", "error", err)
		return nil
	}

	var out []pendingImage
	for _, e := range entries {
		if e.IsDir() || e.Name()[0] == '.' || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key := fmt.Sprintf("%s:%d", e.Name(), info.Size())
		if processed[key] {
			continue
		}
		out = append(out, pendingImage{
			path: filepath.Join(dir, e.Name()),
			name: e.Name(),
			key:  key,
		})
	}
	return out
}

func loadState(path string) map[string]bool {
	state := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return state
	}
	json.Unmarshal(data, &state)
	return state
}

func saveState(path string, state map[string]bool) {
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	os.WriteFile(path, data, 0o644)
}
