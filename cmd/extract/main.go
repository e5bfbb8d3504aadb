// Command extract runs a single business card image through the vision
// model and writes the fixed-schema extraction JSON to a file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardex-ai/cardex/engine/extract"
	"github.com/cardex-ai/cardex/pkg/imgsrc"
)

func main() {
	var (
		image   = flag.String("image", "", "card image path or URL (required)")
		out     = flag.String("out", "card.json", "output JSON file")
		model   = flag.String("model", extract.DefaultModel, "OpenRouter extraction model")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if *image == "" {
		fmt.Fprintln(os.Stderr, "usage: extract -image <path-or-url> [-out card.json]")
		os.Exit(2)
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		log.Error("OPENROUTER_API_KEY is required")
		os.Exit(1)
	}

	if err := run(*image, *out, *model, apiKey, *timeout, log); err != nil {
		log.Error("extraction failed", "error", err)
		os.Exit(1)
	}
}

func run(image, out, model, apiKey string, timeout time.Duration, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	data, ref, err := imgsrc.New().Load(ctx, image)
	if err != nil {
		return err
	}
	log.Info("image loaded", "hash", ref.Hash, "mime", ref.MimeType, "bytes", ref.Size)

	info, err := extract.NewClient(apiKey, model).ExtractCard(ctx, data, ref.MimeType)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}

	log.Info("card written", "file", out,
		"name", info.PrimaryInfo.Name.Value,
		"company", info.PrimaryInfo.Company.TextValue,
	)
	return nil
}
