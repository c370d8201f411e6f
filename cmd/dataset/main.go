// Command dataset renders the record files into the training documents the
// product and user models are tuned on, one JSON object per line.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go.uber.org/zap"

	"ecom-support/internal/adapter/store"
	"ecom-support/internal/domain/dialogue"
	"ecom-support/internal/domain/entity"
)

type document struct {
	Text string `json:"text"`
}

func main() {
	kind := flag.String("kind", "product", "record kind to render: product or user")
	in := flag.String("in", "", "record file (defaults to assets/products.json or assets/user.json)")
	out := flag.String("out", "", "output JSONL file (defaults to stdout)")
	layoutName := flag.String("layout", "shared", "prompt layout: shared or schema")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	layout, err := dialogue.ParseLayout(*layoutName)
	if err != nil {
		logger.Fatal("invalid layout", zap.Error(err))
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Fatal("failed to create output", zap.Error(err))
		}
		defer f.Close()
		w = f
	}

	n, err := run(entity.Kind(*kind), *in, layout, w, logger)
	if err != nil {
		logger.Fatal("dataset export failed", zap.Error(err))
	}
	logger.Info("dataset written", zap.String("kind", *kind), zap.Int("documents", n))
}

func run(kind entity.Kind, path string, layout dialogue.Layout, w io.Writer, logger *zap.Logger) (int, error) {
	switch kind {
	case entity.KindProduct:
		if path == "" {
			path = "assets/products.json"
		}
		records, err := store.LoadProducts(path, logger)
		if err != nil {
			return 0, err
		}
		return write(w, layout, records)
	case entity.KindUser:
		if path == "" {
			path = "assets/user.json"
		}
		// Every question/answer pair is a training document, so duplicates
		// by product name are kept here.
		records, err := store.ReadRecords[entity.UserRecord](path, logger)
		if err != nil {
			return 0, err
		}
		return write(w, layout, records)
	default:
		return 0, fmt.Errorf("%w: %q", entity.ErrUnknownKind, kind)
	}
}

func write[R entity.Record](w io.Writer, layout dialogue.Layout, records []R) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, r := range records {
		if err := enc.Encode(document{Text: layout.TrainingPrompt(r)}); err != nil {
			return 0, err
		}
	}
	return len(records), bw.Flush()
}
