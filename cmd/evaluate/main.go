// Command evaluate runs every selected enhancement method over a dataset
// directory and appends each run to the configured run log.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"text/tabwriter"

	"go-ocr-enhancer/internal/analyzer"
	"go-ocr-enhancer/internal/config"
	"go-ocr-enhancer/internal/container"
	"go-ocr-enhancer/internal/logger"
	"go-ocr-enhancer/internal/observer"
	"go-ocr-enhancer/internal/service"

	"github.com/sirupsen/logrus"
)

func main() {
	dir := flag.String("dir", "dataset", "dataset directory to scan for images")
	methodList := flag.String("methods", "", "comma separated methods (default: all)")
	workers := flag.Int("workers", 0, "parallel runs (default: number of CPUs)")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	methods, err := parseMethods(*methodList)
	if err != nil {
		log.Fatalf("Invalid -methods: %v", err)
	}
	samples, err := discoverSamples(*dir)
	if err != nil {
		log.Fatalf("Failed to read dataset: %v", err)
	}
	if len(samples) == 0 {
		log.Fatalf("No images found in %s", *dir)
	}

	ctx := context.Background()
	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer c.Close()

	logger.WithFields(logrus.Fields{
		"dir":     *dir,
		"images":  len(samples),
		"methods": len(methods),
		"workers": *workers,
		"results": cfg.ResultsCSV,
	}).Info("Starting batch evaluation")

	failed := evaluate(ctx, c.Service(), samples, methods, *workers)

	printSummary(os.Stdout, methods, c.Metrics().GetMetrics())
	if failed > 0 {
		logger.WithField("failed_runs", failed).Warn("Some runs failed")
		os.Exit(1)
	}
}

// evaluate runs every sample with every method and returns the number of
// failed runs. Failures are logged and do not stop the batch.
func evaluate(ctx context.Context, svc service.OCRPipelineService, samples []sample, methods []string, workers int) int64 {
	pool := analyzer.NewWorkerPool(workers)
	pool.Start()
	defer pool.Close()

	var failed atomic.Int64
	for _, s := range samples {
		data, err := os.ReadFile(s.Path)
		if err != nil {
			logger.WithError(err).WithField("path", s.Path).Error("Failed to read image")
			failed.Add(int64(len(methods)))
			continue
		}
		for _, m := range methods {
			in := service.RunInput{
				Data:        data,
				Filename:    filepath.Base(s.Path),
				Method:      m,
				GroundTruth: s.GroundTruth,
			}
			pool.Submit(func() {
				if _, err := svc.Run(ctx, in); err != nil {
					failed.Add(1)
					logger.WithError(err).WithFields(logrus.Fields{
						"path":   s.Path,
						"method": in.Method,
					}).Error("Run failed")
				}
			})
		}
	}
	pool.Wait()
	return failed.Load()
}

func printSummary(w io.Writer, methods []string, m observer.Metrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tRUNS\tSCORED\tMEAN ACCURACY\tAVG OCR MS")
	for _, id := range methods {
		s := m.Methods[id]
		acc := "-"
		if s.ScoredRuns > 0 {
			acc = fmt.Sprintf("%.2f%%", s.MeanCharAccuracy*100)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.2f\n", id, s.Runs, s.ScoredRuns, acc, s.AvgProcessingMs)
	}
	tw.Flush()
	fmt.Fprintf(w, "\ncompleted %d, failed %d\n", m.CompletedRuns, m.FailedRuns)
}
