package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/calaix/esmena/pkg/glossary"
)

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	csvPath := fs.String("csv", "", "glossary CSV export to vectorize")
	delimiter := fs.String("delimiter", ";", "CSV field delimiter")
	encoding := fs.String("encoding", "", "CSV encoding (default UTF-8, e.g. windows-1252)")
	fs.Parse(args)

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  esmena build --csv <glossari.csv> [--config <config.yaml>] [--delimiter ';'] [--encoding <name>]")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := loadConfig(*cfgPath, logger)

	eng, submissions := buildEngine(cfg, logger)
	if submissions != nil {
		submissions.Close()
	}

	opts := glossary.CSVOptions{Encoding: *encoding}
	if d := []rune(*delimiter); len(d) > 0 {
		opts.Delimiter = d[0]
	}

	entries, rows, err := glossary.ReadCSVFile(*csvPath, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error llegint %s: %v\n", *csvPath, err)
		os.Exit(1)
	}
	fmt.Printf("[%s] %d files, %d entrades vàlides\n", *csvPath, rows, len(entries))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	fmt.Println("Vectoritzant el glossari...")
	report, err := eng.RebuildEntries(ctx, entries, rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !report.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", report.Error)
		os.Exit(1)
	}

	fmt.Printf("OK: %d entrades, %d dimensions (%s)\n", report.VectorizedEntries, report.VectorDimensions, report.EmbeddingModel)
	fmt.Printf("    índex %s, %s en %s\n", report.IndexType, report.IndexSize, report.ProcessingTime)
}
