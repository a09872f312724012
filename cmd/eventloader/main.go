// Command eventloader appends raw events from a JSONL file (or stdin) to
// the raw_events table. Loads are append-only and re-runnable: duplicate
// rows are collapsed at read time, never at write time.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/mkorzen/poly-pnl/internal/config"
	"github.com/mkorzen/poly-pnl/internal/database"
	"github.com/mkorzen/poly-pnl/internal/ingest"
	"github.com/mkorzen/poly-pnl/internal/model"
)

// eventRow is one JSONL input line.
type eventRow struct {
	SourceID    string  `json:"source_id"`
	Wallet      string  `json:"wallet"`
	MarketID    string  `json:"market_id"`
	Outcome     int     `json:"outcome"`
	TokenAmount float64 `json:"token_amount"`
	CashAmount  float64 `json:"cash_amount"`
	Timestamp   int64   `json:"ts"`
	Kind        string  `json:"kind"`
}

func main() {
	configPath := flag.String("config", "configs/reconciler.local.yaml", "path to config file")
	filePath := flag.String("file", "-", "JSONL event file, - for stdin")
	batchSize := flag.Int("batch-size", 1000, "rows per write batch")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var in io.Reader = os.Stdin
	if *filePath != "-" {
		f, err := os.Open(*filePath)
		if err != nil {
			logger.Error("failed to open event file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	buffer := ingest.NewBuffer[model.RawEvent](*batchSize * 2)
	writer := ingest.NewWriter(ingest.WriterConfig{
		BatchSize:     *batchSize,
		FlushInterval: time.Second,
	}, buffer, pool, logger)
	if err := writer.Start(ctx); err != nil {
		logger.Error("failed to start writer", "error", err)
		os.Exit(1)
	}

	var accepted, rejected int
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row eventRow
		if err := json.Unmarshal(line, &row); err != nil {
			logger.Warn("skipping unparseable line", "line", lineNo, "error", err)
			rejected++
			continue
		}
		ev := model.RawEvent{
			SourceID:    row.SourceID,
			Wallet:      row.Wallet,
			RawMarketID: row.MarketID,
			Outcome:     row.Outcome,
			TokenAmount: row.TokenAmount,
			CashAmount:  row.CashAmount,
			Timestamp:   row.Timestamp,
			Kind:        model.EventKind(row.Kind),
		}
		if ev.SourceID == "" || ev.Wallet == "" || !ev.Kind.Valid() {
			logger.Warn("skipping invalid event", "line", lineNo, "source_id", ev.SourceID, "kind", ev.Kind)
			rejected++
			continue
		}

		buffer.Push(ev)
		accepted++
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read input failed", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := writer.Stop(stopCtx); err != nil {
		logger.Error("writer stop failed", "error", err)
		os.Exit(1)
	}

	stats := writer.Stats()
	logger.Info("load complete",
		"accepted", accepted,
		"rejected", rejected,
		"rows_written", stats.RowsWritten,
		"batches", stats.BatchesWritten,
		"write_errors", stats.WriteErrors,
	)
	if stats.WriteErrors > 0 {
		os.Exit(1)
	}
	fmt.Printf("loaded %d events\n", stats.RowsWritten)
}
