// journal-inspect dumps the command journal of a prevaldb data directory:
// one line per journaled command with its sequence number, command id,
// operation name and payload size. Useful when deciding whether a data
// directory can be recovered or which command broke a model.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/INLOpen/prevaldb/journal"
	"github.com/INLOpen/prevaldb/storage"
)

func main() {
	dataDir := flag.String("data-dir", "", "Path to the prevaldb data directory (required)")
	logLevel := flag.String("log-level", "warn", "Logging level (debug, info, warn, error)")
	flag.Parse()

	if *dataDir == "" {
		fmt.Println("Usage: journal-inspect -data-dir <path_to_data_dir>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var level slog.Level
	switch strings.ToLower(*logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		fmt.Printf("Invalid log level: %s. Defaulting to warn.\n", *logLevel)
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*dataDir, logger, os.Stdout); err != nil {
		logger.Error("Inspection failed", "error", err)
		os.Exit(1)
	}
}

func run(dataDir string, logger *slog.Logger, out io.Writer) error {
	store, err := storage.NewFileSystemStorage(filepath.Join(dataDir, "journal"))
	if err != nil {
		return fmt.Errorf("failed to open journal store: %w", err)
	}

	// Read-only recovery: inspecting must never create or seal a segment in
	// the directory, which may belong to a running engine.
	records, err := journal.ReadAll(store, logger)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	fmt.Fprintf(out, "journal: %s\n", store.Path())
	fmt.Fprintf(out, "records: %d\n\n", len(records))

	for _, rec := range records {
		fmt.Fprintf(out, "%8d  %-36s  %-24s  %d bytes\n", rec.SeqNum, rec.CommandID, rec.Name, len(rec.Payload))
	}
	return nil
}
