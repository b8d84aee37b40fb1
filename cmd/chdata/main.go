// Command chdata extracts financial statements from Companies House
// accounts filings and stores them in a local SQLite database.
//
// Usage:
//
//	chdata -archive accounts_2023.zip
//	chdata -archive-dir ./archives
//	chdata -company 02235387,09876543
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	chdata "github.com/RegistryDataLab/go-chdata"
)

func main() {
	var (
		archivePath = flag.String("archive", "", "path to a bulk accounts zip archive")
		archiveDir  = flag.String("archive-dir", "", "directory of bulk accounts zip archives")
		companies   = flag.String("company", "", "comma-separated company numbers to fetch from the registry")
		dbPath      = flag.String("db", "", "SQLite database path (overrides CHDATA_DB_PATH)")
		apiKey      = flag.String("api-key", "", "Companies House API key (overrides CH_API_KEY)")
		dryRun      = flag.Bool("dry-run", false, "parse and assemble but do not write to the database")
		verbose     = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	cfg := chdata.LoadConfig()
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}

	level := parseLevel(cfg.LogLevel)
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *archivePath == "" && *archiveDir == "" && *companies == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -archive, -archive-dir, or -company")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "missing API key: set CH_API_KEY or pass -api-key")
		os.Exit(1)
	}

	var store chdata.Store
	if *dryRun {
		store = printStore{logger: logger}
	} else {
		s, err := chdata.OpenStore(cfg.DatabasePath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	}

	client := chdata.NewRegistryClient(cfg, logger)
	driver := chdata.NewCorpusDriver(client, client, store, logger)
	ctx := context.Background()

	total := &chdata.Result{}
	merge := func(r *chdata.Result) {
		total.Processed += r.Processed
		total.Created += r.Created
		total.Updated += r.Updated
		total.Failed += r.Failed
		total.Errors = append(total.Errors, r.Errors...)
	}

	if *archivePath != "" {
		r, err := driver.ProcessArchive(ctx, *archivePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "archive failed: %v\n", err)
			os.Exit(1)
		}
		merge(r)
	}
	if *archiveDir != "" {
		r, err := driver.ProcessArchiveDir(ctx, *archiveDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "archive directory failed: %v\n", err)
			os.Exit(1)
		}
		merge(r)
	}
	if *companies != "" {
		var numbers []string
		for _, n := range strings.Split(*companies, ",") {
			if n = strings.TrimSpace(n); n != "" {
				numbers = append(numbers, n)
			}
		}
		merge(driver.ProcessCompanies(ctx, numbers))
	}

	fmt.Printf("processed %d statements (%d created, %d updated), %d failed\n",
		total.Processed, total.Created, total.Updated, total.Failed)
	for _, err := range total.Errors {
		logger.Warn("run error", "error", err)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printStore satisfies the store interface for dry runs: it logs what would
// be written and reports every statement as newly created.
type printStore struct {
	logger *slog.Logger
}

func (p printStore) UpsertStatement(ctx context.Context, st *chdata.FinancialStatement) (bool, error) {
	p.logger.Info("dry run",
		"company", st.CompanyNumber,
		"period_end", st.PeriodEnd,
		"name", st.CompanyName)
	for concept, value := range st.Facts {
		if value.Valid {
			p.logger.Info("dry run fact", "concept", concept, "value", value.Decimal.String())
		}
	}
	return true, nil
}
