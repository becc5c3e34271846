// Command discount-import bulk-loads discounts from gzip-compressed CSV files.
//
//	discount-import [flags] discounts-1.csv.gz [discounts-2.csv.gz ...]
//
// Each file starts with a header row naming the columns name, type, value,
// code, start_date and end_date. Dates use the YYYY-MM-DD form.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/repository"
)

func main() {
	var (
		databaseURL string
		timezone    string
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&timezone, "timezone", "UTC", "IANA zone the dates of the files are in")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of codes, sizes the duplicate filter")
	flag.BoolVar(&dryRun, "dry-run", false, "validate and deduplicate without writing")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file.csv.gz...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		lg.Fatal("Invalid timezone", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start := time.Now()
	stats, err := run(ctx, lg, databaseURL, loc, expected, dryRun, flag.Args())
	lg.Info("Import finished",
		zap.Int("rows", stats.Rows),
		zap.Int("created", stats.Created),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("invalid", stats.Invalid),
		zap.Bool("dry_run", dryRun),
		zap.Duration("duration", time.Since(start)),
	)
	if err != nil {
		lg.Error("Discount import failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	lg *zap.Logger,
	databaseURL string,
	loc *time.Location,
	expected uint,
	dryRun bool,
	files []string,
) (Stats, error) {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return Stats{}, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return Stats{}, errors.Wrap(err, "run migrations")
	}

	repo := repository.NewDiscountRepository(pool)
	im := NewImporter(lg, discount.NewService(repo), repo, loc, expected, dryRun)
	return im.Run(ctx, files)
}
