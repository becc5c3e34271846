package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopdesk/internal/domain/discount"
)

// Columns of the import files. Header names match case-insensitively and
// ignore underscores, so both start_date and startDate are accepted.
var requiredColumns = []string{"name", "type", "value", "startdate", "enddate"}

// DiscountCreator persists validated discounts.
type DiscountCreator interface {
	Create(ctx context.Context, req discount.CreateRequest) (*discount.Discount, error)
}

// CodeStore answers whether a discount code is already taken.
type CodeStore interface {
	Codes(ctx context.Context, fn func(code string)) error
	HasCode(ctx context.Context, code string) (bool, error)
}

// Stats summarizes an import run.
type Stats struct {
	Rows       int
	Created    int
	Duplicates int
	Invalid    int
}

type record struct {
	file string
	line int
	req  discount.CreateRequest
	err  error
}

// Importer loads discounts from gzip-compressed CSV files. Files are decoded
// concurrently and rows are written by a single goroutine. A row whose code
// is already used, in the database or earlier in the run, is skipped.
type Importer struct {
	lg        *zap.Logger
	discounts DiscountCreator
	codes     CodeStore
	loc       *time.Location
	dryRun    bool

	// seen holds every known code. A miss proves a code is new; a hit is
	// confirmed against run and the store.
	seen *bloom.BloomFilter
	run  map[string]struct{}
}

// NewImporter creates an Importer sized for about expected codes. Plain dates
// are read as midnight in loc.
func NewImporter(lg *zap.Logger, discounts DiscountCreator, codes CodeStore, loc *time.Location, expected uint, dryRun bool) *Importer {
	return &Importer{
		lg:        lg,
		discounts: discounts,
		codes:     codes,
		loc:       loc,
		dryRun:    dryRun,
		seen:      bloom.NewWithEstimates(max(expected, 1024), 0.001),
		run:       make(map[string]struct{}),
	}
}

// Run imports files. Rows that fail validation are logged and counted; any
// other error aborts the import.
func (im *Importer) Run(ctx context.Context, files []string) (Stats, error) {
	var stats Stats

	var existing int
	if err := im.codes.Codes(ctx, func(code string) {
		im.seen.AddString(code)
		existing++
	}); err != nil {
		return stats, errors.Wrap(err, "load existing codes")
	}
	im.lg.Info("Loaded existing codes", zap.Int("count", existing))

	g, gctx := errgroup.WithContext(ctx)
	records := make(chan record, 256)

	var readers sync.WaitGroup
	for _, path := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			return im.readFile(gctx, path, records)
		})
	}
	g.Go(func() error {
		readers.Wait()
		close(records)
		return nil
	})
	g.Go(func() error {
		for rec := range records {
			if err := im.apply(gctx, rec, &stats); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	return stats, err
}

func (im *Importer) apply(ctx context.Context, rec record, stats *Stats) error {
	stats.Rows++
	lg := im.lg.With(zap.String("file", rec.file), zap.Int("line", rec.line))

	if rec.err != nil {
		stats.Invalid++
		lg.Warn("Skipping invalid row", zap.Error(rec.err))
		return nil
	}

	code := strings.TrimSpace(rec.req.Code)
	if code != "" {
		dup, err := im.isDuplicate(ctx, code)
		if err != nil {
			return err
		}
		if dup {
			stats.Duplicates++
			lg.Debug("Skipping duplicate code", zap.String("code", code))
			return nil
		}
	}

	if !im.dryRun {
		_, err := im.discounts.Create(ctx, rec.req)
		var verr *discount.ValidationError
		switch {
		case errors.As(err, &verr):
			stats.Invalid++
			lg.Warn("Skipping invalid row", zap.Error(err))
			return nil
		case err != nil:
			return errors.Wrapf(err, "%s:%d", rec.file, rec.line)
		}
	}

	if code != "" {
		im.seen.AddString(code)
		im.run[code] = struct{}{}
	}
	stats.Created++
	return nil
}

func (im *Importer) isDuplicate(ctx context.Context, code string) (bool, error) {
	if !im.seen.TestString(code) {
		return false, nil
	}
	if _, ok := im.run[code]; ok {
		return true, nil
	}
	ok, err := im.codes.HasCode(ctx, code)
	if err != nil {
		return false, errors.Wrapf(err, "check code %q", code)
	}
	return ok, nil
}

func (im *Importer) readFile(ctx context.Context, path string, out chan<- record) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	n, err := decodeCSV(gz, path, im.loc, func(rec record) error {
		select {
		case out <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return err
	}
	im.lg.Info("File decoded", zap.String("file", path), zap.Int("rows", n))
	return nil
}

// decodeCSV reads a header row followed by discount rows and passes each to
// emit. Malformed rows are emitted with err set.
func decodeCSV(r io.Reader, name string, loc *time.Location, emit func(record) error) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, errors.Wrapf(err, "read header of %s", name)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), "_", "")] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return 0, errors.Errorf("%s: missing column %q", name, c)
		}
	}
	codeCol, hasCode := cols["code"]

	var n int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		rec := record{file: name}

		var perr *csv.ParseError
		switch {
		case errors.As(err, &perr):
			rec.line, rec.err = perr.StartLine, perr
		case err != nil:
			return n, errors.Wrapf(err, "read %s", name)
		default:
			rec.line, _ = cr.FieldPos(0)
			rec.req, rec.err = parseRow(row, cols, loc)
			if hasCode && rec.err == nil {
				rec.req.Code = strings.TrimSpace(row[codeCol])
			}
		}

		n++
		if err := emit(rec); err != nil {
			return n, err
		}
	}
}

func parseRow(row []string, cols map[string]int, loc *time.Location) (discount.CreateRequest, error) {
	field := func(name string) string { return strings.TrimSpace(row[cols[name]]) }

	value, err := decimal.NewFromString(field("value"))
	if err != nil {
		return discount.CreateRequest{}, errors.Wrap(err, "parse value")
	}
	start, err := time.ParseInLocation(time.DateOnly, field("startdate"), loc)
	if err != nil {
		return discount.CreateRequest{}, errors.Wrap(err, "parse start date")
	}
	end, err := time.ParseInLocation(time.DateOnly, field("enddate"), loc)
	if err != nil {
		return discount.CreateRequest{}, errors.Wrap(err, "parse end date")
	}
	return discount.CreateRequest{
		Name:      field("name"),
		Kind:      field("type"),
		Value:     value,
		StartDate: start,
		EndDate:   end,
	}, nil
}
