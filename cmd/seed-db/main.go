// Command seed-db loads a demo catalog, discount codes and, optionally,
// backdated orders so the dashboard and analytics have data to show.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/shopdesk/internal/domain/discount"
	"github.com/xenking/shopdesk/internal/domain/product"
	"github.com/xenking/shopdesk/internal/repository"
)

//go:embed catalog.json
var defaultCatalog []byte

type catalog struct {
	Products []struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"products"`
	Discounts []catalogDiscount `json:"discounts"`
}

type catalogDiscount struct {
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Value     decimal.Decimal `json:"value"`
	Code      string          `json:"code"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
}

// discountStore creates and lists discounts.
type discountStore interface {
	Create(ctx context.Context, req discount.CreateRequest) (*discount.Discount, error)
	List(ctx context.Context) ([]discount.Discount, error)
}

type options struct {
	databaseURL string
	catalogFile string
	orders      int
	days        int
	seed        uint64
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog", "", "catalog JSON file, the built-in demo catalog when empty")
	flag.IntVar(&opts.orders, "orders", 0, "number of demo orders to generate")
	flag.IntVar(&opts.days, "days", 30, "spread demo orders over this many past days")
	flag.Uint64Var(&opts.seed, "seed", 1, "random seed for demo orders")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data := defaultCatalog
	if opts.catalogFile != "" {
		b, err := os.ReadFile(opts.catalogFile)
		if err != nil {
			return errors.Wrap(err, "read catalog")
		}
		data = b
	}
	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return errors.Wrap(err, "parse catalog")
	}

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	productRepo := repository.NewProductRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)

	products, err := seedProducts(ctx, lg, product.NewService(productRepo, nil), c)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}
	discounts, err := seedDiscounts(ctx, lg, discount.NewService(discountRepo), c)
	if err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if opts.orders > 0 {
		rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
		orders := generateOrders(rng, products, discounts, opts.orders, time.Now(), opts.days)
		orderRepo := repository.NewOrderRepository(pool)
		for _, o := range orders {
			if err := orderRepo.Create(ctx, o); err != nil {
				return errors.Wrapf(err, "create order %s", o.ID)
			}
		}
		lg.Info("Created demo orders", zap.Int("count", len(orders)))
	}
	return nil
}

// seedProducts creates the catalog unless products already exist, in which
// case the existing catalog is returned.
func seedProducts(ctx context.Context, lg *zap.Logger, svc *product.Service, c catalog) ([]product.Product, error) {
	existing, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		lg.Info("Catalog already seeded", zap.Int("products", len(existing)))
		return existing, nil
	}

	out := make([]product.Product, 0, len(c.Products))
	for _, p := range c.Products {
		created, err := svc.Create(ctx, p.Name, p.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "create product %q", p.Name)
		}
		lg.Info("Created product", zap.String("id", created.ID), zap.String("name", created.Name))
		out = append(out, *created)
	}
	return out, nil
}

// seedDiscounts creates the catalog discounts that are not stored yet and
// returns every discount in the store. A coded discount is matched by code,
// a code-less one by name among the other code-less discounts.
func seedDiscounts(ctx context.Context, lg *zap.Logger, svc discountStore, c catalog) ([]discount.Discount, error) {
	existing, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range c.Discounts {
		if seeded(existing, d) {
			lg.Info("Discount exists", zap.String("name", d.Name), zap.String("code", d.Code))
			continue
		}
		start, err := time.Parse(time.DateOnly, d.StartDate)
		if err != nil {
			return nil, errors.Wrapf(err, "parse start date of %q", d.Name)
		}
		end, err := time.Parse(time.DateOnly, d.EndDate)
		if err != nil {
			return nil, errors.Wrapf(err, "parse end date of %q", d.Name)
		}
		created, err := svc.Create(ctx, discount.CreateRequest{
			Name:      d.Name,
			Kind:      d.Type,
			Value:     d.Value,
			Code:      d.Code,
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create discount %q", d.Name)
		}
		existing = append(existing, *created)
		lg.Info("Created discount", zap.String("name", created.Name), zap.String("code", created.Code))
	}
	return svc.List(ctx)
}

func seeded(existing []discount.Discount, d catalogDiscount) bool {
	code := strings.TrimSpace(d.Code)
	for _, e := range existing {
		if code != "" && e.Code == code {
			return true
		}
		if code == "" && e.Code == "" && e.Name == strings.TrimSpace(d.Name) {
			return true
		}
	}
	return false
}
