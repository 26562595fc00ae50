// Command seed-db loads the coffee catalog, the starter promo codes, and an
// admin API key into the database. Safe to re-run: everything upserts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/emberroast/brewcart/db"
	"github.com/emberroast/brewcart/internal/domain/auth"
	"github.com/emberroast/brewcart/internal/domain/coupon"
	"github.com/emberroast/brewcart/internal/domain/product"
	"github.com/emberroast/brewcart/internal/handler"
	"github.com/emberroast/brewcart/internal/repository"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
	Customizations []struct {
		Type    string `json:"type"`
		Options []struct {
			ID         string          `json:"id"`
			Name       string          `json:"name"`
			PriceDelta decimal.Decimal `json:"priceDelta"`
		} `json:"options"`
	} `json:"customizations"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (embedded catalog when empty)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or BREW_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BREW_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("BREW_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or BREW_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BREW_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}
	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	data := db.SeedProducts
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))
		var err error
		data, err = os.ReadFile(productsFile)
		if err != nil {
			return errors.Wrap(err, "read products file")
		}
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, toProduct(p)); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func toProduct(p productJSON) product.Product {
	out := product.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Image: product.Image{
			Thumbnail: p.Image.Thumbnail,
			Mobile:    p.Image.Mobile,
			Tablet:    p.Image.Tablet,
			Desktop:   p.Image.Desktop,
		},
	}
	for _, g := range p.Customizations {
		group := product.OptionGroup{Type: g.Type}
		for _, o := range g.Options {
			group.Options = append(group.Options, product.Option{
				ID:         o.ID,
				Name:       o.Name,
				PriceDelta: o.PriceDelta,
			})
		}
		out.Customizations = append(out.Customizations, group)
	}
	return out
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding starter promo codes")

	rules := []coupon.Rule{
		{
			Code:         "HAPPYHOURS",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(18),
			Description:  "Happy Hours: 18% off entire order",
		},
		{
			Code:         "FIRSTBREW",
			DiscountType: coupon.DiscountFixed,
			Value:        decimal.NewFromInt(5),
			Description:  "First order: $5 off",
		},
		{
			Code:         "BUYGETONE",
			DiscountType: coupon.DiscountFreeLowest,
			Value:        decimal.Zero,
			MinItems:     2,
			Description:  "Buy one get one: lowest priced item free",
		},
	}

	for _, ru := range rules {
		if err := repo.Upsert(ctx, ru); err != nil {
			return errors.Wrapf(err, "upsert promo code %s", ru.Code)
		}
		slog.Info("upserted promo code", slog.String("code", ru.Code), slog.String("description", ru.Description))
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	if err := repo.Insert(ctx, auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: handler.HashAPIKey([]byte(pepper), apiKey),
		Name:    "Admin key",
		Scopes:  []string{auth.ScopeOrdersRead},
	}); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", "admin"))
	return nil
}
