package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/productdesk/productdesk/internal/productapi"
	"github.com/productdesk/productdesk/internal/products"
)

//go:embed products.yaml
var defaultCatalog []byte

type catalog struct {
	Products []struct {
		Name        string  `yaml:"name"`
		Description string  `yaml:"description"`
		Price       float64 `yaml:"price"`
	} `yaml:"products"`
}

func main() {
	file := flag.String("file", "", "YAML catalog to seed instead of the bundled sample")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	raw := defaultCatalog
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read catalog: %v", err)
		}
		raw = data
	}
	items, err := parseCatalog(raw)
	if err != nil {
		log.Fatalf("parse catalog: %v", err)
	}

	client := productapi.NewClient(getenv("PRODUCTS_API_URL", "http://localhost:8080/api"), 10*time.Second, slog.Default())
	ctx := context.Background()

	fmt.Println("→ Seeding products...")
	created, err := seed(ctx, client, items)
	if err != nil {
		log.Fatalf("seed products: %v", err)
	}
	fmt.Printf("✓ Seeded %d products at %s\n", created, time.Now().Format(time.RFC3339))
}

type creator interface {
	Create(ctx context.Context, product products.Product) (products.Product, error)
}

func parseCatalog(raw []byte) ([]products.Product, error) {
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	items := make([]products.Product, 0, len(c.Products))
	for i, entry := range c.Products {
		p := products.Normalize(products.Product{Name: entry.Name, Description: entry.Description, Price: entry.Price})
		if err := products.Validate(p); err != nil {
			return nil, fmt.Errorf("product %d (%q): %w", i+1, entry.Name, err)
		}
		items = append(items, p)
	}
	return items, nil
}

func seed(ctx context.Context, client creator, items []products.Product) (int, error) {
	for i, p := range items {
		if _, err := client.Create(ctx, p); err != nil {
			return i, fmt.Errorf("create %q: %w", p.Name, err)
		}
	}
	return len(items), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
