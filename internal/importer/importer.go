package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/repository/catalog"

	"github.com/shopspring/decimal"
)

// CatalogWriter is the subset of the catalog repository the importer needs.
type CatalogWriter interface {
	UpsertShop(ctx context.Context, s catalog.ShopRecord) error
	UpsertProduct(ctx context.Context, p catalog.ProductRecord, cartPosition int) error
}

// CSVImporter reads catalog CSV files and inserts/updates shops and products.
type CSVImporter struct {
	reader *csv.Reader
	repo   CatalogWriter
}

func NewCSVImporter(r io.Reader, repo CatalogWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		repo:   repo,
	}
}

// Result counts what one run wrote.
type Result struct {
	Shops     int
	Products  int
	CartLines int
}

// Run parses CSV rows and upserts products. Shops are created on first
// sight, positioned in order of appearance. Rows without a key are skipped.
func (i *CSVImporter) Run(ctx context.Context) (Result, error) {
	var res Result
	headers, err := i.reader.Read()
	if err != nil {
		return res, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["key"]; !ok {
		return res, errors.New("missing key column")
	}

	shops := map[string]bool{}
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row: %w", err)
		}
		line++

		p, shop, err := parseRow(record, index)
		if err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		if p == nil {
			continue
		}

		if shop.Key != "" && !shops[shop.Key] {
			shop.Position = len(shops) + 1
			if shop.Name == "" {
				shop.Name = shop.Key
			}
			if err := i.repo.UpsertShop(ctx, shop); err != nil {
				return res, fmt.Errorf("upsert shop %q: %w", shop.Key, err)
			}
			shops[shop.Key] = true
			res.Shops++
		}

		pos := 0
		if p.CartQuantity > 0 {
			res.CartLines++
			pos = res.CartLines
		}
		if err := i.repo.UpsertProduct(ctx, *p, pos); err != nil {
			return res, fmt.Errorf("upsert product %q: %w", p.Key, err)
		}
		res.Products++
	}
	return res, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*catalog.ProductRecord, catalog.ShopRecord, error) {
	shop := catalog.ShopRecord{
		Key:  pick(record, index, "shop_key"),
		Name: pick(record, index, "shop_name"),
	}
	key := pick(record, index, "key")
	if key == "" {
		return nil, shop, nil
	}

	p := &catalog.ProductRecord{
		Key:        key,
		ShopKey:    shop.Key,
		Title:      pick(record, index, "title"),
		Spec:       pick(record, index, "spec"),
		Sales:      pick(record, index, "sales"),
		Icon:       pick(record, index, "icon"),
		Background: pick(record, index, "background"),
	}

	var err error
	if p.Price, err = decimal.NewFromString(pick(record, index, "price")); err != nil {
		return nil, shop, fmt.Errorf("product %q price: %w", key, err)
	}
	if v := pick(record, index, "original_price"); v != "" {
		if p.OriginalPrice, err = decimal.NewFromString(v); err != nil {
			return nil, shop, fmt.Errorf("product %q original price: %w", key, err)
		}
	}
	if p.Featured, err = parseBool(pick(record, index, "featured")); err != nil {
		return nil, shop, fmt.Errorf("product %q featured: %w", key, err)
	}
	if v := pick(record, index, "cart_quantity"); v != "" {
		if p.CartQuantity, err = strconv.Atoi(v); err != nil {
			return nil, shop, fmt.Errorf("product %q cart quantity: %w", key, err)
		}
	}
	if p.CartSelected, err = parseBool(pick(record, index, "cart_selected")); err != nil {
		return nil, shop, fmt.Errorf("product %q cart selected: %w", key, err)
	}
	if err := p.Validate(); err != nil {
		return nil, shop, err
	}
	return p, shop, nil
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
