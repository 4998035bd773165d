// Package catalog answers product questions from a static JSON catalog.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Product is one catalog entry.
type Product struct {
	BrandName   string   `json:"brand_name"`
	Composition string   `json:"composition"`
	Price       Price    `json:"price"`
	Keywords    []string `json:"keywords"`
}

// Price accepts either a JSON number or a string.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("catalog: price must be a number or string: %w", err)
	}
	*p = Price(n.String())
	return nil
}

// Catalog is an immutable product list.
type Catalog struct {
	products []Product
}

// New builds a catalog, lowercasing keywords once.
func New(products []Product) *Catalog {
	out := make([]Product, 0, len(products))
	for _, p := range products {
		p.BrandName = strings.TrimSpace(p.BrandName)
		if p.BrandName == "" {
			continue
		}
		keywords := make([]string, 0, len(p.Keywords))
		for _, k := range p.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		p.Keywords = keywords
		out = append(out, p)
	}
	return &Catalog{products: out}
}

// Empty returns a catalog that never matches.
func Empty() *Catalog { return &Catalog{} }

// Decode reads a JSON array of products.
func Decode(r io.Reader) (*Catalog, error) {
	var products []Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(products), nil
}

// Load reads the catalog file at path. A missing file yields an empty
// catalog together with os.ErrNotExist.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), fmt.Errorf("catalog: %s: %w", path, err)
		}
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Len reports the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Lookup returns products whose brand appears in the query, whose brand
// contains the query, or one of whose keywords appears in the query.
func (c *Catalog) Lookup(query string) []Product {
	if c == nil {
		return nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var matches []Product
	for _, p := range c.products {
		brand := strings.ToLower(p.BrandName)
		if strings.Contains(brand, q) || strings.Contains(q, brand) || containsAny(q, p.Keywords) {
			matches = append(matches, p)
		}
	}
	return matches
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
