package catalog

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	refdatax "github.com/tanpawarit/chative-retail/agent/service/refdata"
)

const (
	DefaultSearchLimit         = 10
	DefaultRecommendationLimit = 5
	DefaultComplementaryLimit  = 3
)

type Category struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Parent string `json:"parent,omitempty" yaml:"parent"`
}

type File struct {
	Products   []domainx.Product `json:"products" yaml:"products"`
	Categories []Category        `json:"categories" yaml:"categories"`
}

// Catalog is immutable after construction and safe for concurrent readers.
type Catalog struct {
	products   []domainx.Product
	bySKU      map[string]int
	categories []Category
}

func New(f File) *Catalog {
	c := &Catalog{
		bySKU:      make(map[string]int, len(f.Products)),
		categories: append([]Category(nil), f.Categories...),
	}
	for _, p := range f.Products {
		if strings.TrimSpace(p.SKU) == "" {
			continue
		}
		if _, dup := c.bySKU[p.SKU]; dup {
			continue
		}
		c.bySKU[p.SKU] = len(c.products)
		c.products = append(c.products, p)
	}
	return c
}

func Load(dir string) *Catalog {
	return New(refdatax.Load[File](dir, "products"))
}

func (c *Catalog) GetBySKU(sku string) (domainx.Product, error) {
	idx, ok := c.bySKU[strings.TrimSpace(sku)]
	if !ok {
		return domainx.Product{}, fmt.Errorf("%w: sku=%s", contractx.ErrProductNotFound, sku)
	}
	return c.products[idx], nil
}

func (c *Catalog) CategoryOf(sku string) (string, bool) {
	p, err := c.GetBySKU(sku)
	if err != nil {
		return "", false
	}
	return p.Category, true
}

type Query struct {
	Text     string
	Category string
	MinPrice *float64
	MaxPrice *float64
	Tags     []string
	Limit    int
}

// Search keeps catalog order and caps the result at Limit (default 10).
func (c *Catalog) Search(q Query) []domainx.Product {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]domainx.Product, 0, limit)
	for _, p := range c.products {
		if text != "" && !matchesText(p, text) {
			continue
		}
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if q.MinPrice != nil && p.Price < *q.MinPrice {
			continue
		}
		if q.MaxPrice != nil && p.Price > *q.MaxPrice {
			continue
		}
		if len(q.Tags) > 0 && !hasAnyTag(p, q.Tags) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Recommendations filters by budget bucket and style tags, then orders by
// rating and discount, highest first.
func (c *Catalog) Recommendations(prefs domainx.Preferences, limit int) []domainx.Product {
	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	var matching []domainx.Product
	for _, p := range c.products {
		if p.MatchesPreferences(prefs) {
			matching = append(matching, p)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i], matching[j]
		if a.Ratings.Average != b.Ratings.Average {
			return a.Ratings.Average > b.Ratings.Average
		}
		return a.DiscountPercent > b.DiscountPercent
	})
	if len(matching) > limit {
		matching = matching[:limit]
	}
	return matching
}

func (c *Catalog) Complementary(sku string, limit int) []domainx.Product {
	if limit <= 0 {
		limit = DefaultComplementaryLimit
	}
	p, err := c.GetBySKU(sku)
	if err != nil {
		return nil
	}
	skus := p.Complementary
	if len(skus) > limit {
		skus = skus[:limit]
	}
	var out []domainx.Product
	for _, s := range skus {
		if comp, err := c.GetBySKU(s); err == nil {
			out = append(out, comp)
		}
	}
	return out
}

func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

func (c *Catalog) Len() int {
	return len(c.products)
}

func matchesText(p domainx.Product, text string) bool {
	if strings.Contains(strings.ToLower(p.Name), text) || strings.Contains(strings.ToLower(p.Description), text) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), text) {
			return true
		}
	}
	return false
}

func hasAnyTag(p domainx.Product, tags []string) bool {
	for _, tag := range tags {
		if p.HasTag(tag) {
			return true
		}
	}
	return false
}
