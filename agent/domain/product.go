package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

var ErrInvalidQuantity = errors.New("invalid quantity")

type Rating struct {
	Average float64 `json:"average" yaml:"average"`
	Count   int     `json:"count" yaml:"count"`
}

type Product struct {
	SKU             string   `json:"sku" yaml:"sku"`
	Name            string   `json:"name" yaml:"name"`
	Category        string   `json:"category" yaml:"category"`
	Subcategory     string   `json:"subcategory" yaml:"subcategory"`
	Brand           string   `json:"brand" yaml:"brand"`
	Price           float64  `json:"price" yaml:"price"`
	OriginalPrice   float64  `json:"original_price" yaml:"original_price"`
	DiscountPercent int      `json:"discount_percent" yaml:"discount_percent"`
	Description     string   `json:"description" yaml:"description"`
	Fabric          string   `json:"fabric,omitempty" yaml:"fabric"`
	Care            string   `json:"care,omitempty" yaml:"care"`
	Sizes           []string `json:"sizes" yaml:"sizes"`
	Colors          []string `json:"colors" yaml:"colors"`
	Images          []string `json:"images" yaml:"images"`
	Tags            []string `json:"tags" yaml:"tags"`
	Ratings         Rating   `json:"ratings" yaml:"ratings"`
	Complementary   []string `json:"complementary_products" yaml:"complementary_products"`
}

// BudgetRange is a closed price bucket used for recommendations.
type BudgetRange struct {
	Min float64
	Max float64
}

var budgetRanges = map[string]BudgetRange{
	"budget":      {Min: 0, Max: 2000},
	"mid":         {Min: 2000, Max: 5000},
	"mid-premium": {Min: 5000, Max: 15000},
	"premium":     {Min: 15000, Max: 30000},
	"luxury":      {Min: 30000, Max: math.Inf(1)},
}

// BudgetRangeFor resolves a bucket name; unknown names are unbounded.
func BudgetRangeFor(name string) BudgetRange {
	if r, ok := budgetRanges[strings.TrimSpace(name)]; ok {
		return r
	}
	return BudgetRange{Min: 0, Max: math.Inf(1)}
}

func (r BudgetRange) Contains(price float64) bool {
	return price >= r.Min && price <= r.Max
}

// MatchesPreferences checks the budget bucket and, when styles are set, tag overlap.
func (p Product) MatchesPreferences(prefs Preferences) bool {
	budget := prefs.BudgetRange
	if budget == "" {
		budget = "mid"
	}
	if !BudgetRangeFor(budget).Contains(p.Price) {
		return false
	}
	if len(prefs.Styles) == 0 {
		return true
	}
	for _, style := range prefs.Styles {
		if p.HasTag(style) {
			return true
		}
	}
	return false
}

func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (p Product) DiscountInfo(symbol string) string {
	if p.DiscountPercent <= 0 {
		return "No discount"
	}
	return fmt.Sprintf("%d%% off (was %s)", p.DiscountPercent, moneyx.Format(symbol, p.OriginalPrice))
}

func (p Product) Headline(symbol string) string {
	return fmt.Sprintf("%s (%s) by %s - %s", p.Name, p.SKU, p.Brand, moneyx.Format(symbol, p.Price))
}
