package domain

import (
	"fmt"
	"strings"

	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

type Preferences struct {
	Styles      []string          `json:"styles" yaml:"styles"`
	Colors      []string          `json:"colors" yaml:"colors"`
	Sizes       map[string]string `json:"sizes" yaml:"sizes"`
	BudgetRange string            `json:"budget_range" yaml:"budget_range"`
}

type SavedAddress struct {
	Type      string `json:"type" yaml:"type"`
	Address   string `json:"address" yaml:"address"`
	IsDefault bool   `json:"is_default" yaml:"is_default"`
}

type SavedPaymentMethod struct {
	Type     string `json:"type" yaml:"type"`
	LastFour string `json:"last_four,omitempty" yaml:"last_four"`
	Brand    string `json:"brand,omitempty" yaml:"brand"`
	ID       string `json:"id,omitempty" yaml:"id"`
}

type Purchase struct {
	OrderID string           `json:"order_id" yaml:"order_id"`
	Date    string           `json:"date" yaml:"date"`
	Items   []map[string]any `json:"items" yaml:"items"`
	Total   float64          `json:"total" yaml:"total"`
}

// Customer is read-only reference data; nothing in this module writes it back.
type Customer struct {
	ID                  string               `json:"id" yaml:"id"`
	Name                string               `json:"name" yaml:"name"`
	Email               string               `json:"email" yaml:"email"`
	Phone               string               `json:"phone" yaml:"phone"`
	Age                 int                  `json:"age,omitempty" yaml:"age"`
	Gender              string               `json:"gender,omitempty" yaml:"gender"`
	LoyaltyTier         string               `json:"loyalty_tier" yaml:"loyalty_tier"`
	LoyaltyPoints       int                  `json:"loyalty_points" yaml:"loyalty_points"`
	MemberSince         string               `json:"member_since,omitempty" yaml:"member_since"`
	PreferredStore      string               `json:"preferred_store,omitempty" yaml:"preferred_store"`
	PreferredChannel    string               `json:"preferred_channel,omitempty" yaml:"preferred_channel"`
	DevicePreferences   []string             `json:"device_preferences" yaml:"device_preferences"`
	Preferences         Preferences          `json:"preferences" yaml:"preferences"`
	PurchaseHistory     []Purchase           `json:"purchase_history" yaml:"purchase_history"`
	BrowsingHistory     []string             `json:"browsing_history" yaml:"browsing_history"`
	Wishlist            []string             `json:"wishlist" yaml:"wishlist"`
	SavedAddresses      []SavedAddress       `json:"saved_addresses" yaml:"saved_addresses"`
	SavedPaymentMethods []SavedPaymentMethod `json:"saved_payment_methods" yaml:"saved_payment_methods"`
}

// Tier falls back to Bronze when the record carries none.
func (c Customer) Tier() string {
	if strings.TrimSpace(c.LoyaltyTier) == "" {
		return "Bronze"
	}
	return c.LoyaltyTier
}

func (c Customer) TotalSpent() float64 {
	total := 0.0
	for _, p := range c.PurchaseHistory {
		total += p.Total
	}
	return total
}

// DefaultAddress returns the flagged default, else the first saved address.
func (c Customer) DefaultAddress() (SavedAddress, bool) {
	for _, addr := range c.SavedAddresses {
		if addr.IsDefault {
			return addr, true
		}
	}
	if len(c.SavedAddresses) > 0 {
		return c.SavedAddresses[0], true
	}
	return SavedAddress{}, false
}

// PurchaseSummary lists the three most recent orders.
func (c Customer) PurchaseSummary(symbol string) string {
	if len(c.PurchaseHistory) == 0 {
		return "No previous purchases"
	}
	recent := c.PurchaseHistory
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	parts := make([]string, 0, len(recent))
	for _, p := range recent {
		parts = append(parts, fmt.Sprintf("Order %s on %s: %s", p.OrderID, p.Date, moneyx.Format(symbol, p.Total)))
	}
	return strings.Join(parts, "; ")
}

func (c Customer) SavedMethodsSummary() string {
	if len(c.SavedPaymentMethods) == 0 {
		return "None saved"
	}
	parts := make([]string, 0, len(c.SavedPaymentMethods))
	for _, m := range c.SavedPaymentMethods {
		switch {
		case m.Brand != "" && m.LastFour != "":
			parts = append(parts, fmt.Sprintf("%s %s ending %s", m.Brand, m.Type, m.LastFour))
		case m.ID != "":
			parts = append(parts, fmt.Sprintf("%s (%s)", m.Type, m.ID))
		default:
			parts = append(parts, m.Type)
		}
	}
	return strings.Join(parts, ", ")
}
