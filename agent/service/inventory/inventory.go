package inventory

import (
	"sort"
	"strings"

	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	refdatax "github.com/tanpawarit/chative-retail/agent/service/refdata"
)

// LocationOnline selects the online stock pool; any other location names a store.
const LocationOnline = "online"

const (
	DefaultEstimateType = "standard"
	DefaultEstimate     = "4-6 days"
)

// Stock is color -> size -> units.
type Stock map[string]map[string]int

type Level struct {
	Online Stock            `json:"online" yaml:"online"`
	Stores map[string]Stock `json:"stores" yaml:"stores"`
}

type Warehouse struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
}

type File struct {
	Inventory         map[string]Level             `json:"inventory" yaml:"inventory"`
	Warehouses        []Warehouse                  `json:"warehouses" yaml:"warehouses"`
	DeliveryEstimates map[string]map[string]string `json:"delivery_estimates" yaml:"delivery_estimates"`
}

type Service struct {
	levels    map[string]Level
	estimates map[string]map[string]string
}

func New(f File) *Service {
	s := &Service{levels: f.Inventory, estimates: f.DeliveryEstimates}
	if s.levels == nil {
		s.levels = map[string]Level{}
	}
	return s
}

func Load(dir string) *Service {
	return New(refdatax.Load[File](dir, "inventory"))
}

// CheckAvailability sums over whichever of color and size is omitted.
// Unknown SKUs and locations report (false, 0).
func (s *Service) CheckAvailability(sku string, color, size *string, location string) (bool, int) {
	level, ok := s.levels[sku]
	if !ok {
		return false, 0
	}
	if location == "" {
		location = LocationOnline
	}
	stock := level.Online
	if location != LocationOnline {
		stock = level.Stores[location]
	}
	qty := stock.count(color, size)
	return qty > 0, qty
}

func (st Stock) count(color, size *string) int {
	total := 0
	for c, sizes := range st {
		if color != nil && c != *color {
			continue
		}
		for sz, qty := range sizes {
			if size != nil && sz != *size {
				continue
			}
			total += qty
		}
	}
	return total
}

// AvailableStores lists stores holding the variant, sorted by name.
func (s *Service) AvailableStores(sku string, color, size *string) []string {
	level, ok := s.levels[sku]
	if !ok {
		return nil
	}
	var stores []string
	for name, stock := range level.Stores {
		if stock.count(color, size) > 0 {
			stores = append(stores, name)
		}
	}
	sort.Strings(stores)
	return stores
}

var metroCities = []string{"Bangalore", "Chennai", "Hyderabad", "Pune"}

func locationType(location string) string {
	if strings.Contains(location, "Mumbai") || strings.Contains(location, "Delhi") {
		return "same_city"
	}
	for _, city := range metroCities {
		if strings.Contains(location, city) {
			return "metro_to_metro"
		}
	}
	return "other"
}

func (s *Service) DeliveryEstimate(location, estimateType string) string {
	if estimateType == "" {
		estimateType = DefaultEstimateType
	}
	if est, ok := s.estimates[locationType(location)][estimateType]; ok && est != "" {
		return est
	}
	return DefaultEstimate
}

type Option struct {
	Available bool     `json:"available"`
	Estimate  string   `json:"estimate,omitempty"`
	Stores    []string `json:"stores,omitempty"`
}

type Options map[domainx.FulfillmentType]Option

func (s *Service) FulfillmentOptions(sku string, color, size *string, location string) Options {
	opts := Options{
		domainx.FulfillmentHomeDelivery: {},
		domainx.FulfillmentStorePickup:  {},
		domainx.FulfillmentClickCollect: {},
	}
	if ok, _ := s.CheckAvailability(sku, color, size, LocationOnline); ok {
		opts[domainx.FulfillmentHomeDelivery] = Option{Available: true, Estimate: s.DeliveryEstimate(location, DefaultEstimateType)}
	}
	if stores := s.AvailableStores(sku, color, size); len(stores) > 0 {
		opts[domainx.FulfillmentStorePickup] = Option{Available: true, Stores: stores}
		opts[domainx.FulfillmentClickCollect] = Option{Available: true, Stores: append([]string(nil), stores...)}
	}
	return opts
}

// Reserve only checks online stock; it does not decrement anything.
func (s *Service) Reserve(sku string, color, size *string, qty int) bool {
	ok, available := s.CheckAvailability(sku, color, size, LocationOnline)
	return ok && available >= qty
}
