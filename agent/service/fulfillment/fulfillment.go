package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-retail/agent/contract"
	domainx "github.com/tanpawarit/chative-retail/agent/domain"
	idsx "github.com/tanpawarit/chative-retail/pkg/ids"
)

const (
	StatusScheduled = "scheduled"
	StatusNotFound  = "not_found"

	slotDays     = 7
	maxSlots     = 10
	defaultLead  = 3 * 24 * time.Hour
	slotDateForm = "2006-01-02"
)

var timeSlots = []string{"9:00 AM - 12:00 PM", "2:00 PM - 5:00 PM", "5:00 PM - 8:00 PM"}

var freeShippingThresholds = map[string]float64{
	"Bronze":   2000,
	"Silver":   1500,
	"Gold":     1000,
	"Platinum": 0,
}

const (
	standardShippingFee = 100.0
	expressShippingFee  = 200.0
)

// Scheduler is the seam the checkout pipeline schedules deliveries through.
type Scheduler interface {
	ScheduleDelivery(ctx context.Context, req DeliveryRequest) (Delivery, error)
}

type DeliveryRequest struct {
	OrderID       string
	Address       string
	Type          domainx.FulfillmentType
	PreferredDate *time.Time
}

type Delivery struct {
	DeliveryID      string                  `json:"delivery_id"`
	OrderID         string                  `json:"order_id"`
	FulfillmentType domainx.FulfillmentType `json:"fulfillment_type"`
	Address         string                  `json:"address"`
	ScheduledDate   time.Time               `json:"scheduled_date"`
	Status          string                  `json:"status"`
	TrackingNumber  string                  `json:"tracking_number"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

type Slot struct {
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
	Available bool   `json:"available"`
}

type PickupLocation struct {
	StoreName string `json:"store_name"`
	Address   string `json:"address"`
	Distance  string `json:"distance"`
	Available bool   `json:"available"`
}

var pickupLocations = []PickupLocation{
	{StoreName: "Mumbai - Phoenix Mall", Address: "High Street Phoenix, Lower Parel, Mumbai", Distance: "2.5 km", Available: true},
	{StoreName: "Mumbai - Palladium", Address: "Palladium Mall, Lower Parel, Mumbai", Distance: "3.1 km", Available: true},
	{StoreName: "Delhi - Select Citywalk", Address: "Select Citywalk, Saket, New Delhi", Distance: "5.2 km", Available: true},
}

type Tracking struct {
	TrackingNumber    string     `json:"tracking_number"`
	Status            string     `json:"status"`
	ScheduledDate     *time.Time `json:"scheduled_date,omitempty"`
	CurrentLocation   string     `json:"current_location,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// Service is an in-memory carrier mock.
type Service struct {
	mu         sync.RWMutex
	deliveries map[string]*Delivery
	byOrder    map[string]string
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		deliveries: map[string]*Delivery{},
		byOrder:    map[string]string{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleDelivery returns the existing delivery when the order already has one.
func (s *Service) ScheduleDelivery(ctx context.Context, req DeliveryRequest) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}
	if req.OrderID == "" {
		return Delivery{}, fmt.Errorf("%w: order_id is required", contractx.ErrValidation)
	}
	if req.Type == "" {
		req.Type = domainx.FulfillmentHomeDelivery
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byOrder[req.OrderID]; ok {
		return *s.deliveries[id], nil
	}

	now := s.now()
	date := now.Add(defaultLead)
	if req.PreferredDate != nil {
		date = *req.PreferredDate
	}
	d := &Delivery{
		DeliveryID:      idsx.New("DEL"),
		OrderID:         req.OrderID,
		FulfillmentType: req.Type,
		Address:         req.Address,
		ScheduledDate:   date,
		Status:          StatusScheduled,
		TrackingNumber:  idsx.New("TRK"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.deliveries[d.DeliveryID] = d
	s.byOrder[req.OrderID] = d.DeliveryID

	log.Ctx(ctx).Info().
		Str("order_id", d.OrderID).
		Str("delivery_id", d.DeliveryID).
		Str("tracking_number", d.TrackingNumber).
		Msg("delivery scheduled")
	return *d, nil
}

// DeliverySlots starts the day after from (or tomorrow when from is nil).
func (s *Service) DeliverySlots(_ string, from *time.Time) []Slot {
	base := s.now().AddDate(0, 0, 1)
	if from != nil {
		base = *from
	}
	slots := make([]Slot, 0, maxSlots)
	for day := 0; day < slotDays && len(slots) < maxSlots; day++ {
		date := base.AddDate(0, 0, day).Format(slotDateForm)
		for _, window := range timeSlots {
			if len(slots) == maxSlots {
				break
			}
			slots = append(slots, Slot{Date: date, TimeSlot: window, Available: true})
		}
	}
	return slots
}

func (s *Service) PickupLocations(_ string) []PickupLocation {
	return append([]PickupLocation(nil), pickupLocations...)
}

func (s *Service) Track(trackingNumber string) Tracking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.deliveries {
		if d.TrackingNumber != trackingNumber {
			continue
		}
		date := d.ScheduledDate
		return Tracking{
			TrackingNumber:    trackingNumber,
			Status:            d.Status,
			ScheduledDate:     &date,
			CurrentLocation:   "In transit",
			EstimatedDelivery: &date,
		}
	}
	return Tracking{TrackingNumber: trackingNumber, Status: StatusNotFound}
}

func (s *Service) DeliveryForOrder(orderID string) (Delivery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOrder[orderID]
	if !ok {
		return Delivery{}, false
	}
	return *s.deliveries[id], true
}

func (s *Service) UpdateStatus(deliveryID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[deliveryID]
	if !ok {
		return false
	}
	d.Status = status
	d.UpdatedAt = s.now()
	return true
}

// ShippingFee applies the tier threshold before the fulfillment type.
// Unknown tiers use the Bronze threshold.
func ShippingFee(subtotal float64, ft domainx.FulfillmentType, tier string) float64 {
	threshold, ok := freeShippingThresholds[tier]
	if !ok {
		threshold = freeShippingThresholds["Bronze"]
	}
	if subtotal >= threshold {
		return 0
	}
	switch ft {
	case domainx.FulfillmentStorePickup, domainx.FulfillmentClickCollect:
		return 0
	case domainx.FulfillmentExpressDelivery:
		return expressShippingFee
	default:
		return standardShippingFee
	}
}
