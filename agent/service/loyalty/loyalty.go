package loyalty

import (
	"math"

	refdatax "github.com/tanpawarit/chative-retail/agent/service/refdata"
)

const TierPlatinum = "Platinum"

const (
	AudiencePlatinum     = "platinum_members"
	AudienceNewCustomers = "new_customers"
)

type PromotionType string

const (
	PercentageDiscount PromotionType = "percentage_discount"
	FlatDiscount       PromotionType = "flat_discount"
)

type TierBenefits struct {
	PointsMultiplier float64 `json:"points_multiplier" yaml:"points_multiplier"`
	FreeShipping     bool    `json:"free_shipping,omitempty" yaml:"free_shipping"`
}

type Tier struct {
	Tier      string       `json:"tier" yaml:"tier"`
	MinPoints int          `json:"min_points" yaml:"min_points"`
	MaxPoints *int         `json:"max_points" yaml:"max_points"`
	Benefits  TierBenefits `json:"benefits" yaml:"benefits"`
}

type EarningRules struct {
	BaseRule struct {
		PointsPer100 float64 `json:"points_per_100" yaml:"points_per_100"`
	} `json:"base_rule" yaml:"base_rule"`
	CategoryMultipliers map[string]float64 `json:"category_multipliers" yaml:"category_multipliers"`
}

type RedemptionRules struct {
	RedemptionRate struct {
		PointsToCurrency float64 `json:"points_to_currency" yaml:"points_to_currency"`
	} `json:"redemption_rate" yaml:"redemption_rate"`
}

type RulesFile struct {
	Tiers      []Tier          `json:"loyalty_tiers" yaml:"loyalty_tiers"`
	Earning    EarningRules    `json:"points_earning_rules" yaml:"points_earning_rules"`
	Redemption RedemptionRules `json:"points_redemption_rules" yaml:"points_redemption_rules"`
}

type Promotion struct {
	ID                   string        `json:"id" yaml:"id"`
	Name                 string        `json:"name" yaml:"name"`
	Description          string        `json:"description,omitempty" yaml:"description"`
	Type                 PromotionType `json:"type" yaml:"type"`
	Value                float64       `json:"value" yaml:"value"`
	MaxDiscount          float64       `json:"max_discount,omitempty" yaml:"max_discount"`
	MinPurchaseAmount    float64       `json:"min_purchase_amount" yaml:"min_purchase_amount"`
	ApplicableCategories []string      `json:"applicable_categories,omitempty" yaml:"applicable_categories"`
	ApplicableTo         string        `json:"applicable_to,omitempty" yaml:"applicable_to"`
	ValidUntil           string        `json:"valid_until,omitempty" yaml:"valid_until"`
	Active               bool          `json:"active" yaml:"active"`
}

type Coupon struct {
	Code         string        `json:"code" yaml:"code"`
	Description  string        `json:"description,omitempty" yaml:"description"`
	Type         PromotionType `json:"type,omitempty" yaml:"type"`
	Value        float64       `json:"value,omitempty" yaml:"value"`
	ApplicableTo string        `json:"applicable_to,omitempty" yaml:"applicable_to"`
	Active       bool          `json:"active" yaml:"active"`
}

type PromotionsFile struct {
	Promotions []Promotion `json:"promotions" yaml:"promotions"`
	Coupons    []Coupon    `json:"coupon_codes" yaml:"coupon_codes"`
}

type Service struct {
	tiers      []Tier
	earning    EarningRules
	redemption RedemptionRules
	promotions []Promotion
	coupons    []Coupon
}

func New(rules RulesFile, promos PromotionsFile) *Service {
	return &Service{
		tiers:      rules.Tiers,
		earning:    rules.Earning,
		redemption: rules.Redemption,
		promotions: promos.Promotions,
		coupons:    promos.Coupons,
	}
}

func Load(dir string) *Service {
	return New(
		refdatax.Load[RulesFile](dir, "loyalty_rules"),
		refdatax.Load[PromotionsFile](dir, "promotions"),
	)
}

// TierFor returns the tier whose range contains points; a nil max is open-ended.
// When nothing matches it falls back to the first configured tier.
func (s *Service) TierFor(points int) (Tier, bool) {
	for _, t := range s.tiers {
		if t.MaxPoints == nil {
			if points >= t.MinPoints {
				return t, true
			}
			continue
		}
		if points >= t.MinPoints && points <= *t.MaxPoints {
			return t, true
		}
	}
	if len(s.tiers) > 0 {
		return s.tiers[0], true
	}
	return Tier{}, false
}

func (s *Service) tier(name string) (Tier, bool) {
	for _, t := range s.tiers {
		if t.Tier == name {
			return t, true
		}
	}
	return Tier{}, false
}

// PointsEarned truncates after each multiplier step.
func (s *Service) PointsEarned(amount float64, tier, category string) int {
	per100 := s.earning.BaseRule.PointsPer100
	if per100 == 0 {
		per100 = 1
	}
	points := int(amount / 100 * per100)

	if t, ok := s.tier(tier); ok {
		mult := t.Benefits.PointsMultiplier
		if mult == 0 {
			mult = 1
		}
		points = int(float64(points) * mult)
	}

	if category != "" {
		if mult, ok := s.earning.CategoryMultipliers[category]; ok {
			points = int(float64(points) * mult)
		}
	}
	return points
}

func (s *Service) PointsValue(points int) float64 {
	rate := s.redemption.RedemptionRate.PointsToCurrency
	if rate == 0 {
		rate = 1
	}
	return float64(points) * rate
}

func (s *Service) ActivePromotions() []Promotion {
	var out []Promotion
	for _, p := range s.promotions {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) Coupons() []Coupon {
	var out []Coupon
	for _, c := range s.coupons {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// ApplicablePromotions filters active promotions by minimum amount, category
// overlap (only when both sides are non-empty) and member audience.
func (s *Service) ApplicablePromotions(total float64, tier string, categories []string) []Promotion {
	var out []Promotion
	for _, p := range s.promotions {
		if !p.Active || total < p.MinPurchaseAmount {
			continue
		}
		if len(p.ApplicableCategories) > 0 && len(categories) > 0 && !overlaps(p.ApplicableCategories, categories) {
			continue
		}
		if p.ApplicableTo == AudiencePlatinum && tier != TierPlatinum {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Service) Discount(p Promotion, total float64) float64 {
	switch p.Type {
	case PercentageDiscount:
		d := total * p.Value / 100
		if p.MaxDiscount > 0 {
			d = math.Min(d, p.MaxDiscount)
		}
		return d
	case FlatDiscount:
		return p.Value
	default:
		return 0
	}
}

// BestPromotion keeps the first promotion on ties; a zero discount never wins.
func (s *Service) BestPromotion(total float64, tier string, categories []string) (Promotion, float64, bool) {
	var (
		best  Promotion
		max   float64
		found bool
	)
	for _, p := range s.ApplicablePromotions(total, tier, categories) {
		if d := s.Discount(p, total); d > max {
			best, max, found = p, d, true
		}
	}
	return best, max, found
}

func (s *Service) ValidateCoupon(code, tier string) (Coupon, bool) {
	for _, c := range s.coupons {
		if c.Code != code || !c.Active {
			continue
		}
		if c.ApplicableTo == AudiencePlatinum && tier != TierPlatinum {
			continue
		}
		return c, true
	}
	return Coupon{}, false
}

func overlaps(a, b []string) bool {
	for _, x := range b {
		for _, y := range a {
			if x == y {
				return true
			}
		}
	}
	return false
}
