// Package pricing computes shipment prices from weight, distance and delivery
// type. It is pure and has no dependencies.
package pricing

import "math"

type DeliveryType string

const (
	SameDay DeliveryType = "same_day"
	NextDay DeliveryType = "next_day"
	Reguler DeliveryType = "reguler"
)

const (
	MinimumPrice int64 = 10000

	tier1MaxKm = 50.0
	tier2MaxKm = 100.0
	// beyond tier2 every started block of this many km adds another tier3 charge
	extraBlockKm = 100.0
)

type rate struct {
	base  int64
	perKg int64
	tier1 int64
	tier2 int64
	tier3 int64
}

var rates = map[DeliveryType]rate{
	SameDay: {base: 15000, perKg: 1000, tier1: 6000, tier2: 10000, tier3: 15000},
	NextDay: {base: 10000, perKg: 500, tier1: 4000, tier2: 6000, tier3: 10000},
	Reguler: {base: 5000, perKg: 250, tier1: 2000, tier2: 4000, tier3: 6000},
}

// Breakdown is the price split persisted on the shipment detail.
type Breakdown struct {
	TotalPrice    int64 `json:"total_price"`
	BasePrice     int64 `json:"base_price"`
	WeightPrice   int64 `json:"weight_price"`
	DistancePrice int64 `json:"distance_price"`
}

// Known reports whether t has its own rate card.
func Known(t string) bool {
	_, ok := rates[DeliveryType(t)]
	return ok
}

// Calculate prices a parcel. weightGrams must be positive and distanceKm
// non-negative; callers validate both. Unknown delivery types are priced as
// reguler rather than rejected.
func Calculate(weightGrams int64, distanceKm float64, deliveryType string) Breakdown {
	r, ok := rates[DeliveryType(deliveryType)]
	if !ok {
		r = rates[Reguler]
	}

	weightKg := int64(math.Ceil(float64(weightGrams) / 1000))
	weightPrice := weightKg * r.perKg

	var distancePrice int64
	switch {
	case distanceKm <= tier1MaxKm:
		distancePrice = r.tier1
	case distanceKm <= tier2MaxKm:
		distancePrice = r.tier2
	default:
		extra := int64(math.Ceil((distanceKm - tier2MaxKm) / extraBlockKm))
		distancePrice = r.tier3 + extra*r.tier3
	}

	total := r.base + weightPrice + distancePrice
	if total < MinimumPrice {
		total = MinimumPrice
	}

	return Breakdown{
		TotalPrice:    total,
		BasePrice:     r.base,
		WeightPrice:   weightPrice,
		DistancePrice: distancePrice,
	}
}
