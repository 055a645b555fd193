package services

import (
	"time"

	"restaurant_backend/internal/models"
)

// ResolvePrice returns the effective unit price of a dish at the given instant.
// The special price applies iff the dish is flagged special, the whole
// special-pricing block (price and both bounds) is present, and the instant
// lies within [SpecialFrom, SpecialUntil], both bounds inclusive.
//
// Pure function with no failure modes: an incomplete special block falls back
// to the regular price. Order creation and bill generation both resolve through
// here, each at its own instant, so the two can legitimately disagree when a
// special window opens or closes in between.
func ResolvePrice(dish *models.Dish, at time.Time) float64 {
	if !dish.IsSpecial || dish.SpecialPrice == nil || dish.SpecialFrom == nil || dish.SpecialUntil == nil {
		return dish.Price
	}
	if at.Before(*dish.SpecialFrom) || at.After(*dish.SpecialUntil) {
		return dish.Price
	}
	return *dish.SpecialPrice
}
