package services

import (
	"testing"
	"time"

	"restaurant_backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrice(t *testing.T) {
	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)

	special := models.Dish{
		Name:         "Chef's Tasting Platter",
		Price:        24.00,
		IsSpecial:    true,
		SpecialPrice: float64Ptr(18.50),
		SpecialFrom:  timePtr(from),
		SpecialUntil: timePtr(until),
	}
	regular := models.Dish{Name: "Margherita Pizza", Price: 12.00}

	tests := []struct {
		name string
		dish models.Dish
		at   time.Time
		want float64
	}{
		{"regular dish keeps its base price", regular, from.Add(24 * time.Hour), 12.00},
		{"inside the special window", special, from.Add(12 * time.Hour), 18.50},
		{"exactly at the window start", special, from, 18.50},
		{"exactly at the window end", special, until, 18.50},
		{"one second before the window", special, from.Add(-time.Second), 24.00},
		{"one second after the window", special, until.Add(time.Second), 24.00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dish := tt.dish
			assert.Equal(t, tt.want, ResolvePrice(&dish, tt.at))
		})
	}
}

func TestResolvePriceIncompleteSpecial(t *testing.T) {
	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	// A special missing part of its window never discounts.
	dish := models.Dish{
		Name:        "Soup of the Day",
		Price:       8.00,
		IsSpecial:   true,
		SpecialFrom: timePtr(from),
	}
	assert.Equal(t, 8.00, ResolvePrice(&dish, from.Add(time.Hour)))

	// A disabled special keeps the base price even with all fields set.
	dish = models.Dish{
		Name:         "Soup of the Day",
		Price:        8.00,
		IsSpecial:    false,
		SpecialPrice: float64Ptr(5.00),
		SpecialFrom:  timePtr(from),
		SpecialUntil: timePtr(from.Add(48 * time.Hour)),
	}
	assert.Equal(t, 8.00, ResolvePrice(&dish, from.Add(time.Hour)))
}
