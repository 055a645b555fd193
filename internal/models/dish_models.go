package models

import (
	"time"

	"github.com/lib/pq"
)

// Dietary tag vocabulary. Tags outside this set are rejected on dish writes.
const (
	TagVegetarian = "vegetarian"
	TagVegan      = "vegan"
	TagGlutenFree = "gluten_free"
	TagDairyFree  = "dairy_free"
	TagNutFree    = "nut_free"
	TagHalal      = "halal"
)

// IsValidDietaryTag checks if the provided tag is part of the fixed vocabulary.
func IsValidDietaryTag(tag string) bool {
	switch tag {
	case TagVegetarian, TagVegan, TagGlutenFree, TagDairyFree, TagNutFree, TagHalal:
		return true
	default:
		return false
	}
}

// Dish represents a menu entry. The special-pricing sub-record (special_price,
// special_from, special_until) only has effect while is_special is true; the
// pricing resolver ignores it otherwise.
type Dish struct {
	ID           int64          `json:"id" db:"id"`
	Name         string         `json:"name" db:"name" binding:"required"`
	Description  *string        `json:"description,omitempty" db:"description"`
	Price        float64        `json:"price" db:"price"`
	Category     string         `json:"category" db:"category"`
	IsAvailable  bool           `json:"is_available" db:"is_available"`
	DietaryTags  pq.StringArray `json:"dietary_tags" db:"dietary_tags"`
	IsSpecial    bool           `json:"is_special" db:"is_special"`
	SpecialPrice *float64       `json:"special_price,omitempty" db:"special_price"`
	SpecialFrom  *time.Time     `json:"special_from,omitempty" db:"special_from"`
	SpecialUntil *time.Time     `json:"special_until,omitempty" db:"special_until"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// DishFilters defines the available filters for querying dishes.
type DishFilters struct {
	Category  *string `form:"category"`
	Available *bool   `form:"available"`
	Special   *bool   `form:"special"`
	Page      int     `form:"page"`
	PageSize  int     `form:"page_size"`
}
