package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/repositories"
)

// --- Custom Service Errors for Dishes ---
var (
	ErrDishNotFound  = errors.New("dish not found")
	ErrDishNameTaken = errors.New("a dish with this name already exists")
	ErrDishInUse     = errors.New("dish is referenced by open orders")
)

// --- Data Transfer Objects (DTOs) ---

// CreateDishRequest adds a dish to the catalog. Price uses a pointer so a
// legitimate zero price survives required-field binding.
type CreateDishRequest struct {
	Name         string     `json:"name" binding:"required"`
	Description  *string    `json:"description"`
	Price        *float64   `json:"price" binding:"required"`
	Category     string     `json:"category" binding:"required"`
	IsAvailable  *bool      `json:"is_available"`
	DietaryTags  []string   `json:"dietary_tags"`
	IsSpecial    bool       `json:"is_special"`
	SpecialPrice *float64   `json:"special_price"`
	SpecialFrom  *time.Time `json:"special_from"`
	SpecialUntil *time.Time `json:"special_until"`
}

// UpdateDishRequest edits a dish. Only provided fields change.
type UpdateDishRequest struct {
	Name         *string    `json:"name"`
	Description  *string    `json:"description"`
	Price        *float64   `json:"price"`
	Category     *string    `json:"category"`
	IsAvailable  *bool      `json:"is_available"`
	DietaryTags  *[]string  `json:"dietary_tags"`
	IsSpecial    *bool      `json:"is_special"`
	SpecialPrice *float64   `json:"special_price"`
	SpecialFrom  *time.Time `json:"special_from"`
	SpecialUntil *time.Time `json:"special_until"`
}

// SetDishAvailabilityRequest toggles the 86 flag on a dish.
type SetDishAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// --- DishService Interface ---
type DishService interface {
	CreateDish(req CreateDishRequest) (*models.Dish, error)
	GetDishByID(dishID int64) (*models.Dish, error)
	GetDishes(filters models.DishFilters) ([]models.Dish, int, error)
	UpdateDish(dishID int64, req UpdateDishRequest) (*models.Dish, error)
	DeleteDish(dishID int64) error
	SetAvailability(dishID int64, available bool) (*models.Dish, error)
}

// --- dishService Implementation ---
type dishService struct {
	dishRepo repositories.DishRepository
	db       *sql.DB
}

// NewDishService creates a new instance of DishService.
func NewDishService(dr repositories.DishRepository, db *sql.DB) DishService {
	return &dishService{dishRepo: dr, db: db}
}

// --- Method Implementations ---

func (s *dishService) CreateDish(req CreateDishRequest) (*models.Dish, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: dish name cannot be empty", ErrValidation)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, fmt.Errorf("%w: dish category cannot be empty", ErrValidation)
	}
	if req.Price == nil || *req.Price < 0 {
		return nil, fmt.Errorf("%w: price must be zero or positive", ErrValidation)
	}
	if err := validateDietaryTags(req.DietaryTags); err != nil {
		return nil, err
	}

	dish := models.Dish{
		Name:         name,
		Description:  req.Description,
		Price:        *req.Price,
		Category:     category,
		IsAvailable:  true, // New dishes default to available.
		DietaryTags:  req.DietaryTags,
		IsSpecial:    req.IsSpecial,
		SpecialPrice: req.SpecialPrice,
		SpecialFrom:  req.SpecialFrom,
		SpecialUntil: req.SpecialUntil,
	}
	if req.IsAvailable != nil {
		dish.IsAvailable = *req.IsAvailable
	}
	if err := normalizeSpecialPricing(&dish); err != nil {
		return nil, err
	}

	dishID, err := s.dishRepo.CreateDish(s.db, &dish)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: '%s'", ErrDishNameTaken, name)
		}
		return nil, fmt.Errorf("failed to create dish: %w", err)
	}
	return s.GetDishByID(dishID)
}

func (s *dishService) GetDishByID(dishID int64) (*models.Dish, error) {
	dish, err := s.dishRepo.GetDishByID(dishID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrDishNotFound
		}
		return nil, fmt.Errorf("failed to get dish by ID: %w", err)
	}
	return dish, nil
}

func (s *dishService) GetDishes(filters models.DishFilters) ([]models.Dish, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 {
		filters.PageSize = 10
	}
	dishes, totalCount, err := s.dishRepo.GetDishes(filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get dishes: %w", err)
	}
	return dishes, totalCount, nil
}

func (s *dishService) UpdateDish(dishID int64, req UpdateDishRequest) (*models.Dish, error) {
	dish, err := s.GetDishByID(dishID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: dish name cannot be empty", ErrValidation)
		}
		dish.Name = name
	}
	if req.Description != nil {
		dish.Description = req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, fmt.Errorf("%w: price must be zero or positive", ErrValidation)
		}
		dish.Price = *req.Price
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return nil, fmt.Errorf("%w: dish category cannot be empty", ErrValidation)
		}
		dish.Category = category
	}
	if req.IsAvailable != nil {
		dish.IsAvailable = *req.IsAvailable
	}
	if req.DietaryTags != nil {
		if err := validateDietaryTags(*req.DietaryTags); err != nil {
			return nil, err
		}
		dish.DietaryTags = *req.DietaryTags
	}
	if req.IsSpecial != nil {
		dish.IsSpecial = *req.IsSpecial
	}
	if req.SpecialPrice != nil {
		dish.SpecialPrice = req.SpecialPrice
	}
	if req.SpecialFrom != nil {
		dish.SpecialFrom = req.SpecialFrom
	}
	if req.SpecialUntil != nil {
		dish.SpecialUntil = req.SpecialUntil
	}
	if err := normalizeSpecialPricing(dish); err != nil {
		return nil, err
	}

	if err := s.dishRepo.UpdateDish(s.db, dish); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: '%s'", ErrDishNameTaken, dish.Name)
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrDishNotFound
		}
		return nil, fmt.Errorf("failed to update dish: %w", err)
	}
	return s.GetDishByID(dishID)
}

// DeleteDish removes a dish from the catalog. Deletion is refused while any
// unbilled, non-cancelled order still carries the dish; historical orders and
// bills are unaffected because they snapshot dish details at write time.
func (s *dishService) DeleteDish(dishID int64) error {
	openRefs, err := s.dishRepo.CountOpenOrderReferences(dishID)
	if err != nil {
		return fmt.Errorf("failed to check order references: %w", err)
	}
	if openRefs > 0 {
		return fmt.Errorf("%w: %d open order item(s)", ErrDishInUse, openRefs)
	}

	if err := s.dishRepo.DeleteDish(s.db, dishID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrDishNotFound
		}
		return fmt.Errorf("failed to delete dish: %w", err)
	}
	return nil
}

func (s *dishService) SetAvailability(dishID int64, available bool) (*models.Dish, error) {
	if err := s.dishRepo.SetAvailability(s.db, dishID, available); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrDishNotFound
		}
		return nil, fmt.Errorf("failed to set dish availability: %w", err)
	}
	return s.GetDishByID(dishID)
}

// --- Internal helpers ---

func validateDietaryTags(tags []string) error {
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if !models.IsValidDietaryTag(tag) {
			return fmt.Errorf("%w: unknown dietary tag '%s'", ErrValidation, tag)
		}
		if seen[tag] {
			return fmt.Errorf("%w: duplicate dietary tag '%s'", ErrValidation, tag)
		}
		seen[tag] = true
	}
	return nil
}

// normalizeSpecialPricing enforces the all-or-nothing shape of the special
// pricing sub-record: an active special needs price and both window bounds;
// an inactive one carries none of them.
func normalizeSpecialPricing(dish *models.Dish) error {
	if !dish.IsSpecial {
		dish.SpecialPrice = nil
		dish.SpecialFrom = nil
		dish.SpecialUntil = nil
		return nil
	}
	if dish.SpecialPrice == nil || dish.SpecialFrom == nil || dish.SpecialUntil == nil {
		return fmt.Errorf("%w: a special needs special_price, special_from and special_until", ErrValidation)
	}
	if *dish.SpecialPrice < 0 {
		return fmt.Errorf("%w: special price must be zero or positive", ErrValidation)
	}
	if dish.SpecialFrom.After(*dish.SpecialUntil) {
		return fmt.Errorf("%w: special_from must not be after special_until", ErrValidation)
	}
	return nil
}
