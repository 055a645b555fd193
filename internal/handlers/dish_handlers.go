package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"restaurant_backend/internal/models"
	"restaurant_backend/internal/services"
	"restaurant_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// DishHandler holds the dish catalog service.
type DishHandler struct {
	dishService services.DishService
}

// NewDishHandler creates a new DishHandler.
func NewDishHandler(ds services.DishService) *DishHandler {
	return &DishHandler{dishService: ds}
}

// respondDishError maps dish service errors onto API error responses.
func respondDishError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrDishNotFound):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusNotFound, utils.ErrCodeNotFound, "Dish not found.", err.Error()))
	case errors.Is(err, services.ErrDishNameTaken):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "A dish with this name already exists.", err.Error()))
	case errors.Is(err, services.ErrDishInUse):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeConflict, "Dish is still referenced by open orders.", err.Error()))
	case errors.Is(err, services.ErrValidation):
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid dish data.", err.Error()))
	default:
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback, "Internal error"))
	}
}

// CreateDish adds a new dish to the menu catalog (admin).
func (h *DishHandler) CreateDish(c *gin.Context) {
	var req services.CreateDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "CreateDish: Failed to bind JSON")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	dish, err := h.dishService.CreateDish(req)
	if err != nil {
		utils.LogError(err, "CreateDish: Error from dishService.CreateDish")
		respondDishError(c, err, "Failed to create dish.")
		return
	}
	c.JSON(http.StatusCreated, dish)
}

// GetDishes handles fetching the catalog with filters.
func (h *DishHandler) GetDishes(c *gin.Context) {
	var filters models.DishFilters

	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}
	if availableStr := c.Query("available"); availableStr != "" {
		available, err := strconv.ParseBool(availableStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid available format.", "available must be true or false"))
			return
		}
		filters.Available = &available
	}
	if specialStr := c.Query("special"); specialStr != "" {
		special, err := strconv.ParseBool(specialStr)
		if err != nil {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid special format.", "special must be true or false"))
			return
		}
		filters.Special = &special
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	filters.Page = page
	filters.PageSize = pageSize

	dishes, totalCount, err := h.dishService.GetDishes(filters)
	if err != nil {
		utils.LogError(err, "GetDishes: Error from dishService.GetDishes")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusInternalServerError, utils.ErrCodeInternalServerError, "Failed to fetch dishes.", "Internal error"))
		return
	}

	if dishes == nil {
		dishes = []models.Dish{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":      dishes,
		"total":     totalCount,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	})
}

// GetDishByID fetches a single dish.
func (h *DishHandler) GetDishByID(c *gin.Context) {
	idStr := c.Param("id")
	dishID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid dish ID format.", err.Error()))
		return
	}

	dish, err := h.dishService.GetDishByID(dishID)
	if err != nil {
		utils.LogError(err, "GetDishByID: Error from dishService.GetDishByID for ID "+idStr)
		respondDishError(c, err, "Failed to fetch dish.")
		return
	}
	c.JSON(http.StatusOK, dish)
}

// UpdateDish edits a dish (admin).
func (h *DishHandler) UpdateDish(c *gin.Context) {
	idStr := c.Param("id")
	dishID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid dish ID format.", err.Error()))
		return
	}

	var req services.UpdateDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "UpdateDish: Failed to bind JSON for ID "+idStr)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	dish, err := h.dishService.UpdateDish(dishID, req)
	if err != nil {
		utils.LogError(err, "UpdateDish: Error from dishService.UpdateDish for ID "+idStr)
		respondDishError(c, err, "Failed to update dish.")
		return
	}
	c.JSON(http.StatusOK, dish)
}

// DeleteDish removes a dish from the catalog (admin).
func (h *DishHandler) DeleteDish(c *gin.Context) {
	idStr := c.Param("id")
	dishID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid dish ID format.", err.Error()))
		return
	}

	if err := h.dishService.DeleteDish(dishID); err != nil {
		utils.LogError(err, "DeleteDish: Error from dishService.DeleteDish for ID "+idStr)
		respondDishError(c, err, "Failed to delete dish.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dish deleted successfully"})
}

// SetAvailability flips the availability flag on a dish (admin).
func (h *DishHandler) SetAvailability(c *gin.Context) {
	idStr := c.Param("id")
	dishID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid dish ID format.", err.Error()))
		return
	}

	var req services.SetDishAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError(err, "SetAvailability: Failed to bind JSON for ID "+idStr)
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+err.Error(), err.Error()))
		return
	}

	dish, err := h.dishService.SetAvailability(dishID, *req.IsAvailable)
	if err != nil {
		utils.LogError(err, "SetAvailability: Error from dishService.SetAvailability for ID "+idStr)
		respondDishError(c, err, "Failed to set dish availability.")
		return
	}
	c.JSON(http.StatusOK, dish)
}
