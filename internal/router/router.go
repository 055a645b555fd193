package router

import (
	"database/sql"

	"restaurant_backend/internal/handlers"
	"restaurant_backend/internal/middleware"
	"restaurant_backend/internal/notifier"
	"restaurant_backend/internal/repositories"
	"restaurant_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Setup initializes the routing for the application. tables is the
// restaurant's fixed table inventory; n delivers customer notifications and
// may be nil to disable them.
func Setup(engine *gin.Engine, db *sql.DB, tables []string, n notifier.Notifier) {
	// Initialize Repositories
	userRepo := repositories.NewUserRepository(db)
	dishRepo := repositories.NewDishRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	billRepo := repositories.NewBillRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)

	// Initialize Services
	authService := services.NewAuthService(userRepo, db, nil)
	dishService := services.NewDishService(dishRepo, db)
	orderService := services.NewOrderService(orderRepo, dishRepo, db, tables, n, nil)
	billingService := services.NewBillingService(billRepo, orderRepo, dishRepo, db, n, nil)
	reservationService := services.NewReservationService(reservationRepo, db, tables, n, nil)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	dishHandler := handlers.NewDishHandler(dishService)
	orderHandler := handlers.NewOrderHandler(orderService)
	billHandler := handlers.NewBillHandler(billingService)
	reservationHandler := handlers.NewReservationHandler(reservationService)

	apiV1 := engine.Group("/api/v1")

	// Registration, login and password resets stay outside AuthMiddleware;
	// /auth/me is attached to the authenticated sub-group inside.
	SetupAuthRoutes(apiV1, authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupUserRoutes(authenticated, authHandler)
		SetupDishRoutes(authenticated, dishHandler)
		SetupOrderRoutes(authenticated, orderHandler)
		SetupBillRoutes(authenticated, billHandler)
		SetupReservationRoutes(authenticated, reservationHandler)
		SetupTableRoutes(authenticated, reservationHandler)
		SetupReportRoutes(authenticated)
		SetupDashboardRoutes(authenticated)
	}
}
