package router

import (
	"restaurant_backend/internal/handlers"
	"restaurant_backend/internal/middleware"
	"restaurant_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes sets up the authentication routes. Registration, login and
// the password reset pair are public; /me requires a valid token.
func SetupAuthRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.RegisterUser)
		authRoutes.POST("/login", authHandler.LoginUser)
		authRoutes.POST("/password-reset/request", authHandler.RequestPasswordReset)
		authRoutes.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)

		authRequiredRoutes := authRoutes.Group("")
		authRequiredRoutes.Use(middleware.AuthMiddleware())
		{
			authRequiredRoutes.GET("/me", authHandler.GetCurrentUser)
		}
	}
}

// SetupUserRoutes sets up the user administration routes.
func SetupUserRoutes(authenticatedGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	userRoutes := authenticatedGroup.Group("/users")
	userRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
	{
		userRoutes.GET("", authHandler.GetUsers)
		userRoutes.PATCH("/:id/role", authHandler.UpdateUserRole)
	}
}

// SetupDishRoutes sets up the menu routes.
// Note: RoleAuthMiddleware is applied specifically for write and read operations.
func SetupDishRoutes(authenticatedGroup *gin.RouterGroup, dishHandler *handlers.DishHandler) {
	dishWriteRoutes := authenticatedGroup.Group("/dishes")
	dishWriteRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin)) // Admin only for POST, PUT, PATCH, DELETE
	{
		dishWriteRoutes.POST("", dishHandler.CreateDish)
		dishWriteRoutes.PUT("/:id", dishHandler.UpdateDish)
		dishWriteRoutes.PATCH("/:id/availability", dishHandler.SetAvailability)
		dishWriteRoutes.DELETE("/:id", dishHandler.DeleteDish)
	}

	// Any authenticated user can browse the menu.
	authenticatedGroup.GET("/dishes", dishHandler.GetDishes)
	authenticatedGroup.GET("/dishes/:id", dishHandler.GetDishByID)
}

// SetupOrderRoutes sets up the order routes. Waiters place and close orders,
// the kitchen moves items through their lifecycle, and only admins resolve
// cancellation requests or force an item to cancelled.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := authenticatedGroup.Group("/orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleWaiter, models.RoleChef))
	{
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrderByID)
		orderRoutes.PATCH("/:id/items/:item_id/status", middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleChef), orderHandler.UpdateItemStatus)

		waiterRoutes := orderRoutes.Group("")
		waiterRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleWaiter))
		{
			waiterRoutes.POST("", orderHandler.CreateOrder)
			waiterRoutes.POST("/:id/items/:item_id/cancellation-request", orderHandler.RequestItemCancellation)
			waiterRoutes.PATCH("/:id/complete", orderHandler.CompleteOrder)
			waiterRoutes.PATCH("/:id/cancel", orderHandler.CancelOrder)
		}

		orderRoutes.PATCH("/:id/items/:item_id/cancellation", middleware.RoleAuthMiddleware(models.RoleAdmin), orderHandler.ResolveItemCancellation)
	}
}

// SetupBillRoutes sets up the billing routes.
func SetupBillRoutes(authenticatedGroup *gin.RouterGroup, billHandler *handlers.BillHandler) {
	billRoutes := authenticatedGroup.Group("/bills")
	billRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleWaiter))
	{
		billRoutes.POST("", billHandler.GenerateBill)
		billRoutes.POST("/split", billHandler.SplitBill)
		billRoutes.GET("", billHandler.GetBills)
		billRoutes.GET("/:id", billHandler.GetBillByID)
		billRoutes.PATCH("/:id/payment", billHandler.UpdatePaymentStatus)
	}
}

// SetupReservationRoutes sets up the reservation routes. Customers reach
// these too; the service layer restricts them to their own reservations.
func SetupReservationRoutes(authenticatedGroup *gin.RouterGroup, reservationHandler *handlers.ReservationHandler) {
	reservationRoutes := authenticatedGroup.Group("/reservations")
	{
		reservationRoutes.POST("", reservationHandler.CreateReservation)
		reservationRoutes.GET("", reservationHandler.GetReservations)
		reservationRoutes.GET("/:id", reservationHandler.GetReservationByID)
		reservationRoutes.PUT("/:id", reservationHandler.UpdateReservation)
		reservationRoutes.PATCH("/:id/cancel", reservationHandler.CancelReservation)

		reservationRoutes.PATCH("/:id/approve", middleware.RoleAuthMiddleware(models.RoleAdmin), reservationHandler.ApproveReservation)

		staffRoutes := reservationRoutes.Group("")
		staffRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleWaiter))
		{
			staffRoutes.PATCH("/:id/seat", reservationHandler.SeatReservation)
			staffRoutes.PATCH("/:id/complete", reservationHandler.CompleteReservation)
		}
	}
}

// SetupTableRoutes sets up the table inventory routes.
func SetupTableRoutes(authenticatedGroup *gin.RouterGroup, reservationHandler *handlers.ReservationHandler) {
	tableRoutes := authenticatedGroup.Group("/tables")
	{
		tableRoutes.GET("", reservationHandler.GetTables)
		tableRoutes.GET("/availability", reservationHandler.CheckAvailability)
	}
}

// SetupReportRoutes sets up the report routes.
func SetupReportRoutes(authenticatedGroup *gin.RouterGroup) {
	reportRoutes := authenticatedGroup.Group("/reports")
	reportRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
	{
		reportRoutes.GET("/sales", handlers.GetSalesReports)
	}
}

// SetupDashboardRoutes sets up the dashboard routes.
func SetupDashboardRoutes(authenticatedGroup *gin.RouterGroup) {
	dashboardRoutes := authenticatedGroup.Group("/dashboard")
	dashboardRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleWaiter))
	{
		dashboardRoutes.GET("/summary", handlers.GetDashboardSummary)
	}
}
