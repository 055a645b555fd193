package models

// SalesReportPoint is one per-period bucket of the sales report, aggregated
// over paid bills.
type SalesReportPoint struct {
	Date        string  `json:"date"` // YYYY-MM-DD (or YYYY-MM / ISO week for coarser periods)
	BillsCount  int     `json:"bills_count"`
	TotalSales  float64 `json:"total_sales"`
	AverageBill float64 `json:"average_bill"`
}

// DishSalesItem aggregates sold quantity and revenue per dish from the line
// items of paid bills.
type DishSalesItem struct {
	DishID        int64   `json:"dish_id"`
	DishName      string  `json:"dish_name"`
	TotalQuantity int     `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// SalesReport is the full sales report payload: overall totals, the per-period
// series and the best-selling dishes for the same range.
type SalesReport struct {
	StartDate    string             `json:"start_date,omitempty"`
	EndDate      string             `json:"end_date,omitempty"`
	TotalRevenue float64            `json:"total_revenue"`
	BillsCount   int                `json:"bills_count"`
	Series       []SalesReportPoint `json:"series"`
	TopDishes    []DishSalesItem    `json:"top_dishes"`
}

// DashboardSummary holds key metrics for the dashboard.
type DashboardSummary struct {
	OpenOrdersCount             int     `json:"open_orders_count"`
	ActiveReservationsCount     int     `json:"active_reservations_count"`
	PendingCancellationRequests int     `json:"pending_cancellation_requests"`
	TotalSalesToday             float64 `json:"total_sales_today"`
	TotalSalesThisWeek          float64 `json:"total_sales_this_week"`
	TotalSalesThisMonth         float64 `json:"total_sales_this_month"`
	UpcomingReservationsCount   int     `json:"upcoming_reservations_count"`
}

// ReportRequestParams holds common query parameters for reports.
type ReportRequestParams struct {
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	Period    string // daily (default), weekly, monthly
	StaffID   *int64
	Limit     int // Cap for top-dishes rows
}
