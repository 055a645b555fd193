package handlers

import (
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restaurant_backend/internal/database"
	"restaurant_backend/internal/models"

	"github.com/gin-gonic/gin"
)

const DefaultReportDateLayout = "2006-01-02"

// parseReportRequestParams helps parse common query parameters for reports.
func parseReportRequestParams(c *gin.Context) models.ReportRequestParams {
	var params models.ReportRequestParams
	params.StartDate = c.Query("start_date")
	params.EndDate = c.Query("end_date")
	params.Period = c.Query("period") // daily, weekly, monthly

	if staffIDStr := c.Query("staff_id"); staffIDStr != "" {
		if id, err := strconv.ParseInt(staffIDStr, 10, 64); err == nil {
			params.StaffID = &id
		}
	}
	params.Limit = 10
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			params.Limit = limit
		}
	}
	return params
}

// GetDashboardSummary provides a summary of key metrics for the dashboard.
func GetDashboardSummary(c *gin.Context) {
	db := database.GetDB()
	var summary models.DashboardSummary
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)

	startOfWeek := startOfDay.AddDate(0, 0, -int(startOfDay.Weekday())+1) // Monday start
	if startOfDay.Weekday() == time.Sunday {
		startOfWeek = startOfDay.AddDate(0, 0, -6)
	}
	endOfWeek := startOfWeek.AddDate(0, 0, 7).Add(-time.Nanosecond)

	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endOfMonth := startOfMonth.AddDate(0, 1, 0).Add(-time.Nanosecond)

	// Open Orders Count
	err := db.QueryRow(`SELECT COUNT(*) FROM orders WHERE billed = FALSE AND status NOT IN ('completed', 'cancelled')`).Scan(&summary.OpenOrdersCount)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get open orders count: " + err.Error()})
		return
	}

	// Active Reservations Count (holding a table right now, i.e. inside the conflict window)
	err = db.QueryRow(`SELECT COUNT(*) FROM reservations
	                   WHERE status IN ('pending', 'confirmed', 'seated')
	                   AND reserved_for BETWEEN $1 AND $2`, now.Add(-2*time.Hour), now.Add(2*time.Hour)).Scan(&summary.ActiveReservationsCount)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get active reservations count: " + err.Error()})
		return
	}

	// Pending Cancellation Requests
	err = db.QueryRow(`SELECT COUNT(*) FROM order_items WHERE status = 'cancellation_requested'`).Scan(&summary.PendingCancellationRequests)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get pending cancellation requests: " + err.Error()})
		return
	}

	// Total Sales Today
	err = db.QueryRow(`SELECT COALESCE(SUM(total_amount), 0) FROM bills WHERE payment_status = 'paid' AND created_at BETWEEN $1 AND $2`, startOfDay, endOfDay).Scan(&summary.TotalSalesToday)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get total sales today: " + err.Error()})
		return
	}

	// Total Sales This Week
	err = db.QueryRow(`SELECT COALESCE(SUM(total_amount), 0) FROM bills WHERE payment_status = 'paid' AND created_at BETWEEN $1 AND $2`, startOfWeek, endOfWeek).Scan(&summary.TotalSalesThisWeek)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get total sales this week: " + err.Error()})
		return
	}

	// Total Sales This Month
	err = db.QueryRow(`SELECT COALESCE(SUM(total_amount), 0) FROM bills WHERE payment_status = 'paid' AND created_at BETWEEN $1 AND $2`, startOfMonth, endOfMonth).Scan(&summary.TotalSalesThisMonth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get total sales this month: " + err.Error()})
		return
	}

	// Upcoming Reservations Count (next 24 hours)
	upcomingEndTime := now.Add(24 * time.Hour)
	err = db.QueryRow(`SELECT COUNT(*) FROM reservations WHERE status IN ('pending', 'confirmed') AND reserved_for BETWEEN $1 AND $2`, now, upcomingEndTime).Scan(&summary.UpcomingReservationsCount)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get upcoming reservations count: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// billsDateConditions appends created_at range conditions for the requested
// report dates, treating end_date as a whole day.
func billsDateConditions(params models.ReportRequestParams, queryBuilder *strings.Builder, args *[]interface{}, argIdx *int, alias string) {
	if params.StartDate != "" {
		queryBuilder.WriteString(" AND " + alias + ".created_at >= $" + strconv.Itoa(*argIdx))
		*args = append(*args, params.StartDate)
		*argIdx++
	}
	if params.EndDate != "" {
		endDateParsed, err := time.Parse(DefaultReportDateLayout, params.EndDate)
		if err == nil {
			endDateAdjusted := endDateParsed.AddDate(0, 0, 1).Format(DefaultReportDateLayout)
			queryBuilder.WriteString(" AND " + alias + ".created_at < $" + strconv.Itoa(*argIdx))
			*args = append(*args, endDateAdjusted)
			*argIdx++
		} else {
			queryBuilder.WriteString(" AND " + alias + ".created_at <= $" + strconv.Itoa(*argIdx))
			*args = append(*args, params.EndDate)
			*argIdx++
		}
	}
	if params.StaffID != nil {
		queryBuilder.WriteString(" AND " + alias + ".staff_id = $" + strconv.Itoa(*argIdx))
		*args = append(*args, *params.StaffID)
		*argIdx++
	}
}

// GetSalesReports aggregates revenue over paid bills: overall totals, a
// per-period series and the top-selling dishes for the same range.
func GetSalesReports(c *gin.Context) {
	params := parseReportRequestParams(c)
	db := database.GetDB()

	report := models.SalesReport{
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
		Series:    []models.SalesReportPoint{},
		TopDishes: []models.DishSalesItem{},
	}

	// Overall totals.
	var totalsBuilder strings.Builder
	totalsArgs := []interface{}{}
	totalsIdx := 1
	totalsBuilder.WriteString(`SELECT COUNT(*), COALESCE(SUM(b.total_amount), 0) FROM bills b WHERE b.payment_status = 'paid'`)
	billsDateConditions(params, &totalsBuilder, &totalsArgs, &totalsIdx, "b")
	if err := db.QueryRow(totalsBuilder.String(), totalsArgs...).Scan(&report.BillsCount, &report.TotalRevenue); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query sales totals: " + err.Error()})
		return
	}

	// Per-period series.
	dateFormat := "YYYY-MM-DD" // Default daily
	switch params.Period {
	case "weekly":
		dateFormat = "IYYY-IW" // ISO year and week number
	case "monthly":
		dateFormat = "YYYY-MM"
	}

	var seriesBuilder strings.Builder
	seriesArgs := []interface{}{dateFormat}
	seriesIdx := 2
	seriesBuilder.WriteString(`
		SELECT
			TO_CHAR(b.created_at, $1) as report_date,
			COUNT(*) as bills_count,
			COALESCE(SUM(b.total_amount), 0) as total_sales,
			COALESCE(AVG(b.total_amount), 0) as average_bill
		FROM bills b
		WHERE b.payment_status = 'paid'
	`)
	billsDateConditions(params, &seriesBuilder, &seriesArgs, &seriesIdx, "b")
	seriesBuilder.WriteString(" GROUP BY report_date ORDER BY report_date DESC")

	seriesRows, err := db.Query(seriesBuilder.String(), seriesArgs...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query sales series: " + err.Error()})
		return
	}
	defer seriesRows.Close()
	for seriesRows.Next() {
		var point models.SalesReportPoint
		if err := seriesRows.Scan(&point.Date, &point.BillsCount, &point.TotalSales, &point.AverageBill); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan sales series row: " + err.Error()})
			return
		}
		report.Series = append(report.Series, point)
	}
	if err := seriesRows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sales series rows: " + err.Error()})
		return
	}

	// Top dishes by sold quantity, from the line items of paid bills.
	var topBuilder strings.Builder
	topArgs := []interface{}{}
	topIdx := 1
	topBuilder.WriteString(`
		SELECT
			bi.dish_id,
			bi.dish_name,
			SUM(bi.quantity) as total_quantity,
			SUM(bi.quantity * bi.unit_price) as total_revenue
		FROM bill_items bi
		JOIN bills b ON bi.bill_id = b.id
		WHERE b.payment_status = 'paid'
	`)
	billsDateConditions(params, &topBuilder, &topArgs, &topIdx, "b")
	topBuilder.WriteString(" GROUP BY bi.dish_id, bi.dish_name")
	topBuilder.WriteString(" ORDER BY total_quantity DESC, total_revenue DESC")
	topBuilder.WriteString(" LIMIT $" + strconv.Itoa(topIdx))
	topArgs = append(topArgs, params.Limit)

	topRows, err := db.Query(topBuilder.String(), topArgs...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query top dishes: " + err.Error()})
		return
	}
	defer topRows.Close()
	for topRows.Next() {
		var item models.DishSalesItem
		if err := topRows.Scan(&item.DishID, &item.DishName, &item.TotalQuantity, &item.TotalRevenue); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan top dish row: " + err.Error()})
			return
		}
		report.TopDishes = append(report.TopDishes, item)
	}
	if err := topRows.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read top dish rows: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}
