package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/models"
	"rental-service/internal/service"
	"rental-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AvailabilityService answers calendar questions
type AvailabilityService interface {
	IsRangeAvailable(ctx context.Context, productID int64, start, end time.Time) bool
	MonthlyAvailability(ctx context.Context, productID int64, month time.Time) (*models.ProductAvailability, error)
}

// RentalService drives the rental lifecycle
type RentalService interface {
	BookRental(ctx context.Context, req service.BookRentalRequest) (*models.Rental, error)
	GetRental(ctx context.Context, rentalID int64) (*models.Rental, error)
	UpdateStatus(ctx context.Context, rentalID int64, status models.RentalStatus, returnedAt *time.Time) (*models.Rental, error)
	RecordPayment(ctx context.Context, rentalID int64, req service.PaymentRequest) (*models.Rental, error)
	ReleaseDates(ctx context.Context, rentalID int64) (int64, error)
	ListOverdue(ctx context.Context, now time.Time) ([]models.Rental, error)
	Now() time.Time
}

// CustomerService looks customers up by phone
type CustomerService interface {
	FindOrCreate(ctx context.Context, name, phone string, email *string) (*models.Customer, error)
	History(ctx context.Context, customerID int64) (*models.CustomerHistory, error)
}

// SaleService records sales
type SaleService interface {
	RecordSale(ctx context.Context, req service.SaleRequest) (*models.Transaction, error)
}

// PaymentService records installments against transactions
type PaymentService interface {
	RecordTransactionPayment(ctx context.Context, transactionID int64, req service.PaymentRequest) (*models.Transaction, error)
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Services bundles what the handler serves
type Services struct {
	Availability AvailabilityService
	Rentals      RentalService
	Customers    CustomerService
	Sales        SaleService
	Payments     PaymentService
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	checks map[string]ReadinessCheck
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, checks map[string]ReadinessCheck) *Handler {
	return &Handler{
		svc:    svc,
		checks: checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products/:id/availability", h.checkAvailability)
		v1.GET("/products/:id/calendar", h.monthlyCalendar)

		v1.POST("/rentals", h.bookRental)
		v1.GET("/rentals/overdue", h.listOverdue)
		v1.GET("/rentals/:id", h.getRental)
		v1.PATCH("/rentals/:id/status", h.updateRentalStatus)
		v1.POST("/rentals/:id/payments", h.recordRentalPayment)
		v1.POST("/rentals/:id/release", h.releaseRentalDates)

		v1.POST("/sales", h.recordSale)
		v1.POST("/transactions/:id/payments", h.recordTransactionPayment)

		v1.POST("/customers", h.findOrCreateCustomer)
		v1.GET("/customers/:id/history", h.customerHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// checkAvailability answers whether a product is free on every day of a range
func (h *Handler) checkAvailability(c *gin.Context) {
	productID, ok := pathID(c, "product")
	if !ok {
		return
	}

	start, err := calendar.ParseDate(c.Query("start"))
	if err != nil {
		badRequest(c, "Invalid start date", err)
		return
	}
	end := start
	if raw := c.Query("end"); raw != "" {
		if end, err = calendar.ParseDate(raw); err != nil {
			badRequest(c, "Invalid end date", err)
			return
		}
	}

	available := h.svc.Availability.IsRangeAvailable(c.Request.Context(), productID, start, end)
	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"start_date": start.Format(calendar.DateLayout),
		"end_date":   end.Format(calendar.DateLayout),
		"available":  available,
	})
}

// monthlyCalendar returns the reserved and available days of a month
func (h *Handler) monthlyCalendar(c *gin.Context) {
	productID, ok := pathID(c, "product")
	if !ok {
		return
	}

	month := time.Now()
	if raw := c.Query("month"); raw != "" {
		parsed, err := calendar.ParseMonth(raw)
		if err != nil {
			badRequest(c, "Invalid month", err)
			return
		}
		month = parsed
	}

	view, err := h.svc.Availability.MonthlyAvailability(c.Request.Context(), productID, month)
	if err != nil {
		h.writeError(c, "Failed to load calendar", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type bookRentalBody struct {
	ProductID      int64                `json:"product_id" binding:"required"`
	CustomerName   string               `json:"customer_name"`
	CustomerPhone  string               `json:"customer_phone" binding:"required"`
	CustomerEmail  *string              `json:"customer_email"`
	StartDate      string               `json:"start_date" binding:"required"`
	EndDate        string               `json:"end_date"`
	RentalDays     int                  `json:"rental_days"`
	Discount       decimal.Decimal      `json:"discount"`
	PaidAmount     *decimal.Decimal     `json:"paid_amount"`
	DepositAmount  decimal.Decimal      `json:"deposit_amount"`
	PaymentMethod  models.PaymentMethod `json:"payment_method"`
	AgentID        string               `json:"agent_id"`
	AgentName      string               `json:"agent_name"`
	Notes          *string              `json:"notes"`
	IdempotencyKey string               `json:"idempotency_key"`
}

type rentalResponse struct {
	*models.Rental
	DisplayStatus models.RentalStatus `json:"display_status"`
}

func (h *Handler) rentalView(r *models.Rental) rentalResponse {
	return rentalResponse{Rental: r, DisplayStatus: service.DisplayStatus(r, h.svc.Rentals.Now())}
}

// bookRental handles rental booking
func (h *Handler) bookRental(c *gin.Context) {
	var body bookRentalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	start, err := calendar.ParseDate(body.StartDate)
	if err != nil {
		badRequest(c, "Invalid start_date", err)
		return
	}

	req := service.BookRentalRequest{
		ProductID:      body.ProductID,
		CustomerName:   body.CustomerName,
		CustomerPhone:  body.CustomerPhone,
		CustomerEmail:  body.CustomerEmail,
		StartDate:      start,
		RentalDays:     body.RentalDays,
		Discount:       body.Discount,
		PaidAmount:     body.PaidAmount,
		DepositAmount:  body.DepositAmount,
		PaymentMethod:  body.PaymentMethod,
		AgentID:        body.AgentID,
		AgentName:      body.AgentName,
		Notes:          body.Notes,
		IdempotencyKey: body.IdempotencyKey,
	}
	if body.EndDate != "" {
		end, err := calendar.ParseDate(body.EndDate)
		if err != nil {
			badRequest(c, "Invalid end_date", err)
			return
		}
		req.EndDate = &end
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	rental, err := h.svc.Rentals.BookRental(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Failed to book rental", err)
		return
	}

	c.JSON(http.StatusCreated, h.rentalView(rental))
}

// getRental handles get rental by ID
func (h *Handler) getRental(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}

	rental, err := h.svc.Rentals.GetRental(c.Request.Context(), rentalID)
	if err != nil {
		h.writeError(c, "Failed to load rental", err)
		return
	}
	c.JSON(http.StatusOK, h.rentalView(rental))
}

// listOverdue lists open rentals past their end date
func (h *Handler) listOverdue(c *gin.Context) {
	now := h.svc.Rentals.Now()
	rentals, err := h.svc.Rentals.ListOverdue(c.Request.Context(), now)
	if err != nil {
		h.writeError(c, "Failed to list overdue rentals", err)
		return
	}

	views := make([]rentalResponse, 0, len(rentals))
	for i := range rentals {
		views = append(views, h.rentalView(&rentals[i]))
	}
	c.JSON(http.StatusOK, gin.H{"rentals": views})
}

type updateStatusBody struct {
	Status     models.RentalStatus `json:"status" binding:"required"`
	ReturnedAt *time.Time          `json:"returned_at"`
}

// updateRentalStatus returns or cancels a rental
func (h *Handler) updateRentalStatus(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}

	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	rental, err := h.svc.Rentals.UpdateStatus(c.Request.Context(), rentalID, body.Status, body.ReturnedAt)
	if err != nil {
		h.writeError(c, "Failed to update rental status", err)
		return
	}
	c.JSON(http.StatusOK, h.rentalView(rental))
}

// recordRentalPayment adds an installment to a rental
func (h *Handler) recordRentalPayment(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}

	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	rental, err := h.svc.Rentals.RecordPayment(c.Request.Context(), rentalID, req)
	if err != nil {
		h.writeError(c, "Failed to record payment", err)
		return
	}
	c.JSON(http.StatusCreated, h.rentalView(rental))
}

// releaseRentalDates frees the dates still held by a closed rental
func (h *Handler) releaseRentalDates(c *gin.Context) {
	rentalID, ok := pathID(c, "rental")
	if !ok {
		return
	}

	released, err := h.svc.Rentals.ReleaseDates(c.Request.Context(), rentalID)
	if err != nil {
		h.writeError(c, "Failed to release dates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rental_id": rentalID,
		"released":  released,
	})
}

// recordSale handles sale creation
func (h *Handler) recordSale(c *gin.Context) {
	var req service.SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	txn, err := h.svc.Sales.RecordSale(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Failed to record sale", err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// recordTransactionPayment adds an installment to a sale
func (h *Handler) recordTransactionPayment(c *gin.Context) {
	txID, ok := pathID(c, "transaction")
	if !ok {
		return
	}

	var req service.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	txn, err := h.svc.Payments.RecordTransactionPayment(c.Request.Context(), txID, req)
	if err != nil {
		h.writeError(c, "Failed to record payment", err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

type customerBody struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone" binding:"required"`
	Email *string `json:"email"`
}

// findOrCreateCustomer returns the customer with the phone, creating it if needed
func (h *Handler) findOrCreateCustomer(c *gin.Context) {
	var body customerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	customer, err := h.svc.Customers.FindOrCreate(c.Request.Context(), body.Name, body.Phone, body.Email)
	if err != nil {
		h.writeError(c, "Failed to save customer", err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// customerHistory lists a customer's transactions, rentals and payments
func (h *Handler) customerHistory(c *gin.Context) {
	customerID, ok := pathID(c, "customer")
	if !ok {
		return
	}

	history, err := h.svc.Customers.History(c.Request.Context(), customerID)
	if err != nil {
		h.writeError(c, "Failed to load customer history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func pathID(c *gin.Context, entity string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + entity + " ID",
		})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		util.ForContext(c.Request.Context()).Error(msg,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	body := gin.H{
		"error":   msg,
		"details": err.Error(),
	}

	var conflict *models.ConflictError
	if errors.As(err, &conflict) {
		body["product_id"] = conflict.ProductID
		body["start_date"] = conflict.Start.Format(calendar.DateLayout)
		body["end_date"] = conflict.End.Format(calendar.DateLayout)
	}
	if errors.Is(err, models.ErrBusy) {
		c.Header("Retry-After", "1")
	}
	var invalid *models.ValidationError
	if errors.As(err, &invalid) && invalid.Field != "" {
		body["field"] = invalid.Field
	}

	c.JSON(status, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(time.Since(start).Seconds())

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// RequestLogger logs each request with zap
func RequestLogger() gin.HandlerFunc {
	logger := util.GetLogger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if strings.HasPrefix(c.Request.URL.Path, "/metrics") {
			return
		}
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
