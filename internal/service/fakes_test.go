package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rental-service/internal/calendar"
	"rental-service/internal/models"
)

var errStoreDown = errors.New("connection refused")

type fakeMark struct {
	productID int64
	rentalID  int64
	day       time.Time
	status    models.MarkStatus
}

// fakeStore keeps everything in memory and enforces one reserved mark per
// product and day the way the partial unique index does.
type fakeStore struct {
	mu           sync.Mutex
	nextID       int64
	products     map[int64]*models.Product
	customers    map[int64]*models.Customer
	transactions map[int64]*models.Transaction
	rentals      map[int64]*models.Rental
	payments     []models.Payment
	marks        []fakeMark

	failReads    bool
	failBookings bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:     make(map[int64]*models.Product),
		customers:    make(map[int64]*models.Customer),
		transactions: make(map[int64]*models.Transaction),
		rentals:      make(map[int64]*models.Rental),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProduct(p models.Product) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.id()
	}
	f.products[p.ID] = &p
	return &p
}

func (f *fakeStore) reservedCount(rentalID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.marks {
		if m.rentalID == rentalID && m.status == models.MarkStatusReserved {
			n++
		}
	}
	return n
}

func (f *fakeStore) reservedDays(rentalID int64) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []time.Time
	for _, m := range f.marks {
		if m.rentalID == rentalID && m.status == models.MarkStatusReserved {
			out = append(out, m.day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func unavailableErr(op string) error {
	return &models.StoreUnavailableError{Op: op, Err: errStoreDown}
}

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, models.NewNotFound("product", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[id]
	if !ok {
		return nil, models.NewNotFound("customer", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) GetCustomerByPhone(ctx context.Context, phone string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if c.Phone == customer.Phone {
			*customer = *c
			return nil
		}
	}
	customer.ID = f.id()
	customer.CreatedAt = time.Now()
	cp := *customer
	f.customers[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetReservedDates(ctx context.Context, productID int64, from, to time.Time) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, unavailableErr("get reserved dates")
	}
	from, to = calendar.Day(from), calendar.Day(to)
	var out []time.Time
	for _, m := range f.marks {
		if m.productID == productID && m.status == models.MarkStatusReserved &&
			!m.day.Before(from) && !m.day.After(to) {
			out = append(out, m.day)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (f *fakeStore) insertMarksLocked(productID, rentalID int64, dates []time.Time) error {
	for _, d := range dates {
		day := calendar.Day(d)
		for _, m := range f.marks {
			if m.productID == productID && m.status == models.MarkStatusReserved && m.day.Equal(day) {
				return &models.ConflictError{ProductID: productID, Start: dates[0], End: dates[len(dates)-1],
					Reason: "reserved by another rental (rental_calendar_reserved_uniq)"}
			}
		}
	}
	for _, d := range dates {
		f.marks = append(f.marks, fakeMark{productID, rentalID, calendar.Day(d), models.MarkStatusReserved})
	}
	return nil
}

func (f *fakeStore) InsertReservationMarks(ctx context.Context, productID, rentalID int64, dates []time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertMarksLocked(productID, rentalID, dates)
}

func (f *fakeStore) releaseLocked(rentalID int64) int64 {
	var n int64
	for i := range f.marks {
		if f.marks[i].rentalID == rentalID && f.marks[i].status == models.MarkStatusReserved {
			f.marks[i].status = models.MarkStatusAvailable
			n++
		}
	}
	return n
}

func (f *fakeStore) ReleaseReservations(ctx context.Context, rentalID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releaseLocked(rentalID), nil
}

func (f *fakeStore) CreateRentalBooking(ctx context.Context, booking *models.RentalBooking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBookings {
		return unavailableErr("begin booking")
	}

	rental := booking.Rental
	if rental.IdempotencyKey != nil {
		for _, r := range f.rentals {
			if r.IdempotencyKey != nil && *r.IdempotencyKey == *rental.IdempotencyKey {
				return &models.ConflictError{ProductID: rental.ProductID, Reason: "duplicate idempotency key"}
			}
		}
	}

	// everything is checked before anything is written, like a rolled back tx
	txnID, rentalID := f.nextID+1, f.nextID+2
	if err := f.insertMarksLocked(rental.ProductID, rentalID, booking.Dates); err != nil {
		return err
	}
	f.nextID += 2

	booking.Transaction.ID = txnID
	booking.Transaction.CreatedAt = time.Now()
	txn := *booking.Transaction
	f.transactions[txnID] = &txn

	rental.ID = rentalID
	rental.TransactionID = txnID
	rental.CreatedAt = time.Now()
	r := *rental
	f.rentals[rentalID] = &r

	if booking.Payment != nil {
		booking.Payment.ID = f.id()
		booking.Payment.RentalID = &r.ID
		f.payments = append(f.payments, *booking.Payment)
	}
	return nil
}

func (f *fakeStore) GetRentalByID(ctx context.Context, id int64) (*models.Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, unavailableErr("get rental")
	}
	r, ok := f.rentals[id]
	if !ok {
		return nil, models.NewNotFound("rental", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetRentalByIdempotencyKey(ctx context.Context, key string) (*models.Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rentals {
		if r.IdempotencyKey != nil && *r.IdempotencyKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListOpenRentalsEndingBefore(ctx context.Context, day time.Time) ([]models.Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, unavailableErr("list open rentals")
	}
	var out []models.Rental
	for _, r := range f.rentals {
		if r.Status.IsOpen() && r.EndDate.Before(calendar.Day(day)) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListRentalsByPhone(ctx context.Context, phone string) ([]models.Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Rental
	for _, r := range f.rentals {
		if r.CustomerPhone == phone {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionRental(ctx context.Context, t models.RentalTransition) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rentals[t.RentalID]
	if !ok {
		return 0, models.NewNotFound("rental", t.RentalID)
	}
	r.Status = t.Status
	if t.ReturnedAt != nil {
		at := *t.ReturnedAt
		r.ReturnedAt = &at
	}
	if txn, ok := f.transactions[r.TransactionID]; ok && t.TransactionTo != "" {
		txn.Status = t.TransactionTo
	}
	var released int64
	if t.ReleaseDates {
		released = f.releaseLocked(t.RentalID)
	}
	return released, nil
}

func (f *fakeStore) ApplyRentalPayment(ctx context.Context, rental *models.Rental, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rentals[rental.ID]
	if !ok {
		return models.NewNotFound("rental", rental.ID)
	}
	r.PaidAmount = rental.PaidAmount
	r.RemainingAmount = rental.RemainingAmount
	r.Status = rental.Status
	if txn, ok := f.transactions[r.TransactionID]; ok {
		txn.PaidAmount = txn.PaidAmount.Add(payment.Amount)
		txn.RemainingAmount = remaining(txn.TotalAmount, txn.PaidAmount)
	}
	payment.ID = f.id()
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeStore) CreateSale(ctx context.Context, txn *models.Transaction, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[txn.ProductID]
	if !ok || p.Stock < txn.Quantity {
		return models.NewValidation("quantity", "insufficient stock")
	}
	p.Stock -= txn.Quantity
	txn.ID = f.id()
	cp := *txn
	f.transactions[txn.ID] = &cp
	if payment != nil {
		payment.ID = f.id()
		payment.TransactionID = &cp.ID
		f.payments = append(f.payments, *payment)
	}
	return nil
}

func (f *fakeStore) GetTransactionByID(ctx context.Context, id int64) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[id]
	if !ok {
		return nil, models.NewNotFound("transaction", id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTransactionsByPhone(ctx context.Context, phone string) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.transactions {
		if t.CustomerPhone == phone {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyTransactionPayment(ctx context.Context, txn *models.Transaction, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[txn.ID]
	if !ok {
		return models.NewNotFound("transaction", txn.ID)
	}
	t.PaidAmount = txn.PaidAmount
	t.RemainingAmount = txn.RemainingAmount
	t.Status = txn.Status
	payment.ID = f.id()
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeStore) ListPaymentsByCustomer(ctx context.Context, customerID int64) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeCache is a CalendarCache and BookingLocker in one
type fakeCache struct {
	mu          sync.Mutex
	months      map[string][]byte
	locks       map[int64]string
	invalidated []string
	failLocks   bool
	// busyAttempts reports the lock as held for that many acquisitions
	busyAttempts int
	attempts     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{months: make(map[string][]byte), locks: make(map[int64]string)}
}

func monthKey(productID int64, month string) string {
	return fmt.Sprintf("%d:%s", productID, month)
}

func (c *fakeCache) GetCalendar(ctx context.Context, productID int64, month string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.months[monthKey(productID, month)], nil
}

func (c *fakeCache) SetCalendar(ctx context.Context, productID int64, month string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.months[monthKey(productID, month)] = data
	return nil
}

func (c *fakeCache) InvalidateCalendar(ctx context.Context, productID int64, months []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range months {
		delete(c.months, monthKey(productID, m))
		c.invalidated = append(c.invalidated, m)
	}
	return nil
}

func (c *fakeCache) AcquireBookingLock(ctx context.Context, productID int64, ttl time.Duration) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.failLocks {
		return "", errors.New("redis: connection refused")
	}
	if c.busyAttempts > 0 {
		c.busyAttempts--
		return "", nil
	}
	if _, held := c.locks[productID]; held {
		return "", nil
	}
	c.locks[productID] = "token"
	return "token", nil
}

func (c *fakeCache) ReleaseBookingLock(ctx context.Context, productID int64, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[productID] == token {
		delete(c.locks, productID)
	}
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu       sync.Mutex
	rentals  []*models.RentalEvent
	overdue  []*models.RentalOverdueEvent
	payments []*models.PaymentRecordedEvent
	sales    []*models.SaleRecordedEvent
	fail     bool
}

func (p *fakePublisher) err() error {
	if p.fail {
		return errors.New("kafka unavailable")
	}
	return nil
}

func (p *fakePublisher) PublishRentalEvent(ctx context.Context, event *models.RentalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rentals = append(p.rentals, event)
	return p.err()
}

func (p *fakePublisher) PublishRentalOverdue(ctx context.Context, event *models.RentalOverdueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overdue = append(p.overdue, event)
	return p.err()
}

func (p *fakePublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = append(p.payments, event)
	return p.err()
}

func (p *fakePublisher) PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, event)
	return p.err()
}

func (p *fakePublisher) rentalEventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.rentals))
	for _, e := range p.rentals {
		out = append(out, e.EventType)
	}
	return out
}
