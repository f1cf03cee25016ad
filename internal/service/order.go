package service

import (
	"context"
	"errors"
	"time"

	"github.com/vendora/marketplace/internal/logger"
	"github.com/vendora/marketplace/internal/models"
	"go.uber.org/zap"
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder inserts new order to database
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrderByNumber returns order by number
	GetOrderByNumber(ctx context.Context, num string) (*models.Order, error)
	// GetOrdersByUserID gets orders created by user
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	// GetOrdersByVendorID gets orders addressed to vendor
	GetOrdersByVendorID(ctx context.Context, vendorID int64) ([]models.Order, error)
	// UpdateOrderStatus conditionally transitions the order
	UpdateOrderStatus(ctx context.Context, number string, status models.OrderStatus, allowed []models.OrderStatus) error
	// Reschedule records the prior slot and overwrites it
	Reschedule(ctx context.Context, order *models.Order, newDate time.Time, newTime string) error
	// GetReschedules returns the reschedule audit trail
	GetReschedules(ctx context.Context, orderID int64) ([]models.Reschedule, error)
}

// CouponApplier validates and prices a coupon for an order amount
type CouponApplier interface {
	Apply(ctx context.Context, code string, orderAmount float64, userID int64) (*models.Coupon, float64, error)
}

// EventPublisher emits post-commit domain events
type EventPublisher interface {
	Publish(event models.Event)
}

// CreateOrderInput is everything the customer supplies at booking time
type CreateOrderInput struct {
	UserID       int64
	VendorID     int64
	ServiceID    int64
	ServicePrice float64
	BookingDate  time.Time
	BookingTime  string
	Notes        string
	CouponCode   string
}

// OrderService drives the booking life-cycle state machine
type OrderService struct {
	repo            OrderRepository
	coupons         CouponApplier
	publisher       EventPublisher
	taxRate         float64
	platformFeeRate float64
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, coupons CouponApplier, publisher EventPublisher, taxRate, platformFeeRate float64) *OrderService {
	return &OrderService{
		repo:            repo,
		coupons:         coupons,
		publisher:       publisher,
		taxRate:         taxRate,
		platformFeeRate: platformFeeRate,
	}
}

// Create books a new order in pending state. The money fields are derived
// once here: subtotal = price - discount, total = subtotal + tax + fee.
// The order number is generated at first persistence with one retry on a
// collision.
func (os *OrderService) Create(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.ServicePrice <= 0 {
		return nil, models.ErrInvalidOrderAmount
	}
	if in.BookingDate.IsZero() || in.BookingTime == "" {
		return nil, models.ErrInvalidBookingSlot
	}

	order := &models.Order{
		UserID:        in.UserID,
		VendorID:      in.VendorID,
		ServiceID:     in.ServiceID,
		ServicePrice:  models.Round2(in.ServicePrice),
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		BookingDate:   in.BookingDate,
		BookingTime:   in.BookingTime,
		Notes:         in.Notes,
	}

	if in.CouponCode != "" {
		coupon, discount, err := os.coupons.Apply(ctx, in.CouponCode, order.ServicePrice, in.UserID)
		if err != nil {
			return nil, err
		}
		order.DiscountAmount = discount
		order.Coupon = &models.CouponApplication{
			CouponID:       coupon.ID,
			Code:           coupon.Code,
			DiscountAmount: discount,
		}
	}

	order.Subtotal = models.Round2(order.ServicePrice - order.DiscountAmount)
	order.Tax = models.Round2(order.Subtotal * os.taxRate / 100)
	order.PlatformFee = models.Round2(order.Subtotal * os.platformFeeRate / 100)
	order.TotalAmount = models.Round2(order.Subtotal + order.Tax + order.PlatformFee)

	order.Number = models.NewOrderNumber(time.Now())

	created, err := os.repo.CreateOrder(ctx, order)
	if errors.Is(err, models.ErrConflictData) {
		// one retry with a fresh random suffix, then surface the conflict
		order.Number = models.NewOrderNumber(time.Now())
		created, err = os.repo.CreateOrder(ctx, order)
	}
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Get returns order by number
func (os *OrderService) Get(ctx context.Context, number string) (*models.Order, error) {
	return os.repo.GetOrderByNumber(ctx, number)
}

// ListUserOrders returns orders created by the user
func (os *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return os.repo.GetOrdersByUserID(ctx, userID)
}

// ListVendorOrders returns orders addressed to the vendor
func (os *OrderService) ListVendorOrders(ctx context.Context, vendorID int64) ([]models.Order, error) {
	return os.repo.GetOrdersByVendorID(ctx, vendorID)
}

// Accept moves a pending order to accepted
func (os *OrderService) Accept(ctx context.Context, number string) (*models.Order, error) {
	return os.transition(ctx, number, models.OrderStatusAccepted,
		func(s models.OrderStatus) bool { return s.CanBeProcessed() },
		[]models.OrderStatus{models.OrderStatusPending})
}

// Reject moves a pending order to rejected
func (os *OrderService) Reject(ctx context.Context, number string) (*models.Order, error) {
	return os.transition(ctx, number, models.OrderStatusRejected,
		func(s models.OrderStatus) bool { return s.CanBeProcessed() },
		[]models.OrderStatus{models.OrderStatusPending})
}

// Start moves an accepted order to in_progress
func (os *OrderService) Start(ctx context.Context, number string) (*models.Order, error) {
	return os.transition(ctx, number, models.OrderStatusInProgress,
		func(s models.OrderStatus) bool { return s.CanBeStarted() },
		[]models.OrderStatus{models.OrderStatusAccepted})
}

// Complete moves an in-progress order to completed and publishes the
// completion event
func (os *OrderService) Complete(ctx context.Context, number string) (*models.Order, error) {
	order, err := os.transition(ctx, number, models.OrderStatusCompleted,
		func(s models.OrderStatus) bool { return s.CanBeCompleted() },
		[]models.OrderStatus{models.OrderStatusInProgress})
	if err != nil {
		return nil, err
	}

	os.publisher.Publish(models.Event{
		Type:        models.EventOrderCompleted,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		VendorID:    order.VendorID,
		Amount:      order.TotalAmount,
		OccurredAt:  time.Now(),
	})

	return order, nil
}

// Cancel terminates an order that has not yet been started
func (os *OrderService) Cancel(ctx context.Context, number string) (*models.Order, error) {
	return os.transition(ctx, number, models.OrderStatusCancelled,
		func(s models.OrderStatus) bool { return s.CanBeCancelled() },
		[]models.OrderStatus{models.OrderStatusPending, models.OrderStatusAccepted})
}

// Reschedule moves the booking slot, preserving the prior one in the audit
// trail. Only pending and accepted orders may be rescheduled.
func (os *OrderService) Reschedule(ctx context.Context, number string, newDate time.Time, newTime string) (*models.Order, error) {
	if newDate.IsZero() || newTime == "" {
		return nil, models.ErrInvalidBookingSlot
	}

	order, err := os.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanBeRescheduled() {
		return nil, models.ErrOrderStateConflict
	}

	if err := os.repo.Reschedule(ctx, order, newDate, newTime); err != nil {
		return nil, err
	}

	return os.repo.GetOrderByNumber(ctx, number)
}

// GetReschedules returns the audit trail of prior booking slots
func (os *OrderService) GetReschedules(ctx context.Context, number string) ([]models.Reschedule, error) {
	order, err := os.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	return os.repo.GetReschedules(ctx, order.ID)
}

// transition asserts the guard on the current snapshot, then performs the
// conditional write. A raced transition surfaces as ErrOrderStateConflict
// from the repository; nothing is mutated in that case.
func (os *OrderService) transition(ctx context.Context, number string, to models.OrderStatus, guard func(models.OrderStatus) bool, allowed []models.OrderStatus) (*models.Order, error) {
	order, err := os.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	if !guard(order.Status) {
		return nil, models.ErrOrderStateConflict
	}

	if err := os.repo.UpdateOrderStatus(ctx, number, to, allowed); err != nil {
		return nil, err
	}

	logger.Log.Debug("order transition",
		zap.String("number", number),
		zap.String("from", string(order.Status)),
		zap.String("to", string(to)))

	order.Status = to
	return order, nil
}
