package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vendora/marketplace/internal/models"
	"github.com/vendora/marketplace/internal/repository/postgres"
)

const pgErrUniqueViolationCode = "23505"

const (
	orderColumns = `id, number, user_id, vendor_id, service_id, service_price, discount_amount,
						subtotal, tax, platform_fee, total_amount, status, payment_status,
						booking_date, booking_time, notes, coupon_id, coupon_code, coupon_discount,
						created_at, updated_at`

	insertOrderQuery = `
						INSERT INTO orders (number, user_id, vendor_id, service_id, service_price,
							discount_amount, subtotal, tax, platform_fee, total_amount, status,
							payment_status, booking_date, booking_time, notes, coupon_id, coupon_code, coupon_discount)
						VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
						RETURNING id, created_at, updated_at
`
	selectOrderByNumberQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE number = $1
`
	selectOrdersByUserIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	selectOrdersByVendorIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE vendor_id = $1
						ORDER BY created_at DESC
`
	updateOrderStatusQuery = `
						UPDATE orders
						SET status = $1, updated_at = now()
						WHERE number = $2 AND status = ANY($3)
`
	updateOrderPaymentStatusQuery = `
						UPDATE orders
						SET payment_status = $1, updated_at = now()
						WHERE id = $2
`
	insertRescheduleQuery = `
						INSERT INTO order_reschedules (order_id, previous_date, previous_time)
						VALUES ($1, $2, $3)
`
	updateOrderScheduleQuery = `
						UPDATE orders
						SET booking_date = $1, booking_time = $2, updated_at = now()
						WHERE id = $3 AND status = ANY($4)
`
	selectReschedulesQuery = `
						SELECT id, order_id, previous_date, previous_time, changed_at FROM order_reschedules
						WHERE order_id = $1
						ORDER BY changed_at
`
	countUserOrdersQuery = `
						SELECT count(*) FROM orders
						WHERE user_id = $1
`
	countUserCouponOrdersQuery = `
						SELECT count(*) FROM orders
						WHERE user_id = $1 AND coupon_code = $2 AND payment_status = 'paid'
`
)

// OrderRepository provides access to order-related data
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := models.Order{}
	var couponID *int64
	var couponCode *string
	var couponDiscount *float64

	err := row.Scan(&order.ID, &order.Number, &order.UserID, &order.VendorID, &order.ServiceID,
		&order.ServicePrice, &order.DiscountAmount, &order.Subtotal, &order.Tax, &order.PlatformFee,
		&order.TotalAmount, &order.Status, &order.PaymentStatus, &order.BookingDate, &order.BookingTime,
		&order.Notes, &couponID, &couponCode, &couponDiscount, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if couponID != nil && couponCode != nil {
		order.Coupon = &models.CouponApplication{
			CouponID: *couponID,
			Code:     *couponCode,
		}
		if couponDiscount != nil {
			order.Coupon.DiscountAmount = *couponDiscount
		}
	}

	return &order, nil
}

// CreateOrder inserts new order to database
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	var couponID *int64
	var couponCode *string
	var couponDiscount *float64
	if order.Coupon != nil {
		couponID = &order.Coupon.CouponID
		couponCode = &order.Coupon.Code
		couponDiscount = &order.Coupon.DiscountAmount
	}

	err := or.db.QueryRow(ctx, insertOrderQuery,
		order.Number, order.UserID, order.VendorID, order.ServiceID, order.ServicePrice,
		order.DiscountAmount, order.Subtotal, order.Tax, order.PlatformFee, order.TotalAmount,
		order.Status, order.PaymentStatus, order.BookingDate, order.BookingTime, order.Notes,
		couponID, couponCode, couponDiscount,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return order, nil
}

// GetOrderByNumber returns order by number
func (or *OrderRepository) GetOrderByNumber(ctx context.Context, num string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByNumberQuery, num))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetOrdersByUserID gets orders created by user
func (or *OrderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	return or.listOrders(ctx, selectOrdersByUserIDQuery, userID)
}

// GetOrdersByVendorID gets orders addressed to vendor
func (or *OrderRepository) GetOrdersByVendorID(ctx context.Context, vendorID int64) ([]models.Order, error) {
	return or.listOrders(ctx, selectOrdersByVendorIDQuery, vendorID)
}

func (or *OrderRepository) listOrders(ctx context.Context, query string, id int64) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateOrderStatus conditionally moves the order to status. The write only
// happens while the current status is one of allowed; otherwise
// ErrOrderStateConflict is returned and nothing is mutated.
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, number string, status models.OrderStatus, allowed []models.OrderStatus) error {
	cmd, err := or.db.Exec(ctx, updateOrderStatusQuery, status, number, statusList(allowed))
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrOrderStateConflict
	}

	return nil
}

// UpdatePaymentStatus sets the order's payment status
func (or *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error {
	cmd, err := or.db.Exec(ctx, updateOrderPaymentStatusQuery, status, orderID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// Reschedule records the prior booking slot and overwrites it with the new
// one. The audit row and the slot change commit together.
func (or *OrderRepository) Reschedule(ctx context.Context, order *models.Order, newDate time.Time, newTime string) error {
	tx, err := or.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertRescheduleQuery, order.ID, order.BookingDate, order.BookingTime); err != nil {
		return err
	}

	allowed := statusList([]models.OrderStatus{models.OrderStatusPending, models.OrderStatusAccepted})
	cmd, err := tx.Exec(ctx, updateOrderScheduleQuery, newDate, newTime, order.ID, allowed)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return models.ErrOrderStateConflict
	}

	return tx.Commit(ctx)
}

// GetReschedules returns the reschedule audit trail for an order
func (or *OrderRepository) GetReschedules(ctx context.Context, orderID int64) ([]models.Reschedule, error) {
	rows, err := or.db.Query(ctx, selectReschedulesQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reschedules []models.Reschedule

	for rows.Next() {
		r := models.Reschedule{}
		if err := rows.Scan(&r.ID, &r.OrderID, &r.PreviousDate, &r.PreviousTime, &r.ChangedAt); err != nil {
			return nil, err
		}
		reschedules = append(reschedules, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reschedules, nil
}

// CountUserOrders returns the user's total order count
func (or *OrderRepository) CountUserOrders(ctx context.Context, userID int64) (int, error) {
	var n int
	err := or.db.QueryRow(ctx, countUserOrdersQuery, userID).Scan(&n)
	return n, err
}

// CountUserCouponOrders returns the user's paid order count referencing the
// coupon code
func (or *OrderRepository) CountUserCouponOrders(ctx context.Context, userID int64, code string) (int, error) {
	var n int
	err := or.db.QueryRow(ctx, countUserCouponOrdersQuery, userID, code).Scan(&n)
	return n, err
}

func statusList[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
