package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/marketplace/internal/gateway"
	"github.com/vendora/marketplace/internal/logger"
	"github.com/vendora/marketplace/internal/middleware"
	"github.com/vendora/marketplace/internal/models"
	"go.uber.org/zap"
)

// TransactionRepository is interface for interacting with the transaction ledger
type TransactionRepository interface {
	// CreateTransaction inserts new transaction to database
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	// GetTransactionByNumber returns transaction by number
	GetTransactionByNumber(ctx context.Context, num string) (*models.Transaction, error)
	// GetTransactionByGatewayRef returns transaction by gateway correlation id
	GetTransactionByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error)
	// GetTransactionsByOrderID returns all transactions linked to an order
	GetTransactionsByOrderID(ctx context.Context, orderID int64) ([]models.Transaction, error)
	// CompleteTransaction conditionally moves pending/processing to completed
	CompleteTransaction(ctx context.Context, gatewayRef string) (*models.Transaction, error)
	// FailTransaction conditionally moves pending/processing to failed
	FailTransaction(ctx context.Context, gatewayRef string) (*models.Transaction, error)
	// ApplyRefund adds to the cumulative refund within the original amount
	ApplyRefund(ctx context.Context, txnID int64, amount float64, refundID, reason string) (*models.Transaction, error)
	// GetStalePending returns payment transactions left pending before cutoff
	GetStalePending(ctx context.Context, cutoff time.Time) ([]models.Transaction, error)
}

// PaymentOrderRepository is the slice of order storage the ledger needs
type PaymentOrderRepository interface {
	GetOrderByNumber(ctx context.Context, num string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status models.PaymentStatus) error
}

// GatewayClient is the outbound contract with the payment gateway
type GatewayClient interface {
	CreateIntent(ctx context.Context, amount float64, currency string, metadata map[string]string) (string, error)
	VerifyResult(ctx context.Context, ref, token string) (bool, error)
}

// CouponConsumer records coupon uses
type CouponConsumer interface {
	ConsumeUsage(ctx context.Context, couponID int64) error
}

// PaymentService implements the transaction ledger with commission splitting
// and refund rules
type PaymentService struct {
	txns           TransactionRepository
	orders         PaymentOrderRepository
	coupons        CouponConsumer
	gateway        GatewayClient
	publisher      EventPublisher
	commissionRate float64
	currency       string
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(txns TransactionRepository, orders PaymentOrderRepository, coupons CouponConsumer, gw GatewayClient, publisher EventPublisher, commissionRate float64, currency string) *PaymentService {
	return &PaymentService{
		txns:           txns,
		orders:         orders,
		coupons:        coupons,
		gateway:        gw,
		publisher:      publisher,
		commissionRate: commissionRate,
		currency:       currency,
	}
}

// InitiatePayment creates a pending payment transaction for the order's
// total and registers an intent with the gateway. The amount, commission and
// vendor split is written as one record. Gateway errors propagate; the
// calling layer owns retries.
func (ps *PaymentService) InitiatePayment(ctx context.Context, orderNumber, method string) (*models.Transaction, error) {
	order, err := ps.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus != models.PaymentStatusPending && order.PaymentStatus != models.PaymentStatusFailed {
		return nil, models.ErrOrderNotPayable
	}

	ref, err := ps.gateway.CreateIntent(ctx, order.TotalAmount, ps.currency, map[string]string{
		"order_number": order.Number,
	})
	if err != nil {
		return nil, err
	}

	commission, vendor := models.Split(order.TotalAmount, ps.commissionRate)

	txn := &models.Transaction{
		Number:           models.NewTransactionNumber(time.Now()),
		OrderID:          order.ID,
		OrderNumber:      order.Number,
		UserID:           order.UserID,
		VendorID:         order.VendorID,
		Type:             models.TransactionTypePayment,
		Amount:           models.Round2(order.TotalAmount),
		CommissionRate:   ps.commissionRate,
		CommissionAmount: commission,
		VendorAmount:     vendor,
		PaymentMethod:    method,
		Status:           models.TransactionStatusPending,
		GatewayRef:       ref,
	}

	created, err := ps.txns.CreateTransaction(ctx, txn)
	if errors.Is(err, models.ErrConflictData) {
		txn.Number = models.NewTransactionNumber(time.Now())
		created, err = ps.txns.CreateTransaction(ctx, txn)
	}
	if err != nil {
		return nil, err
	}

	return created, nil
}

// ConfirmPayment processes a gateway callback. It is idempotent: a
// transaction already out of pending/processing is returned unchanged, so
// duplicated webhooks resolve to no-ops. The validation token is verified
// with the gateway before any state moves.
func (ps *PaymentService) ConfirmPayment(ctx context.Context, gatewayRef, result, token string) (*models.Transaction, error) {
	txn, err := ps.txns.GetTransactionByGatewayRef(ctx, gatewayRef)
	if err != nil {
		return nil, err
	}

	if txn.Status != models.TransactionStatusPending && txn.Status != models.TransactionStatusProcessing {
		// already applied; duplicate webhook
		return txn, nil
	}

	valid, err := ps.gateway.VerifyResult(ctx, gatewayRef, token)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, models.ErrGatewayVerification
	}

	if result != gateway.ResultSucceeded {
		return ps.failPayment(ctx, gatewayRef)
	}

	completed, err := ps.txns.CompleteTransaction(ctx, gatewayRef)
	if errors.Is(err, models.ErrDataNotFound) {
		// another confirmation won the race; return what it produced
		return ps.txns.GetTransactionByGatewayRef(ctx, gatewayRef)
	}
	if err != nil {
		return nil, err
	}

	ps.afterPaymentCompleted(ctx, completed)

	return completed, nil
}

// afterPaymentCompleted runs the post-commit effects owned by exactly one
// confirmation: order payment status, coupon usage, event, metrics. Their
// failures are reconciliation work, not reasons to unwind the completed
// transaction.
func (ps *PaymentService) afterPaymentCompleted(ctx context.Context, txn *models.Transaction) {
	middleware.PaymentsProcessed.WithLabelValues("completed").Inc()

	if err := ps.orders.UpdatePaymentStatus(ctx, txn.OrderID, models.PaymentStatusPaid); err != nil {
		recErr := models.ReconciliationError{
			TransactionNumber: txn.Number,
			OrderNumber:       txn.OrderNumber,
			Err:               fmt.Errorf("set order payment status paid: %w", err),
		}
		logger.Log.Error("reconciliation required", zap.Error(recErr))
	}

	order, err := ps.orders.GetOrderByNumber(ctx, txn.OrderNumber)
	if err != nil {
		logger.Log.Error("load order for coupon accounting",
			zap.String("order", txn.OrderNumber), zap.Error(err))
	} else if order.Coupon != nil {
		if err := ps.coupons.ConsumeUsage(ctx, order.Coupon.CouponID); err != nil {
			if errors.Is(err, models.ErrCouponUsageLimit) {
				// the coupon link stays; usage accounting just cannot exceed the limit
				logger.Log.Warn("coupon usage limit reached at confirmation",
					zap.String("code", order.Coupon.Code),
					zap.String("order", txn.OrderNumber))
			} else {
				logger.Log.Error("coupon usage increment",
					zap.String("code", order.Coupon.Code), zap.Error(err))
			}
		}
	}

	ps.publisher.Publish(models.Event{
		Type:              models.EventPaymentCompleted,
		OrderNumber:       txn.OrderNumber,
		TransactionNumber: txn.Number,
		UserID:            txn.UserID,
		VendorID:          txn.VendorID,
		Amount:            txn.Amount,
		OccurredAt:        time.Now(),
	})
}

func (ps *PaymentService) failPayment(ctx context.Context, gatewayRef string) (*models.Transaction, error) {
	failed, err := ps.txns.FailTransaction(ctx, gatewayRef)
	if errors.Is(err, models.ErrDataNotFound) {
		return ps.txns.GetTransactionByGatewayRef(ctx, gatewayRef)
	}
	if err != nil {
		return nil, err
	}

	middleware.PaymentsProcessed.WithLabelValues("failed").Inc()

	// payment failure never auto-cancels a booking; only the payment status moves
	if err := ps.orders.UpdatePaymentStatus(ctx, failed.OrderID, models.PaymentStatusFailed); err != nil {
		recErr := models.ReconciliationError{
			TransactionNumber: failed.Number,
			OrderNumber:       failed.OrderNumber,
			Err:               fmt.Errorf("set order payment status failed: %w", err),
		}
		logger.Log.Error("reconciliation required", zap.Error(recErr))
	}

	return failed, nil
}

// Refund applies a full or partial refund to a completed payment
// transaction. Cumulative refunds never exceed the original amount; the
// repository predicate enforces the bound under races.
func (ps *PaymentService) Refund(ctx context.Context, txnNumber string, amount float64, reason string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidRefundAmount
	}
	amount = models.Round2(amount)

	txn, err := ps.txns.GetTransactionByNumber(ctx, txnNumber)
	if err != nil {
		return nil, err
	}

	if !txn.Refundable() {
		return nil, models.ErrRefundNotAllowed
	}
	if amount > txn.RemainingRefundable() {
		return nil, models.ErrRefundExceedsAmount
	}

	updated, err := ps.txns.ApplyRefund(ctx, txn.ID, amount, uuid.NewString(), reason)
	if err != nil {
		return nil, err
	}

	// linked refund entry in the ledger
	commission, vendor := models.Split(amount, txn.CommissionRate)
	refundTxn := &models.Transaction{
		Number:           models.NewTransactionNumber(time.Now()),
		OrderID:          txn.OrderID,
		OrderNumber:      txn.OrderNumber,
		UserID:           txn.UserID,
		VendorID:         txn.VendorID,
		Type:             models.TransactionTypeRefund,
		Amount:           amount,
		CommissionRate:   txn.CommissionRate,
		CommissionAmount: commission,
		VendorAmount:     vendor,
		PaymentMethod:    txn.PaymentMethod,
		Status:           models.TransactionStatusCompleted,
	}
	if _, err := ps.txns.CreateTransaction(ctx, refundTxn); err != nil {
		if errors.Is(err, models.ErrConflictData) {
			refundTxn.Number = models.NewTransactionNumber(time.Now())
			_, err = ps.txns.CreateTransaction(ctx, refundTxn)
		}
		if err != nil {
			logger.Log.Error("record refund ledger entry",
				zap.String("transaction", txn.Number), zap.Error(err))
		}
	}

	middleware.RefundsProcessed.Inc()

	if updated.Status == models.TransactionStatusRefunded {
		if err := ps.orders.UpdatePaymentStatus(ctx, txn.OrderID, models.PaymentStatusRefunded); err != nil {
			recErr := models.ReconciliationError{
				TransactionNumber: txn.Number,
				OrderNumber:       txn.OrderNumber,
				Err:               fmt.Errorf("set order payment status refunded: %w", err),
			}
			logger.Log.Error("reconciliation required", zap.Error(recErr))
		}
	}

	ps.publisher.Publish(models.Event{
		Type:              models.EventPaymentRefunded,
		OrderNumber:       txn.OrderNumber,
		TransactionNumber: txn.Number,
		UserID:            txn.UserID,
		VendorID:          txn.VendorID,
		Amount:            amount,
		OccurredAt:        time.Now(),
	})

	return updated, nil
}

// GetTransaction returns transaction by number
func (ps *PaymentService) GetTransaction(ctx context.Context, number string) (*models.Transaction, error) {
	return ps.txns.GetTransactionByNumber(ctx, number)
}

// SweepStalePending abandons payment transactions left pending past the
// window: they move to failed, never silently completed.
func (ps *PaymentService) SweepStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := ps.txns.GetStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, txn := range stale {
		if _, err := ps.failPayment(ctx, txn.GatewayRef); err != nil {
			logger.Log.Error("sweep stale payment",
				zap.String("transaction", txn.Number), zap.Error(err))
			continue
		}
		swept++
	}

	return swept, nil
}
