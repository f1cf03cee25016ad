package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vendora/marketplace/internal/models"
	"github.com/vendora/marketplace/internal/repository/postgres"
)

const (
	transactionColumns = `id, number, order_id, order_number, user_id, vendor_id, type, amount,
						commission_rate, commission_amount, vendor_amount, payment_method, status,
						gateway_ref, refund_id, refund_amount, refund_reason, refunded_at, payout_id,
						completed_at, created_at, updated_at`

	insertTransactionQuery = `
						INSERT INTO transactions (number, order_id, order_number, user_id, vendor_id,
							type, amount, commission_rate, commission_amount, vendor_amount,
							payment_method, status, gateway_ref)
						VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
						RETURNING id, created_at, updated_at
`
	selectTransactionByNumberQuery = `
						SELECT ` + transactionColumns + ` FROM transactions
						WHERE number = $1
`
	selectTransactionByGatewayRefQuery = `
						SELECT ` + transactionColumns + ` FROM transactions
						WHERE gateway_ref = $1
`
	selectTransactionsByOrderIDQuery = `
						SELECT ` + transactionColumns + ` FROM transactions
						WHERE order_id = $1
						ORDER BY created_at
`
	// the conditional write is the idempotency boundary: exactly one caller
	// can move the transaction out of pending/processing
	completeTransactionQuery = `
						UPDATE transactions
						SET status = 'completed', completed_at = now(), updated_at = now()
						WHERE gateway_ref = $1 AND status IN ('pending', 'processing')
						RETURNING ` + transactionColumns + `
`
	failTransactionQuery = `
						UPDATE transactions
						SET status = 'failed', updated_at = now()
						WHERE gateway_ref = $1 AND status IN ('pending', 'processing')
						RETURNING ` + transactionColumns + `
`
	// cumulative refunds are bounded by the original amount inside the
	// predicate, so two racing refunds can never overdraw
	applyRefundQuery = `
						UPDATE transactions
						SET refund_amount = refund_amount + $2,
							refund_id = COALESCE(refund_id, $3),
							refund_reason = $4,
							refunded_at = now(),
							status = CASE WHEN refund_amount + $2 >= amount - 0.009
								THEN 'refunded' ELSE 'partially_refunded' END,
							updated_at = now()
						WHERE id = $1
							AND type = 'payment'
							AND status IN ('completed', 'partially_refunded')
							AND refund_amount + $2 <= amount + 0.009
						RETURNING ` + transactionColumns + `
`
	selectStalePendingQuery = `
						SELECT ` + transactionColumns + ` FROM transactions
						WHERE type = 'payment' AND status = 'pending' AND created_at < $1
`
	selectEligibleForPayoutQuery = `
						SELECT ` + transactionColumns + ` FROM transactions
						WHERE vendor_id = $1
							AND type = 'payment'
							AND status = 'completed'
							AND payout_id IS NULL
							AND completed_at >= $2 AND completed_at < $3
						ORDER BY completed_at
`
	selectVendorsWithEligibleQuery = `
						SELECT DISTINCT vendor_id FROM transactions
						WHERE type = 'payment' AND status = 'completed' AND payout_id IS NULL
`
)

// TransactionRepository provides access to the transaction ledger
type TransactionRepository struct {
	db *postgres.DB
}

// NewTransactionRepository creates new TransactionRepository instance
func NewTransactionRepository(db *postgres.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	txn := models.Transaction{}
	var gatewayRef *string

	err := row.Scan(&txn.ID, &txn.Number, &txn.OrderID, &txn.OrderNumber, &txn.UserID, &txn.VendorID,
		&txn.Type, &txn.Amount, &txn.CommissionRate, &txn.CommissionAmount, &txn.VendorAmount,
		&txn.PaymentMethod, &txn.Status, &gatewayRef, &txn.RefundID, &txn.RefundAmount,
		&txn.RefundReason, &txn.RefundedAt, &txn.PayoutID, &txn.CompletedAt, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if gatewayRef != nil {
		txn.GatewayRef = *gatewayRef
	}

	return &txn, nil
}

// CreateTransaction inserts new transaction to database. The amount,
// commission and vendor split is written as one record.
func (tr *TransactionRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	var gatewayRef *string
	if txn.GatewayRef != "" {
		gatewayRef = &txn.GatewayRef
	}

	err := tr.db.QueryRow(ctx, insertTransactionQuery,
		txn.Number, txn.OrderID, txn.OrderNumber, txn.UserID, txn.VendorID, txn.Type, txn.Amount,
		txn.CommissionRate, txn.CommissionAmount, txn.VendorAmount, txn.PaymentMethod, txn.Status,
		gatewayRef,
	).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errCode := tr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	return txn, nil
}

// GetTransactionByNumber returns transaction by number
func (tr *TransactionRepository) GetTransactionByNumber(ctx context.Context, num string) (*models.Transaction, error) {
	txn, err := scanTransaction(tr.db.QueryRow(ctx, selectTransactionByNumberQuery, num))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return txn, nil
}

// GetTransactionByGatewayRef returns transaction by gateway correlation id
func (tr *TransactionRepository) GetTransactionByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error) {
	txn, err := scanTransaction(tr.db.QueryRow(ctx, selectTransactionByGatewayRefQuery, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return txn, nil
}

// GetTransactionsByOrderID returns all transactions linked to an order
func (tr *TransactionRepository) GetTransactionsByOrderID(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	rows, err := tr.db.Query(ctx, selectTransactionsByOrderIDQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// CompleteTransaction conditionally moves the transaction identified by the
// gateway ref from pending/processing to completed. ErrDataNotFound means
// another caller won the race or the transaction is unknown.
func (tr *TransactionRepository) CompleteTransaction(ctx context.Context, gatewayRef string) (*models.Transaction, error) {
	txn, err := scanTransaction(tr.db.QueryRow(ctx, completeTransactionQuery, gatewayRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return txn, nil
}

// FailTransaction conditionally moves the transaction from pending/processing
// to failed
func (tr *TransactionRepository) FailTransaction(ctx context.Context, gatewayRef string) (*models.Transaction, error) {
	txn, err := scanTransaction(tr.db.QueryRow(ctx, failTransactionQuery, gatewayRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return txn, nil
}

// ApplyRefund adds amount to the cumulative refund of a completed payment
// transaction. The predicate rejects anything that would exceed the original
// amount; ErrRefundExceedsAmount is returned in that case.
func (tr *TransactionRepository) ApplyRefund(ctx context.Context, txnID int64, amount float64, refundID, reason string) (*models.Transaction, error) {
	txn, err := scanTransaction(tr.db.QueryRow(ctx, applyRefundQuery, txnID, amount, refundID, reason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrRefundExceedsAmount
		}
		return nil, err
	}

	return txn, nil
}

// GetStalePending returns payment transactions left pending before cutoff
func (tr *TransactionRepository) GetStalePending(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	rows, err := tr.db.Query(ctx, selectStalePendingQuery, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetEligibleForPayout returns completed, unclaimed payment transactions for
// the vendor within the period
func (tr *TransactionRepository) GetEligibleForPayout(ctx context.Context, vendorID int64, start, end time.Time) ([]models.Transaction, error) {
	rows, err := tr.db.Query(ctx, selectEligibleForPayoutQuery, vendorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetVendorsWithEligible returns vendors holding unclaimed completed payments
func (tr *TransactionRepository) GetVendorsWithEligible(ctx context.Context) ([]int64, error) {
	rows, err := tr.db.Query(ctx, selectVendorsWithEligibleQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		vendors = append(vendors, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return vendors, nil
}

func collectTransactions(rows pgx.Rows) ([]models.Transaction, error) {
	txns := []models.Transaction{}

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return txns, nil
}
