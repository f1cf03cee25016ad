package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/vendora/marketplace/internal/models"
	"github.com/vendora/marketplace/internal/repository/postgres"
)

const (
	payoutColumns = `id, number, vendor_id, amount, method, status, period_start, period_end,
						processed_at, created_at, updated_at`

	nextPayoutSeqQuery = `SELECT nextval('payout_number_seq')`

	insertPayoutQuery = `
						INSERT INTO payouts (number, vendor_id, amount, method, status, period_start, period_end)
						VALUES ($1,$2,$3,$4,$5,$6,$7)
						RETURNING id, created_at, updated_at
`
	claimTransactionsQuery = `
						UPDATE transactions
						SET payout_id = $1, updated_at = now()
						WHERE id = ANY($2) AND payout_id IS NULL AND status = 'completed'
`
	releaseTransactionsQuery = `
						UPDATE transactions
						SET payout_id = NULL, updated_at = now()
						WHERE payout_id = $1
`
	selectPayoutByNumberQuery = `
						SELECT ` + payoutColumns + ` FROM payouts
						WHERE number = $1
`
	selectPayoutsByVendorIDQuery = `
						SELECT ` + payoutColumns + ` FROM payouts
						WHERE vendor_id = $1
						ORDER BY created_at DESC
`
	selectPayoutTransactionIDsQuery = `
						SELECT id FROM transactions
						WHERE payout_id = $1
						ORDER BY id
`
	updatePayoutStatusQuery = `
						UPDATE payouts
						SET status = $1, updated_at = now(),
							processed_at = CASE WHEN $1 = 'completed' THEN now() ELSE processed_at END
						WHERE number = $2 AND status = ANY($3)
						RETURNING id
`
)

// PayoutRepository provides access to payout-related data
type PayoutRepository struct {
	db *postgres.DB
}

// NewPayoutRepository creates new PayoutRepository instance
func NewPayoutRepository(db *postgres.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// NextSequence returns the next payout number sequence value
func (pr *PayoutRepository) NextSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := pr.db.QueryRow(ctx, nextPayoutSeqQuery).Scan(&seq)
	return seq, err
}

// CreatePayout inserts the payout and claims its transactions in one
// database transaction. Every listed transaction must still be unclaimed and
// completed, or the whole batch rolls back with ErrConflictData.
func (pr *PayoutRepository) CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, insertPayoutQuery,
		payout.Number, payout.VendorID, payout.Amount, payout.Method, payout.Status,
		payout.PeriodStart, payout.PeriodEnd,
	).Scan(&payout.ID, &payout.CreatedAt, &payout.UpdatedAt)
	if err != nil {
		if errCode := pr.db.ErrorCode(err); errCode == pgErrUniqueViolationCode {
			return nil, models.ErrConflictData
		}
		return nil, err
	}

	cmd, err := tx.Exec(ctx, claimTransactionsQuery, payout.ID, payout.TransactionIDs)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() != int64(len(payout.TransactionIDs)) {
		return nil, models.ErrConflictData
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return payout, nil
}

// GetPayoutByNumber returns payout by number including its transaction set
func (pr *PayoutRepository) GetPayoutByNumber(ctx context.Context, num string) (*models.Payout, error) {
	payout, err := scanPayout(pr.db.QueryRow(ctx, selectPayoutByNumberQuery, num))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	ids, err := pr.getTransactionIDs(ctx, payout.ID)
	if err != nil {
		return nil, err
	}
	payout.TransactionIDs = ids

	return payout, nil
}

// GetPayoutsByVendorID returns payouts for vendor
func (pr *PayoutRepository) GetPayoutsByVendorID(ctx context.Context, vendorID int64) ([]models.Payout, error) {
	rows, err := pr.db.Query(ctx, selectPayoutsByVendorIDQuery, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := []models.Payout{}

	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *payout)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payouts, nil
}

// UpdatePayoutStatus conditionally transitions the payout. When release is
// set (failed or cancelled payouts), the claimed transactions become eligible
// for a future payout again; the transition and the release commit together.
func (pr *PayoutRepository) UpdatePayoutStatus(ctx context.Context, number string, status models.PayoutStatus, allowed []models.PayoutStatus, release bool) error {
	tx, err := pr.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var payoutID int64
	err = tx.QueryRow(ctx, updatePayoutStatusQuery, status, number, statusList(allowed)).Scan(&payoutID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrPayoutStateConflict
		}
		return err
	}

	if release {
		if _, err := tx.Exec(ctx, releaseTransactionsQuery, payoutID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (pr *PayoutRepository) getTransactionIDs(ctx context.Context, payoutID int64) ([]int64, error) {
	rows, err := pr.db.Query(ctx, selectPayoutTransactionIDsQuery, payoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func scanPayout(row pgx.Row) (*models.Payout, error) {
	payout := models.Payout{}
	err := row.Scan(&payout.ID, &payout.Number, &payout.VendorID, &payout.Amount, &payout.Method,
		&payout.Status, &payout.PeriodStart, &payout.PeriodEnd, &payout.ProcessedAt,
		&payout.CreatedAt, &payout.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &payout, nil
}
