package service

import (
	"context"
	"time"

	"github.com/vendora/marketplace/internal/logger"
	"github.com/vendora/marketplace/internal/middleware"
	"github.com/vendora/marketplace/internal/models"
	"go.uber.org/zap"
)

// PayoutRepository is interface for interacting with payout-related data
type PayoutRepository interface {
	// NextSequence returns the next payout number sequence value
	NextSequence(ctx context.Context) (int64, error)
	// CreatePayout inserts the payout and claims its transactions atomically
	CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	// GetPayoutByNumber returns payout by number
	GetPayoutByNumber(ctx context.Context, num string) (*models.Payout, error)
	// GetPayoutsByVendorID returns payouts for vendor
	GetPayoutsByVendorID(ctx context.Context, vendorID int64) ([]models.Payout, error)
	// UpdatePayoutStatus conditionally transitions the payout
	UpdatePayoutStatus(ctx context.Context, number string, status models.PayoutStatus, allowed []models.PayoutStatus, release bool) error
}

// PayoutTransactionSource selects settled transactions for batching
type PayoutTransactionSource interface {
	// GetEligibleForPayout returns completed, unclaimed payments for the vendor in the period
	GetEligibleForPayout(ctx context.Context, vendorID int64, start, end time.Time) ([]models.Transaction, error)
	// GetVendorsWithEligible returns vendors holding unclaimed completed payments
	GetVendorsWithEligible(ctx context.Context) ([]int64, error)
}

// PayoutService batches completed, un-paid-out transactions per vendor
type PayoutService struct {
	repo      PayoutRepository
	txns      PayoutTransactionSource
	publisher EventPublisher
}

// NewPayoutService creates new PayoutService instance
func NewPayoutService(repo PayoutRepository, txns PayoutTransactionSource, publisher EventPublisher) *PayoutService {
	return &PayoutService{
		repo:      repo,
		txns:      txns,
		publisher: publisher,
	}
}

// Build creates a pending payout for the vendor's eligible transactions in
// the period. The amount is the snapshotted sum of the transactions'
// vendor amounts; the transaction set is claimed in the same database
// transaction, so no transaction can end up in two non-cancelled payouts.
func (ps *PayoutService) Build(ctx context.Context, vendorID int64, periodStart, periodEnd time.Time, method string) (*models.Payout, error) {
	eligible, err := ps.txns.GetEligibleForPayout(ctx, vendorID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, models.ErrNoEligibleTransactions
	}

	var amount float64
	ids := make([]int64, 0, len(eligible))
	for _, txn := range eligible {
		amount += txn.VendorAmount
		ids = append(ids, txn.ID)
	}

	seq, err := ps.repo.NextSequence(ctx)
	if err != nil {
		return nil, err
	}

	payout := &models.Payout{
		Number:         models.NewPayoutNumber(time.Now(), seq),
		VendorID:       vendorID,
		Amount:         models.Round2(amount),
		Method:         method,
		Status:         models.PayoutStatusPending,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		TransactionIDs: ids,
	}

	created, err := ps.repo.CreatePayout(ctx, payout)
	if err != nil {
		return nil, err
	}

	middleware.PayoutsBuilt.Inc()

	logger.Log.Info("payout built",
		zap.String("number", created.Number),
		zap.Int64("vendor", vendorID),
		zap.Float64("amount", created.Amount),
		zap.Int("transactions", len(ids)))

	return created, nil
}

// Process moves a pending payout to processing
func (ps *PayoutService) Process(ctx context.Context, number string) error {
	return ps.repo.UpdatePayoutStatus(ctx, number, models.PayoutStatusProcessing,
		[]models.PayoutStatus{models.PayoutStatusPending}, false)
}

// Complete settles a processing payout; its transactions are permanently
// marked paid out
func (ps *PayoutService) Complete(ctx context.Context, number string) error {
	err := ps.repo.UpdatePayoutStatus(ctx, number, models.PayoutStatusCompleted,
		[]models.PayoutStatus{models.PayoutStatusProcessing}, false)
	if err != nil {
		return err
	}

	if payout, err := ps.repo.GetPayoutByNumber(ctx, number); err == nil {
		ps.publisher.Publish(models.Event{
			Type:         models.EventPayoutCompleted,
			PayoutNumber: payout.Number,
			VendorID:     payout.VendorID,
			Amount:       payout.Amount,
			OccurredAt:   time.Now(),
		})
	}

	return nil
}

// Fail marks a processing payout failed and releases its transactions for a
// future payout
func (ps *PayoutService) Fail(ctx context.Context, number string) error {
	return ps.repo.UpdatePayoutStatus(ctx, number, models.PayoutStatusFailed,
		[]models.PayoutStatus{models.PayoutStatusProcessing}, true)
}

// Cancel cancels a pending payout and releases its transactions
func (ps *PayoutService) Cancel(ctx context.Context, number string) error {
	return ps.repo.UpdatePayoutStatus(ctx, number, models.PayoutStatusCancelled,
		[]models.PayoutStatus{models.PayoutStatusPending}, true)
}

// Get returns payout by number
func (ps *PayoutService) Get(ctx context.Context, number string) (*models.Payout, error) {
	return ps.repo.GetPayoutByNumber(ctx, number)
}

// ListVendorPayouts returns payouts for vendor
func (ps *PayoutService) ListVendorPayouts(ctx context.Context, vendorID int64) ([]models.Payout, error) {
	return ps.repo.GetPayoutsByVendorID(ctx, vendorID)
}

// RunCycle builds a payout for every vendor holding eligible transactions up
// to now. Vendors without anything to pay are skipped.
func (ps *PayoutService) RunCycle(ctx context.Context, method string) (int, error) {
	vendors, err := ps.txns.GetVendorsWithEligible(ctx)
	if err != nil {
		return 0, err
	}

	built := 0
	for _, vendorID := range vendors {
		if _, err := ps.Build(ctx, vendorID, time.Time{}, time.Now(), method); err != nil {
			logger.Log.Error("payout cycle",
				zap.Int64("vendor", vendorID), zap.Error(err))
			continue
		}
		built++
	}

	return built, nil
}
