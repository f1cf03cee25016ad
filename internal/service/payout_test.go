package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace/internal/models"
)

type fakePayoutRepo struct {
	createPayoutFunc       func(ctx context.Context, payout *models.Payout) (*models.Payout, error)
	getPayoutByNumberFunc  func(ctx context.Context, num string) (*models.Payout, error)
	updatePayoutStatusFunc func(ctx context.Context, number string, status models.PayoutStatus, allowed []models.PayoutStatus, release bool) error

	seq int64
}

func (f *fakePayoutRepo) NextSequence(ctx context.Context) (int64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakePayoutRepo) CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if f.createPayoutFunc != nil {
		return f.createPayoutFunc(ctx, payout)
	}
	return payout, nil
}

func (f *fakePayoutRepo) GetPayoutByNumber(ctx context.Context, num string) (*models.Payout, error) {
	if f.getPayoutByNumberFunc != nil {
		return f.getPayoutByNumberFunc(ctx, num)
	}
	return nil, models.ErrDataNotFound
}

func (f *fakePayoutRepo) GetPayoutsByVendorID(ctx context.Context, vendorID int64) ([]models.Payout, error) {
	return nil, nil
}

func (f *fakePayoutRepo) UpdatePayoutStatus(ctx context.Context, number string, status models.PayoutStatus, allowed []models.PayoutStatus, release bool) error {
	if f.updatePayoutStatusFunc != nil {
		return f.updatePayoutStatusFunc(ctx, number, status, allowed, release)
	}
	return nil
}

type fakePayoutTxnSource struct {
	eligible map[int64][]models.Transaction
	vendors  []int64
}

func (f *fakePayoutTxnSource) GetEligibleForPayout(ctx context.Context, vendorID int64, start, end time.Time) ([]models.Transaction, error) {
	return f.eligible[vendorID], nil
}

func (f *fakePayoutTxnSource) GetVendorsWithEligible(ctx context.Context) ([]int64, error) {
	return f.vendors, nil
}

func TestPayoutService_Build(t *testing.T) {
	ctx := context.Background()
	periodStart := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sums_vendor_amounts_and_claims_transactions", func(t *testing.T) {
		txns := &fakePayoutTxnSource{
			eligible: map[int64][]models.Transaction{
				2: {
					{ID: 31, VendorAmount: 475},
					{ID: 32, VendorAmount: 190},
					{ID: 33, VendorAmount: 95.5},
				},
			},
		}

		svc := NewPayoutService(&fakePayoutRepo{}, txns, &fakePublisher{})

		payout, err := svc.Build(ctx, 2, periodStart, periodEnd, "bank_transfer")
		require.NoError(t, err)

		assert.Equal(t, 760.5, payout.Amount)
		assert.Equal(t, []int64{31, 32, 33}, payout.TransactionIDs)
		assert.Equal(t, models.PayoutStatusPending, payout.Status)
		assert.Equal(t, int64(2), payout.VendorID)
		assert.Regexp(t, `^PO-\d+-1$`, payout.Number)
	})

	t.Run("nothing_eligible", func(t *testing.T) {
		svc := NewPayoutService(&fakePayoutRepo{}, &fakePayoutTxnSource{}, &fakePublisher{})

		_, err := svc.Build(ctx, 2, periodStart, periodEnd, "bank_transfer")

		assert.ErrorIs(t, err, models.ErrNoEligibleTransactions)
	})

	t.Run("claim_race_surfaces_conflict", func(t *testing.T) {
		txns := &fakePayoutTxnSource{
			eligible: map[int64][]models.Transaction{
				2: {{ID: 31, VendorAmount: 100}},
			},
		}
		repo := &fakePayoutRepo{
			createPayoutFunc: func(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
				return nil, models.ErrConflictData
			},
		}

		svc := NewPayoutService(repo, txns, &fakePublisher{})

		_, err := svc.Build(ctx, 2, periodStart, periodEnd, "bank_transfer")

		assert.ErrorIs(t, err, models.ErrConflictData)
	})
}

func TestPayoutService_Transitions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		op          func(svc *PayoutService) error
		wantStatus  models.PayoutStatus
		wantAllowed []models.PayoutStatus
		wantRelease bool
	}{
		{
			name:        "process",
			op:          func(svc *PayoutService) error { return svc.Process(ctx, "PO-1") },
			wantStatus:  models.PayoutStatusProcessing,
			wantAllowed: []models.PayoutStatus{models.PayoutStatusPending},
		},
		{
			name:        "fail_releases_transactions",
			op:          func(svc *PayoutService) error { return svc.Fail(ctx, "PO-1") },
			wantStatus:  models.PayoutStatusFailed,
			wantAllowed: []models.PayoutStatus{models.PayoutStatusProcessing},
			wantRelease: true,
		},
		{
			name:        "cancel_releases_transactions",
			op:          func(svc *PayoutService) error { return svc.Cancel(ctx, "PO-1") },
			wantStatus:  models.PayoutStatusCancelled,
			wantAllowed: []models.PayoutStatus{models.PayoutStatusPending},
			wantRelease: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotStatus models.PayoutStatus
			var gotAllowed []models.PayoutStatus
			var gotRelease bool

			repo := &fakePayoutRepo{
				updatePayoutStatusFunc: func(ctx context.Context, number string, status models.PayoutStatus, allowed []models.PayoutStatus, release bool) error {
					gotStatus = status
					gotAllowed = allowed
					gotRelease = release
					return nil
				},
			}

			svc := NewPayoutService(repo, &fakePayoutTxnSource{}, &fakePublisher{})

			require.NoError(t, tt.op(svc))
			assert.Equal(t, tt.wantStatus, gotStatus)
			assert.Equal(t, tt.wantAllowed, gotAllowed)
			assert.Equal(t, tt.wantRelease, gotRelease)
		})
	}
}

func TestPayoutService_Complete_PublishesEvent(t *testing.T) {
	repo := &fakePayoutRepo{
		getPayoutByNumberFunc: func(ctx context.Context, num string) (*models.Payout, error) {
			return &models.Payout{Number: num, VendorID: 2, Amount: 760.5}, nil
		},
	}
	publisher := &fakePublisher{}

	svc := NewPayoutService(repo, &fakePayoutTxnSource{}, publisher)

	require.NoError(t, svc.Complete(context.Background(), "PO-1"))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.EventPayoutCompleted, publisher.events[0].Type)
	assert.Equal(t, 760.5, publisher.events[0].Amount)
}

func TestPayoutService_Complete_StateConflict(t *testing.T) {
	repo := &fakePayoutRepo{
		updatePayoutStatusFunc: func(ctx context.Context, number string, status models.PayoutStatus, allowed []models.PayoutStatus, release bool) error {
			return models.ErrPayoutStateConflict
		},
	}
	publisher := &fakePublisher{}

	svc := NewPayoutService(repo, &fakePayoutTxnSource{}, publisher)

	err := svc.Complete(context.Background(), "PO-1")

	assert.ErrorIs(t, err, models.ErrPayoutStateConflict)
	assert.Empty(t, publisher.events)
}

func TestPayoutService_RunCycle(t *testing.T) {
	txns := &fakePayoutTxnSource{
		vendors: []int64{2, 3, 4},
		eligible: map[int64][]models.Transaction{
			2: {{ID: 31, VendorAmount: 100}},
			// vendor 3 has nothing left by the time its turn comes
			4: {{ID: 41, VendorAmount: 50}},
		},
	}

	svc := NewPayoutService(&fakePayoutRepo{}, txns, &fakePublisher{})

	built, err := svc.RunCycle(context.Background(), "bank_transfer")
	require.NoError(t, err)

	assert.Equal(t, 2, built)
}
