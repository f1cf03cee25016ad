package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/marketplace/internal/models"
)

type PayoutService interface {
	// Build aggregates eligible vendor earnings for the period into a payout
	Build(ctx context.Context, vendorID int64, periodStart, periodEnd time.Time, method string) (*models.Payout, error)
	// Process moves payout to processing
	Process(ctx context.Context, number string) error
	// Complete settles a processing payout
	Complete(ctx context.Context, number string) error
	// Fail marks a processing payout failed and releases its transactions
	Fail(ctx context.Context, number string) error
	// Cancel cancels a pending payout and releases its transactions
	Cancel(ctx context.Context, number string) error
	// Get returns payout by its number
	Get(ctx context.Context, number string) (*models.Payout, error)
	// ListVendorPayouts returns all payouts of the vendor
	ListVendorPayouts(ctx context.Context, vendorID int64) ([]models.Payout, error)
	// RunCycle builds payouts for every vendor with eligible earnings
	RunCycle(ctx context.Context, method string) (int, error)
}

// PayoutHandler represents HTTP handler for payout-related requests
type PayoutHandler struct {
	svc PayoutService
}

// NewPayoutHandler creates new PayoutHandler instance
func NewPayoutHandler(svc PayoutService) *PayoutHandler {
	return &PayoutHandler{svc: svc}
}

type buildPayoutRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Method      string `json:"method"`
}

// BuildPayout aggregates the vendor's settled earnings for the period
// 201 — выплата сформирована;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 409 — подходящие транзакции уже захвачены другой выплатой;
// 422 — нет подходящих транзакций за период;
// 500 — внутренняя ошибка сервера.
func (ph *PayoutHandler) BuildPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req buildPayoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		periodStart, err := time.Parse(time.RFC3339, req.PeriodStart)
		if err != nil {
			http.Error(w, "invalid period start", http.StatusBadRequest)
			return
		}
		periodEnd, err := time.Parse(time.RFC3339, req.PeriodEnd)
		if err != nil {
			http.Error(w, "invalid period end", http.StatusBadRequest)
			return
		}

		payout, err := ph.svc.Build(r.Context(), payload.UserID, periodStart, periodEnd, req.Method)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrNoEligibleTransactions):
				http.Error(w, "no eligible transactions for period", http.StatusUnprocessableEntity)
			case errors.Is(err, models.ErrConflictData):
				http.Error(w, "eligible transactions already claimed", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, newPayoutResponse(payout))
	}
}

type runCycleRequest struct {
	Method string `json:"method"`
}

type runCycleResponse struct {
	PayoutsBuilt int `json:"payouts_built"`
}

// RunCycle builds payouts for every vendor with unclaimed settled earnings
func (ph *PayoutHandler) RunCycle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runCycleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.Method == "" {
			http.Error(w, "method is required", http.StatusBadRequest)
			return
		}

		built, err := ph.svc.RunCycle(r.Context(), req.Method)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, runCycleResponse{PayoutsBuilt: built})
	}
}

// Process moves payout to processing
// 200 — успешная обработка запроса;
// 404 — выплата не найдена;
// 409 — недопустимый переход статуса;
// 500 — внутренняя ошибка сервера.
func (ph *PayoutHandler) Process() http.HandlerFunc {
	return ph.transition(ph.svc.Process)
}

// Complete settles a processing payout
func (ph *PayoutHandler) Complete() http.HandlerFunc {
	return ph.transition(ph.svc.Complete)
}

// Fail marks a processing payout failed, its transactions become eligible again
func (ph *PayoutHandler) Fail() http.HandlerFunc {
	return ph.transition(ph.svc.Fail)
}

// Cancel cancels a pending payout, its transactions become eligible again
func (ph *PayoutHandler) Cancel() http.HandlerFunc {
	return ph.transition(ph.svc.Cancel)
}

func (ph *PayoutHandler) transition(op func(ctx context.Context, number string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")

		if err := op(r.Context(), number); err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "payout not found", http.StatusNotFound)
			case errors.Is(err, models.ErrPayoutStateConflict):
				http.Error(w, "payout state conflict", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// GetPayout returns payout by its number
func (ph *PayoutHandler) GetPayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")

		payout, err := ph.svc.Get(r.Context(), number)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "payout not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, newPayoutResponse(payout))
	}
}

// ListPayouts returns all payouts of the authenticated vendor
func (ph *PayoutHandler) ListPayouts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		payouts, err := ph.svc.ListVendorPayouts(r.Context(), payload.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(payouts) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		resp := make([]payoutResponse, 0, len(payouts))
		for i := range payouts {
			resp = append(resp, newPayoutResponse(&payouts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
