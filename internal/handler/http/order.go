package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vendora/marketplace/internal/models"
	"github.com/vendora/marketplace/internal/service"
)

type OrderService interface {
	// Create books a new order in pending state
	Create(ctx context.Context, in service.CreateOrderInput) (*models.Order, error)
	// Get returns order by number
	Get(ctx context.Context, number string) (*models.Order, error)
	// ListUserOrders returns orders created by the user
	ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	// ListVendorOrders returns orders addressed to the vendor
	ListVendorOrders(ctx context.Context, vendorID int64) ([]models.Order, error)
	// Accept moves a pending order to accepted
	Accept(ctx context.Context, number string) (*models.Order, error)
	// Reject moves a pending order to rejected
	Reject(ctx context.Context, number string) (*models.Order, error)
	// Start moves an accepted order to in_progress
	Start(ctx context.Context, number string) (*models.Order, error)
	// Complete moves an in-progress order to completed
	Complete(ctx context.Context, number string) (*models.Order, error)
	// Cancel terminates an order that has not yet been started
	Cancel(ctx context.Context, number string) (*models.Order, error)
	// Reschedule moves the booking slot, preserving the prior one
	Reschedule(ctx context.Context, number string, newDate time.Time, newTime string) (*models.Order, error)
	// GetReschedules returns the audit trail of prior booking slots
	GetReschedules(ctx context.Context, number string) ([]models.Reschedule, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type createOrderRequest struct {
	VendorID     int64   `json:"vendor_id"`
	ServiceID    int64   `json:"service_id"`
	ServicePrice float64 `json:"service_price"`
	BookingDate  string  `json:"booking_date"`
	BookingTime  string  `json:"booking_time"`
	Notes        string  `json:"notes"`
	CouponCode   string  `json:"coupon_code"`
}

// CreateOrder books a new order for the authenticated customer
// 201 — заказ создан;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 409 — конфликт номера заказа;
// 422 — недопустимые данные заказа или купона;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		bookingDate, err := time.Parse(bookingDateLayout, req.BookingDate)
		if err != nil {
			http.Error(w, "invalid booking date", http.StatusUnprocessableEntity)
			return
		}

		order, err := oh.svc.Create(r.Context(), service.CreateOrderInput{
			UserID:       payload.UserID,
			VendorID:     req.VendorID,
			ServiceID:    req.ServiceID,
			ServicePrice: req.ServicePrice,
			BookingDate:  bookingDate,
			BookingTime:  req.BookingTime,
			Notes:        req.Notes,
			CouponCode:   req.CouponCode,
		})
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInvalidOrderAmount),
				errors.Is(err, models.ErrInvalidBookingSlot):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case isCouponRejection(err):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "coupon not found", http.StatusUnprocessableEntity)
			case errors.Is(err, models.ErrConflictData):
				http.Error(w, "conflict", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, newOrderResponse(order))
	}
}

// GetOrder returns one order by number
// 200 — успешная обработка запроса;
// 404 — заказ не найден.
func (oh *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := oh.svc.Get(r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

// ListOrders returns the actor's orders: the vendor's incoming bookings or
// the customer's own
func (oh *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var orders []models.Order
		var err error
		if payload.Role == models.RoleVendor {
			orders, err = oh.svc.ListVendorOrders(r.Context(), payload.UserID)
		} else {
			orders, err = oh.svc.ListUserOrders(r.Context(), payload.UserID)
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, newOrderResponse(&orders[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// Transition handlers share the same shape:
// 200 — переход выполнен;
// 404 — заказ не найден;
// 409 — состояние заказа не допускает переход.

func (oh *OrderHandler) AcceptOrder() http.HandlerFunc {
	return oh.transition(oh.svc.Accept)
}

func (oh *OrderHandler) RejectOrder() http.HandlerFunc {
	return oh.transition(oh.svc.Reject)
}

func (oh *OrderHandler) StartOrder() http.HandlerFunc {
	return oh.transition(oh.svc.Start)
}

func (oh *OrderHandler) CompleteOrder() http.HandlerFunc {
	return oh.transition(oh.svc.Complete)
}

func (oh *OrderHandler) CancelOrder() http.HandlerFunc {
	return oh.transition(oh.svc.Cancel)
}

func (oh *OrderHandler) transition(op func(ctx context.Context, number string) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := op(r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrOrderStateConflict):
				http.Error(w, "state conflict", http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

type rescheduleRequest struct {
	BookingDate string `json:"booking_date"`
	BookingTime string `json:"booking_time"`
}

// RescheduleOrder moves the booking slot
// 200 — успешная обработка запроса;
// 404 — заказ не найден;
// 409 — состояние заказа не допускает перенос;
// 422 — недопустимые дата или время.
func (oh *OrderHandler) RescheduleOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		bookingDate, err := time.Parse(bookingDateLayout, req.BookingDate)
		if err != nil {
			http.Error(w, "invalid booking date", http.StatusUnprocessableEntity)
			return
		}

		order, err := oh.svc.Reschedule(r.Context(), chi.URLParam(r, "number"), bookingDate, req.BookingTime)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrOrderStateConflict):
				http.Error(w, "state conflict", http.StatusConflict)
			case errors.Is(err, models.ErrInvalidBookingSlot):
				http.Error(w, "invalid booking slot", http.StatusUnprocessableEntity)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, newOrderResponse(order))
	}
}

type rescheduleHistoryResponse struct {
	PreviousDate string `json:"previous_date"`
	PreviousTime string `json:"previous_time"`
	ChangedAt    string `json:"changed_at"`
}

// ListReschedules returns the reschedule audit trail for an order
func (oh *OrderHandler) ListReschedules() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := oh.svc.GetReschedules(r.Context(), chi.URLParam(r, "number"))
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := make([]rescheduleHistoryResponse, 0, len(history))
		for _, item := range history {
			resp = append(resp, rescheduleHistoryResponse{
				PreviousDate: item.PreviousDate.Format(bookingDateLayout),
				PreviousTime: item.PreviousTime,
				ChangedAt:    item.ChangedAt.Format(time.RFC3339),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func isCouponRejection(err error) bool {
	return errors.Is(err, models.ErrCouponInactive) ||
		errors.Is(err, models.ErrCouponNotStarted) ||
		errors.Is(err, models.ErrCouponExpired) ||
		errors.Is(err, models.ErrCouponUsageLimit) ||
		errors.Is(err, models.ErrCouponUserLimit) ||
		errors.Is(err, models.ErrCouponNotEligible) ||
		errors.Is(err, models.ErrCouponFirstOrderOnly) ||
		errors.Is(err, models.ErrCouponMinOrder)
}
