package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/marketplace/internal/models"
)

type PaymentService interface {
	// InitiatePayment registers a pending payment transaction for the order
	InitiatePayment(ctx context.Context, orderNumber, method string) (*models.Transaction, error)
	// ConfirmPayment settles a gateway result, idempotently
	ConfirmPayment(ctx context.Context, gatewayRef, result, token string) (*models.Transaction, error)
	// Refund applies a full or partial refund to a completed payment
	Refund(ctx context.Context, txnNumber string, amount float64, reason string) (*models.Transaction, error)
	// GetTransaction returns transaction by its number
	GetTransaction(ctx context.Context, number string) (*models.Transaction, error)
}

// PaymentHandler represents HTTP handler for payment-related requests
type PaymentHandler struct {
	svc PaymentService
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type initiatePaymentRequest struct {
	OrderNumber   string `json:"order_number"`
	PaymentMethod string `json:"payment_method"`
}

// InitiatePayment creates a gateway intent and a pending transaction
// 201 — транзакция создана;
// 400 — неверный формат запроса;
// 401 — пользователь не аутентифицирован;
// 404 — заказ не найден;
// 409 — заказ не подлежит оплате;
// 502 — платёжный шлюз недоступен;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) InitiatePayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req initiatePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.OrderNumber == "" || req.PaymentMethod == "" {
			http.Error(w, "order number and payment method are required", http.StatusBadRequest)
			return
		}

		txn, err := ph.svc.InitiatePayment(r.Context(), req.OrderNumber, req.PaymentMethod)
		if err != nil {
			writePaymentError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, newTransactionResponse(txn))
	}
}

type webhookRequest struct {
	GatewayRef      string `json:"gateway_ref"`
	Status          string `json:"status"`
	ValidationToken string `json:"validation_token"`
}

// Webhook processes an asynchronous payment result from the gateway.
// Replayed notifications return the already settled transaction.
// 200 — успешная обработка запроса;
// 400 — неверный формат запроса;
// 401 — подпись уведомления не подтверждена;
// 404 — транзакция не найдена;
// 502 — платёжный шлюз недоступен;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req webhookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if req.GatewayRef == "" {
			http.Error(w, "gateway ref is required", http.StatusBadRequest)
			return
		}

		txn, err := ph.svc.ConfirmPayment(r.Context(), req.GatewayRef, req.Status, req.ValidationToken)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrGatewayVerification):
				http.Error(w, "verification failed", http.StatusUnauthorized)
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "transaction not found", http.StatusNotFound)
			default:
				writePaymentError(w, err)
			}
			return
		}

		writeJSON(w, http.StatusOK, newTransactionResponse(txn))
	}
}

type refundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// Refund applies a refund against a completed payment transaction
// 201 — возврат проведён;
// 400 — неверный формат запроса;
// 404 — транзакция не найдена;
// 409 — транзакция не подлежит возврату;
// 422 — недопустимая сумма возврата;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) Refund() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")

		var req refundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		refund, err := ph.svc.Refund(r.Context(), number, req.Amount, req.Reason)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "transaction not found", http.StatusNotFound)
			case errors.Is(err, models.ErrRefundNotAllowed):
				http.Error(w, "transaction is not refundable", http.StatusConflict)
			case errors.Is(err, models.ErrInvalidRefundAmount):
				http.Error(w, "refund amount must be positive", http.StatusUnprocessableEntity)
			case errors.Is(err, models.ErrRefundExceedsAmount):
				http.Error(w, "refund exceeds remaining amount", http.StatusUnprocessableEntity)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, newTransactionResponse(refund))
	}
}

// GetTransaction returns transaction by its number
func (ph *PaymentHandler) GetTransaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := chi.URLParam(r, "number")

		txn, err := ph.svc.GetTransaction(r.Context(), number)
		if err != nil {
			if errors.Is(err, models.ErrDataNotFound) {
				http.Error(w, "transaction not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, newTransactionResponse(txn))
	}
}

// writePaymentError maps payment service errors shared between the intent
// and webhook paths to HTTP status codes.
func writePaymentError(w http.ResponseWriter, err error) {
	var gwErr models.GatewayError
	switch {
	case errors.As(err, &gwErr):
		if gwErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(gwErr.RetryAfter.Seconds())))
		}
		http.Error(w, "payment gateway unavailable", http.StatusBadGateway)
	case errors.Is(err, models.ErrDataNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, models.ErrOrderNotPayable):
		http.Error(w, "order is not payable", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
