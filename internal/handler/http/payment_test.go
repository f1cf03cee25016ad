package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace/internal/handler/http/mocks"
	"github.com/vendora/marketplace/internal/models"
)

func pendingTxn() *models.Transaction {
	return &models.Transaction{
		Number:           "TXN-20250314-000001",
		OrderNumber:      "ORD-20250314-000001",
		Type:             models.TransactionTypePayment,
		Amount:           500,
		CommissionRate:   5,
		CommissionAmount: 25,
		VendorAmount:     475,
		PaymentMethod:    "card",
		Status:           models.TransactionStatusPending,
		GatewayRef:       "pi_test",
	}
}

func TestPaymentHandler_InitiatePayment(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) *mocks.MockPaymentService
		wantStatusCode int
	}{
		{
			// 201 — транзакция создана;
			name: "valid_request_return_201",
			body: `{"order_number":"ORD-20250314-000001","payment_method":"card"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().InitiatePayment(gomock.Any(), "ORD-20250314-000001", "card").Return(pendingTxn(), nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			// 400 — неверный формат запроса;
			name: "missing_fields_return_400",
			body: `{"order_number":""}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().InitiatePayment(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// 404 — заказ не найден;
			name: "unknown_order_return_404",
			body: `{"order_number":"ORD-X","payment_method":"card"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().InitiatePayment(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			// 409 — заказ не подлежит оплате;
			name: "paid_order_return_409",
			body: `{"order_number":"ORD-20250314-000001","payment_method":"card"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().InitiatePayment(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, models.ErrOrderNotPayable).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			// 502 — платёжный шлюз недоступен.
			name: "gateway_down_return_502",
			body: `{"order_number":"ORD-20250314-000001","payment_method":"card"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().InitiatePayment(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.NewGatewayError("unavailable", time.Minute)).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewPaymentHandler(st).InitiatePayment()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestPaymentHandler_InitiatePayment_RetryAfterHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svcMock := mocks.NewMockPaymentService(ctrl)
	svcMock.EXPECT().InitiatePayment(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, models.NewGatewayError("rate limited", 90*time.Second))

	req := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(`{"order_number":"ORD-1","payment_method":"card"}`))
	w := httptest.NewRecorder()

	h := NewPaymentHandler(svcMock).InitiatePayment()
	h(w, req)

	res := w.Result()
	defer res.Body.Close()
	require.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "90", res.Header.Get("Retry-After"))
}

func TestPaymentHandler_Webhook(t *testing.T) {
	completed := pendingTxn()
	completed.Status = models.TransactionStatusCompleted

	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) *mocks.MockPaymentService
		wantStatusCode int
	}{
		{
			// 200 — успешная обработка запроса;
			name: "succeeded_result_return_200",
			body: `{"gateway_ref":"pi_test","status":"succeeded","validation_token":"tok"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().ConfirmPayment(gomock.Any(), "pi_test", "succeeded", "tok").Return(completed, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 200 — повторное уведомление идемпотентно;
			name: "duplicate_webhook_return_200",
			body: `{"gateway_ref":"pi_test","status":"succeeded","validation_token":"tok"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(completed, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusOK,
		},
		{
			// 400 — отсутствует идентификатор шлюза;
			name: "missing_gateway_ref_return_400",
			body: `{"status":"succeeded"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				return svcMock
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			// 401 — подпись уведомления не подтверждена;
			name: "invalid_token_return_401",
			body: `{"gateway_ref":"pi_test","status":"succeeded","validation_token":"bad"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.ErrGatewayVerification).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			// 404 — транзакция не найдена.
			name: "unknown_transaction_return_404",
			body: `{"gateway_ref":"pi_missing","status":"succeeded","validation_token":"tok"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().ConfirmPayment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewPaymentHandler(st).Webhook()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestPaymentHandler_Refund(t *testing.T) {
	refunded := pendingTxn()
	refunded.Status = models.TransactionStatusPartiallyRefunded
	refunded.RefundAmount = 100

	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) *mocks.MockPaymentService
		wantStatusCode int
	}{
		{
			// 201 — возврат проведён;
			name: "partial_refund_return_201",
			body: `{"amount":100,"reason":"customer request"}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Refund(gomock.Any(), "TXN-20250314-000001", 100.0, "customer request").Return(refunded, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			// 409 — транзакция не подлежит возврату;
			name: "pending_transaction_return_409",
			body: `{"amount":100}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Refund(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.ErrRefundNotAllowed).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			// 422 — сумма превышает остаток;
			name: "exceeding_amount_return_422",
			body: `{"amount":800}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Refund(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.ErrRefundExceedsAmount).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			// 422 — недопустимая сумма;
			name: "non_positive_amount_return_422",
			body: `{"amount":0}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Refund(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.ErrInvalidRefundAmount).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			// 404 — транзакция не найдена.
			name: "unknown_transaction_return_404",
			body: `{"amount":100}`,
			setup: func(t *testing.T) *mocks.MockPaymentService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockPaymentService(ctrl)
				svcMock.EXPECT().Refund(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments/TXN-20250314-000001/refund", strings.NewReader(tt.body))

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("number", "TXN-20250314-000001")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)

			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewPaymentHandler(st).Refund()
			h(w, req.WithContext(ctx))

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}
