package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/marketplace/internal/handler/http/mocks"
	"github.com/vendora/marketplace/internal/models"
)

func TestCouponHandler_CreateCoupon(t *testing.T) {
	validBody := `{"code":"SPRING10","type":"percentage","value":10,"start_date":"2025-03-01T00:00:00Z","end_date":"2025-03-31T23:59:59Z"}`

	tests := []struct {
		name           string
		body           string
		setup          func(t *testing.T) *mocks.MockCouponService
		wantStatusCode int
	}{
		{
			// 201 — купон создан;
			name: "valid_request_return_201",
			body: validBody,
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&models.Coupon{
					Code:   "SPRING10",
					Type:   models.CouponTypePercentage,
					Value:  10,
					Status: models.CouponStatusActive,
				}, nil).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			// 409 — код купона уже существует;
			name: "duplicate_code_return_409",
			body: validBody,
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, models.ErrConflictData).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			// 422 — недопустимое определение купона;
			name: "invalid_definition_return_422",
			body: `{"code":"X","type":"percentage","value":120,"start_date":"2025-03-01T00:00:00Z","end_date":"2025-03-31T23:59:59Z"}`,
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, models.ErrInvalidCoupon).AnyTimes()
				return svcMock
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
		{
			// 422 — неверная дата.
			name: "invalid_date_return_422",
			body: `{"code":"X","type":"fixed","value":10,"start_date":"march","end_date":"2025-03-31T23:59:59Z"}`,
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
				return svcMock
			},
			wantStatusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/coupons", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewCouponHandler(st).CreateCoupon()
			h(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatusCode, res.StatusCode)
		})
	}
}

func TestCouponHandler_ValidateCoupon(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(t *testing.T) *mocks.MockCouponService
		wantValid    bool
		wantDiscount float64
	}{
		{
			name: "eligible_coupon",
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Apply(gomock.Any(), "SPRING10", 200.0, int64(1)).
					Return(&models.Coupon{Code: "SPRING10"}, 20.0, nil).AnyTimes()
				return svcMock
			},
			wantValid:    true,
			wantDiscount: 20,
		},
		{
			name: "expired_coupon_reported_in_body",
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, 0.0, models.ErrCouponExpired).AnyTimes()
				return svcMock
			},
			wantValid: false,
		},
		{
			name: "unknown_code_reported_in_body",
			setup: func(t *testing.T) *mocks.MockCouponService {

				ctrl := gomock.NewController(t)
				defer ctrl.Finish()

				svcMock := mocks.NewMockCouponService(ctrl)
				svcMock.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, 0.0, models.ErrDataNotFound).AnyTimes()
				return svcMock
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"code":"SPRING10","order_amount":200}`
			req := httptest.NewRequest(http.MethodPost, "/api/coupons/validate", strings.NewReader(body))
			ctx := context.WithValue(req.Context(), authPayloadKey, &models.TokenPayload{UserID: 1})

			w := httptest.NewRecorder()
			st := tt.setup(t)

			h := NewCouponHandler(st).ValidateCoupon()
			h(w, req.WithContext(ctx))

			res := w.Result()
			defer res.Body.Close()
			require.Equal(t, http.StatusOK, res.StatusCode)

			var got validateCouponResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))

			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantDiscount, got.Discount)
			if !tt.wantValid {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestCouponHandler_ValidateCoupon_Unauthorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svcMock := mocks.NewMockCouponService(ctrl)
	svcMock.EXPECT().Apply(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	req := httptest.NewRequest(http.MethodPost, "/api/coupons/validate", strings.NewReader(`{"code":"X"}`))
	w := httptest.NewRecorder()

	h := NewCouponHandler(svcMock).ValidateCoupon()
	h(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
